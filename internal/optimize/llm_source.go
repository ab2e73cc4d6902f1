package optimize

import (
	"context"
	"encoding/json"

	"rtgssim/internal/llm"
	"rtgssim/internal/money"
	"rtgssim/internal/policy"
)

// LLMCandidateSource adapts an llm.Client to the CandidateSource interface:
// it serializes the agent's current tree to canonical JSON, sends it as
// context for the proposal request, and parses+validates whatever comes
// back through policy.PolicyFromJSON before handing it to the loop. Any
// transport, decode, or validation failure is returned as an error, which
// Loop treats as a rejected proposal for that iteration (spec §6, §7
// LLMFailure/PolicyValidationFailed).
type LLMCandidateSource struct {
	Client  llm.Client
	Metrics func(agentID money.AgentID, kind policy.TreeKind) map[string]float64
}

func (s *LLMCandidateSource) Propose(ctx context.Context, agentID money.AgentID, kind policy.TreeKind, current *policy.Policy, llmSeed uint64) (*policy.Policy, error) {
	currentJSON, err := current.ToJSON()
	if err != nil {
		return nil, err
	}

	var metrics map[string]float64
	if s.Metrics != nil {
		metrics = s.Metrics(agentID, kind)
	}

	resp, err := s.Client.ProposePolicy(ctx, llm.ProposalRequest{
		AgentID:       string(agentID),
		TreeKind:      kind.String(),
		CurrentPolicy: string(currentJSON),
		RecentMetrics: metrics,
		Seed:          llmSeed,
	})
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage = json.RawMessage(resp.ProposedPolicy)
	candidate, err := policy.PolicyFromJSON(raw)
	if err != nil {
		return nil, err
	}
	return candidate, nil
}
