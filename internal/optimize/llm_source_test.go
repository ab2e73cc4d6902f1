package optimize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtgssim/internal/llm"
	"rtgssim/internal/money"
	"rtgssim/internal/policy"
)

type fakeLLMClient struct {
	resp *llm.ProposalResponse
	err  error
}

func (f fakeLLMClient) ProposePolicy(ctx context.Context, req llm.ProposalRequest) (*llm.ProposalResponse, error) {
	return f.resp, f.err
}

func validPaymentPolicyJSON(t *testing.T) string {
	t.Helper()
	tree := &policy.Tree{Action: &policy.Action{Type: policy.ActionReleaseV}}
	p, err := policy.NewPolicy(policy.TreePayment, tree, nil)
	require.NoError(t, err)
	raw, err := p.ToJSON()
	require.NoError(t, err)
	return string(raw)
}

func TestLLMCandidateSourceParsesValidProposal(t *testing.T) {
	current := treeFor(1)
	proposed := validPaymentPolicyJSON(t)
	src := &LLMCandidateSource{Client: fakeLLMClient{resp: &llm.ProposalResponse{ProposedPolicy: proposed}}}

	candidate, err := src.Propose(context.Background(), money.AgentID("A"), policy.TreePayment, current, 42)
	require.NoError(t, err)
	assert.Equal(t, policy.TreePayment, candidate.Kind)
}

func TestLLMCandidateSourceRejectsMalformedProposal(t *testing.T) {
	current := treeFor(1)
	src := &LLMCandidateSource{Client: fakeLLMClient{resp: &llm.ProposalResponse{ProposedPolicy: "not json"}}}

	_, err := src.Propose(context.Background(), money.AgentID("A"), policy.TreePayment, current, 42)
	assert.Error(t, err)
}

func TestLLMCandidateSourcePropagatesClientFailure(t *testing.T) {
	current := treeFor(1)
	src := &LLMCandidateSource{Client: fakeLLMClient{err: assert.AnError}}

	_, err := src.Propose(context.Background(), money.AgentID("A"), policy.TreePayment, current, 42)
	assert.Error(t, err)
}
