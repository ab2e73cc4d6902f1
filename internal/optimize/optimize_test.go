package optimize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"rtgssim/internal/bootstrap"
	"rtgssim/internal/domain"
	"rtgssim/internal/money"
	"rtgssim/internal/policy"
	"rtgssim/internal/rng"
	"rtgssim/internal/scenario"
)

type fakeEvaluator struct {
	costFor func(candidate *policy.Policy) money.Cents
}

func (f fakeEvaluator) EvaluateCost(ctx context.Context, agentID money.AgentID, kind policy.TreeKind, candidate *policy.Policy, script []*scenario.ScheduledEvent, simSeed uint64) (money.Cents, error) {
	return f.costFor(candidate), nil
}

type fakeCandidateSource struct {
	candidate *policy.Policy
}

func (f fakeCandidateSource) Propose(ctx context.Context, agentID money.AgentID, kind policy.TreeKind, current *policy.Policy, llmSeed uint64) (*policy.Policy, error) {
	return f.candidate, nil
}

func treeFor(marker float64) *policy.Policy {
	tree := &policy.Tree{Action: &policy.Action{Type: policy.ActionReleaseV}}
	p, _ := policy.NewPolicy(policy.TreePayment, tree, map[string]float64{"marker": marker})
	return p
}

func TestLoopAcceptsStrictlyBetterCandidate(t *testing.T) {
	incumbent := treeFor(1)
	candidate := treeFor(2)

	incumbents := map[money.AgentID]map[policy.TreeKind]*policy.Policy{
		"A": {policy.TreePayment: incumbent},
	}

	evaluator := fakeEvaluator{costFor: func(p *policy.Policy) money.Cents {
		if p == candidate {
			return money.Cents(50)
		}
		return money.Cents(100)
	}}

	pool := bootstrap.NewPool([]*domain.Transaction{{TxID: "1", ArrivalTick: 0}})
	seeds := rng.NewSeedMatrix(1)

	results := Loop(context.Background(), Config{MaxIterations: 1, StabilityWindow: 5, BootstrapSampleSize: 1},
		[]money.AgentID{"A"}, incumbents, []policy.TreeKind{policy.TreePayment}, pool, evaluator, fakeCandidateSource{candidate: candidate}, seeds)

	assert.Len(t, results, 1)
	assert.True(t, results[0].Accepted)
	assert.Equal(t, candidate, incumbents["A"][policy.TreePayment])
}

func TestLoopRejectsWorseCandidate(t *testing.T) {
	incumbent := treeFor(1)
	candidate := treeFor(2)

	incumbents := map[money.AgentID]map[policy.TreeKind]*policy.Policy{
		"A": {policy.TreePayment: incumbent},
	}

	evaluator := fakeEvaluator{costFor: func(p *policy.Policy) money.Cents {
		if p == candidate {
			return money.Cents(200)
		}
		return money.Cents(100)
	}}

	pool := bootstrap.NewPool([]*domain.Transaction{{TxID: "1", ArrivalTick: 0}})
	seeds := rng.NewSeedMatrix(1)

	results := Loop(context.Background(), Config{MaxIterations: 1, StabilityWindow: 5, BootstrapSampleSize: 1},
		[]money.AgentID{"A"}, incumbents, []policy.TreeKind{policy.TreePayment}, pool, evaluator, fakeCandidateSource{candidate: candidate}, seeds)

	assert.Len(t, results, 1)
	assert.False(t, results[0].Accepted)
	assert.Equal(t, incumbent, incumbents["A"][policy.TreePayment])
}

func TestLoopConvergesWithinStabilityWindow(t *testing.T) {
	incumbent := treeFor(1)
	incumbents := map[money.AgentID]map[policy.TreeKind]*policy.Policy{
		"A": {policy.TreePayment: incumbent},
	}
	evaluator := fakeEvaluator{costFor: func(p *policy.Policy) money.Cents { return money.Cents(100) }}
	pool := bootstrap.NewPool([]*domain.Transaction{{TxID: "1", ArrivalTick: 0}})
	seeds := rng.NewSeedMatrix(1)

	results := Loop(context.Background(), Config{MaxIterations: 50, StabilityWindow: 3, BootstrapSampleSize: 1},
		[]money.AgentID{"A"}, incumbents, []policy.TreeKind{policy.TreePayment}, pool, evaluator, fakeCandidateSource{candidate: incumbent}, seeds)

	assert.True(t, len(results) < 50)
}

// TestLoopPairedNoOpNeverAccepts is §8's "optimization paired-no-op"
// scenario: when the proposed candidate is literally the incumbent
// policy, every iteration's cost delta must be exactly zero and the
// proposal must never be accepted, regardless of how many iterations run.
func TestLoopPairedNoOpNeverAccepts(t *testing.T) {
	incumbent := treeFor(1)
	incumbents := map[money.AgentID]map[policy.TreeKind]*policy.Policy{
		"A": {policy.TreePayment: incumbent},
	}
	evaluator := fakeEvaluator{costFor: func(p *policy.Policy) money.Cents { return money.Cents(777) }}
	pool := bootstrap.NewPool([]*domain.Transaction{{TxID: "1", ArrivalTick: 0}})
	seeds := rng.NewSeedMatrix(1)

	results := Loop(context.Background(), Config{MaxIterations: 3, StabilityWindow: 10, BootstrapSampleSize: 1},
		[]money.AgentID{"A"}, incumbents, []policy.TreeKind{policy.TreePayment}, pool, evaluator, fakeCandidateSource{candidate: incumbent}, seeds)

	assert.Len(t, results, 3)
	for _, r := range results {
		assert.False(t, r.Accepted)
		assert.Equal(t, r.IncumbentCost, r.CandidateCost, "candidate==incumbent must produce an exact zero delta")
	}
	assert.Same(t, incumbent, incumbents["A"][policy.TreePayment], "a no-op candidate must never replace the incumbent")
}

type recordingEvaluator struct {
	seeds    []uint64
	policies []*policy.Policy
}

func (r *recordingEvaluator) EvaluateCost(ctx context.Context, agentID money.AgentID, kind policy.TreeKind, candidate *policy.Policy, script []*scenario.ScheduledEvent, simSeed uint64) (money.Cents, error) {
	r.seeds = append(r.seeds, simSeed)
	r.policies = append(r.policies, candidate)
	return 0, nil
}

// TestLoopPairedSamplesShareSeeds: each of the NumSamples paired
// evaluations must run incumbent and candidate on the identical sub-seed,
// and pair s must use sampling_seed(iter, agent) XOR s.
func TestLoopPairedSamplesShareSeeds(t *testing.T) {
	incumbent := treeFor(1)
	candidate := treeFor(2)
	incumbents := map[money.AgentID]map[policy.TreeKind]*policy.Policy{
		"A": {policy.TreePayment: incumbent},
	}
	pool := bootstrap.NewPool([]*domain.Transaction{{TxID: "1", ArrivalTick: 0}})
	seeds := rng.NewSeedMatrix(99)
	rec := &recordingEvaluator{}

	Loop(context.Background(), Config{MaxIterations: 1, StabilityWindow: 5, BootstrapSampleSize: 1, NumSamples: 3},
		[]money.AgentID{"A"}, incumbents, []policy.TreeKind{policy.TreePayment}, pool, rec, fakeCandidateSource{candidate: candidate}, seeds)

	if assert.Len(t, rec.seeds, 6, "3 samples, incumbent+candidate each") {
		base := seeds.SamplingSeed(0, "A")
		for s := 0; s < 3; s++ {
			assert.Equal(t, base^uint64(s), rec.seeds[2*s], "sample %d incumbent seed", s)
			assert.Equal(t, rec.seeds[2*s], rec.seeds[2*s+1], "pair %d must share one seed", s)
			assert.Same(t, incumbent, rec.policies[2*s])
			assert.Same(t, candidate, rec.policies[2*s+1])
		}
	}
}

// TestLoopHonorsConfiguredSampleMethod is a smoke check that each of the
// three spec §4.4 sampling methods runs end to end without a method
// defaulting silently back to bootstrap.
func TestLoopHonorsConfiguredSampleMethod(t *testing.T) {
	pool := bootstrap.NewPool([]*domain.Transaction{
		{TxID: "1", Sender: "A", ArrivalTick: 0},
		{TxID: "2", Sender: "B", ArrivalTick: 1},
		{TxID: "3", Sender: "A", ArrivalTick: 2},
	})
	seeds := rng.NewSeedMatrix(1)

	for _, method := range []SampleMethod{SampleBootstrap, SamplePermutation, SampleStratified} {
		incumbent := treeFor(1)
		candidate := treeFor(2)
		incumbents := map[money.AgentID]map[policy.TreeKind]*policy.Policy{"A": {policy.TreePayment: incumbent}}
		evaluator := fakeEvaluator{costFor: func(p *policy.Policy) money.Cents {
			if p == candidate {
				return money.Cents(50)
			}
			return money.Cents(100)
		}}

		results := Loop(context.Background(), Config{MaxIterations: 1, StabilityWindow: 5, BootstrapSampleSize: 2, Method: method},
			[]money.AgentID{"A"}, incumbents, []policy.TreeKind{policy.TreePayment}, pool, evaluator, fakeCandidateSource{candidate: candidate}, seeds)

		assert.Len(t, results, 1, "method %s", method)
		assert.True(t, results[0].Accepted, "method %s", method)
	}
}
