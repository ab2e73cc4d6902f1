// Package optimize drives the iterative policy-improvement loop: each
// iteration proposes a candidate policy for one agent, evaluates it
// against the incumbent on identical bootstrap samples, and keeps the
// candidate only on strict improvement. The loop alternates which agent is
// tuned round-robin and stops once total cost has stopped moving for a
// configured number of consecutive iterations.
package optimize

import (
	"context"

	"rtgssim/internal/bootstrap"
	"rtgssim/internal/domain"
	"rtgssim/internal/money"
	"rtgssim/internal/policy"
	"rtgssim/internal/rng"
	"rtgssim/internal/sandbox"
	"rtgssim/internal/scenario"
)

// Evaluator runs one sub-simulation seeded and scripted exactly as given,
// with agentID's tree temporarily replaced by candidate, and returns the
// total cost accrued across every agent. The engine package provides the
// concrete implementation; this package only depends on the interface, to
// avoid an import cycle back into the engine.
type Evaluator interface {
	EvaluateCost(ctx context.Context, agentID money.AgentID, kind policy.TreeKind, candidate *policy.Policy, script []*scenario.ScheduledEvent, simSeed uint64) (money.Cents, error)
}

// CandidateSource proposes a replacement policy for an agent's current
// tree; cmd/experiment backs it with llm.Client through
// LLMCandidateSource. Loop records a Propose error as a rejected
// iteration; there is no other candidate generator to fall back to.
type CandidateSource interface {
	Propose(ctx context.Context, agentID money.AgentID, kind policy.TreeKind, current *policy.Policy, llmSeed uint64) (*policy.Policy, error)
}

// IterationResult records one iteration's outcome. IncumbentCost and
// CandidateCost are totals across every paired sample; SumDelta is their
// difference (positive means the candidate was cheaper in aggregate).
type IterationResult struct {
	Iteration   int
	AgentID     money.AgentID
	Accepted    bool
	IncumbentCost money.Cents
	CandidateCost money.Cents
	SumDelta      money.Cents
	NumSamples    int
}

// SampleMethod selects which of Pool's resampling strategies the paired
// evaluation draws from, per spec §4.4's evaluator configuration
// "method ∈ bootstrap|permutation|stratified".
type SampleMethod string

const (
	SampleBootstrap   SampleMethod = "bootstrap"
	SamplePermutation SampleMethod = "permutation"
	SampleStratified  SampleMethod = "stratified"
)

// Config tunes the loop's evaluation and stopping behavior.
type Config struct {
	MaxIterations       int
	StabilityWindow     int
	// StabilityThreshold is the maximum relative change in the running cost
	// series still counted as "stable"; 0 demands exact equality.
	StabilityThreshold  float64
	// NumSamples is how many paired candidate/incumbent sub-simulations each
	// iteration runs; each pair s uses seed sampling_seed(iter,agent) XOR s
	// on both sides. Values below 1 are treated as 1.
	NumSamples          int
	BootstrapSampleSize int
	MinImprovementCents money.Cents
	// Method defaults to SampleBootstrap when empty, preserving prior
	// behavior for callers that don't set it.
	Method SampleMethod
}

func drawSample(method SampleMethod, pool *bootstrap.Pool, n int, source *rng.Source) []*domain.Transaction {
	switch method {
	case SamplePermutation:
		return pool.PermutationSample(source)
	case SampleStratified:
		return pool.StratifiedSample(n, source)
	default:
		return pool.BootstrapSample(n, source)
	}
}

// Loop runs the full optimization loop over agents, mutating incumbents in
// place as candidates are accepted, and returns every iteration's outcome.
func Loop(
	ctx context.Context,
	cfg Config,
	agents []money.AgentID,
	incumbents map[money.AgentID]map[policy.TreeKind]*policy.Policy,
	treeKinds []policy.TreeKind,
	pool *bootstrap.Pool,
	evaluator Evaluator,
	candidates CandidateSource,
	seeds *rng.SeedMatrix,
) []IterationResult {
	var results []IterationResult
	var costSeries []money.Cents
	noAcceptStreak := 0
	numSamples := cfg.NumSamples
	if numSamples < 1 {
		numSamples = 1
	}

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		agent := agents[iter%len(agents)]
		kind := treeKinds[iter%len(treeKinds)]

		samplingSeed := seeds.SamplingSeed(iter, agent)
		sampleSource := rng.NewSource(samplingSeed)
		incumbent := incumbents[agent][kind]

		llmSeed := seeds.LLMSeed(iter, agent)
		candidate, err := candidates.Propose(ctx, agent, kind, incumbent, llmSeed)
		if err != nil || candidate == nil {
			results = append(results, IterationResult{Iteration: iter, AgentID: agent, Accepted: false})
			noAcceptStreak++
			if noAcceptStreak >= cfg.StabilityWindow {
				break
			}
			continue
		}

		// Paired evaluation: each sample runs the identical script and seed
		// for incumbent and candidate, so every per-sample delta isolates
		// the policy change from sampling variance.
		var sumOld, sumNew money.Cents
		evalFailed := false
		for s := 0; s < numSamples; s++ {
			sample := drawSample(cfg.Method, pool, cfg.BootstrapSampleSize, sampleSource)
			script := sandbox.BuildArrivalScript(sample)
			simSeed := samplingSeed ^ uint64(s)

			oldCost, err := evaluator.EvaluateCost(ctx, agent, kind, incumbent, script, simSeed)
			if err != nil {
				evalFailed = true
				break
			}
			newCost, err := evaluator.EvaluateCost(ctx, agent, kind, candidate, script, simSeed)
			if err != nil {
				evalFailed = true
				break
			}
			sumOld += oldCost
			sumNew += newCost
		}

		sumDelta := sumOld - sumNew
		accepted := !evalFailed && sumDelta > cfg.MinImprovementCents
		if accepted {
			incumbents[agent][kind] = candidate
		}

		results = append(results, IterationResult{
			Iteration: iter, AgentID: agent, Accepted: accepted,
			IncumbentCost: sumOld, CandidateCost: sumNew,
			SumDelta: sumDelta, NumSamples: numSamples,
		})

		current := sumOld
		if accepted {
			current = sumNew
		}
		costSeries = append(costSeries, current)
		if accepted {
			noAcceptStreak = 0
		} else {
			noAcceptStreak++
		}

		if noAcceptStreak >= cfg.StabilityWindow {
			break
		}
		if seriesStable(costSeries, cfg.StabilityWindow, cfg.StabilityThreshold) {
			break
		}
	}
	return results
}

// seriesStable reports whether the last window steps of the cost series all
// changed by at most threshold, relative to the preceding value.
func seriesStable(series []money.Cents, window int, threshold float64) bool {
	if window < 1 || len(series) <= window {
		return false
	}
	for i := len(series) - window; i < len(series); i++ {
		prev := series[i-1].AsFloat64()
		cur := series[i].AsFloat64()
		base := prev
		if base < 0 {
			base = -base
		}
		if base < 1 {
			base = 1
		}
		diff := cur - prev
		if diff < 0 {
			diff = -diff
		}
		if diff/base > threshold {
			return false
		}
	}
	return true
}
