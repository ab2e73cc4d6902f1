package engine

import (
	"context"

	"rtgssim/internal/domain"
	"rtgssim/internal/events"
	"rtgssim/internal/money"
	"rtgssim/internal/policy"
	"rtgssim/internal/queue1"
	"rtgssim/internal/queue2"
	"rtgssim/internal/rng"
	"rtgssim/internal/scenario"
)

// Clone returns a fresh Engine with the same agent configuration (balances,
// collateral, policy trees) but empty queues, a fresh event log, and tick
// counters reset to zero: a clean sub-simulation sandbox, never sharing
// mutable state with the original.
func (e *Engine) Clone() *Engine {
	clone := &Engine{
		ticksPerDay:      e.ticksPerDay,
		agents:           make(map[money.AgentID]*domain.AgentState, len(e.agents)),
		queue1s:          make(map[money.AgentID]*queue1.Queue, len(e.agents)),
		queue2:           queue2.New(),
		accruer:          e.accruer,
		minCycleLen:      e.minCycleLen,
		maxCycleLen:      e.maxCycleLen,
		maxLSMIterations: e.maxLSMIterations,
		queue2SoftCap:    e.queue2SoftCap,
		scheduler:        scenario.NewScheduler(nil),
		rngSource:        rng.NewSource(0),
		// Sub-simulations replay only the scripted bootstrap sample
		// (sandbox.BuildArrivalScript), deliberately carrying no background
		// stochastic arrival rate, so a candidate/incumbent comparison is
		// never polluted by arrivals the pairing didn't control for.
		agentArrivalRate: make(map[money.AgentID]float64),
	}
	for _, id := range e.agentIDs {
		orig := e.agents[id]
		dup := *orig
		clone.agents[id] = &dup
		clone.queue1s[id] = queue1.New()
		clone.agentIDs = append(clone.agentIDs, id)
	}
	clone.log = nil
	clone.emitter = events.NewEmitter("sandbox", &memorySink{eng: clone})
	return clone
}

// EvaluateCost implements optimize.Evaluator: it clones the engine,
// substitutes candidate for agentID's tree of the given kind, replays
// script deterministically from simSeed for one simulated day, and
// returns the total cost the whole system paid out (the drop in aggregate
// balance, since ordinary transfers between agents net to zero and only
// accrued costs actually leave the system).
func (e *Engine) EvaluateCost(ctx context.Context, agentID money.AgentID, kind policy.TreeKind, candidate *policy.Policy, script []*scenario.ScheduledEvent, simSeed uint64) (money.Cents, error) {
	sub := e.Clone()
	sub.scheduler = scenario.NewScheduler(script)
	sub.rngSource = rng.NewSource(simSeed)

	if a, ok := sub.agents[agentID]; ok {
		a.SetPolicyFor(kind, candidate)
	}

	before := sub.totalBalance()
	horizon := sub.ticksPerDay
	if horizon <= 0 {
		horizon = 100
	}
	for i := int64(0); i < horizon; i++ {
		if err := sub.Tick(); err != nil {
			return 0, err
		}
	}
	after := sub.totalBalance()
	return before - after, nil
}

func (e *Engine) totalBalance() money.Cents {
	var total money.Cents
	for _, a := range e.agents {
		total += a.Balance
	}
	return total
}
