// Package engine orchestrates one tick of the settlement simulation: it
// owns every agent's state and both queues, and drives them through the
// fixed ten-step per-tick order every other package only supplies a piece
// of. The engine is deliberately single-threaded and free of goroutines:
// every step mutates shared state that the next step depends on, so
// running steps concurrently would just reintroduce the races a two-queue
// RTGS design exists to avoid.
package engine

import (
	"context"
	"fmt"
	"sort"

	"rtgssim/internal/arrivals"
	"rtgssim/internal/costs"
	"rtgssim/internal/domain"
	"rtgssim/internal/events"
	"rtgssim/internal/money"
	"rtgssim/internal/policy"
	"rtgssim/internal/queue1"
	"rtgssim/internal/queue2"
	"rtgssim/internal/rng"
	"rtgssim/internal/scenario"
)

// Config is everything a run needs to build an Engine: per-agent initial
// state, cost rates, LSM tuning, and the scenario script.
type Config struct {
	TicksPerDay int64
	Agents      []*domain.AgentState
	CostRates   *domain.CostRates
	MinCycleLen int
	MaxCycleLen int // longest cycle the LSM pass considers; 0 means the lsm package default
	MaxLSMIterations int
	Script      []*scenario.ScheduledEvent
	MasterSeed  uint64

	// Queue2SoftCap bounds Queue 2 growth on long runs: once the queue holds
	// this many transactions, new stochastic arrivals are rejected with an
	// arrival_rejected event instead of being generated. 0 means uncapped.
	Queue2SoftCap int

	// AmountSpecs and DeadlineWindows carry each agent's configured arrival
	// distribution (spec §6 arrival_config). An agent missing from either
	// map uses AmountSpec's zero value / a fixed 20-tick deadline.
	AmountSpecs         map[money.AgentID]arrivals.AmountSpec
	DeadlineWindows     map[money.AgentID]arrivals.DeadlineWindow
	CounterpartyWeights map[[2]money.AgentID]float64
	AgentArrivalRates   map[money.AgentID]float64
}

// Engine holds one run's full mutable state.
type Engine struct {
	ticksPerDay int64
	tick        int64
	day         int64

	agents   map[money.AgentID]*domain.AgentState
	agentIDs []money.AgentID // sorted, for deterministic iteration

	queue1s map[money.AgentID]*queue1.Queue
	queue2  *queue2.Queue

	accruer   *costs.Accruer
	minCycleLen int
	maxCycleLen int
	maxLSMIterations int
	queue2SoftCap int

	scheduler *scenario.Scheduler
	rngSource *rng.Source

	emitter *events.Emitter
	log     []domain.Event

	nextTxSeq   int64
	nextRtgsSeq int64

	// txHistory records every transaction as it arrives (stochastic or
	// scripted), independent of its later lifecycle, so a context
	// simulation's full arrival population can be captured for the
	// optimization loop's bootstrap sampler (spec §4.4 step 1) without
	// reconstructing it from the event log.
	txHistory []*domain.Transaction

	globalArrivalRate float64
	agentArrivalRate  map[money.AgentID]float64
	counterpartyWeights map[[2]money.AgentID]float64
	deadlineWindows     map[money.AgentID][2]int64
	amountSpecs         map[money.AgentID]arrivals.AmountSpec
}

// memorySink is the default in-process event sink; callers who need
// durable persistence wrap internal/repository/postgres or redisq behind
// the events.Sink interface instead and pass it to NewEngineWithSink.
type memorySink struct {
	eng *Engine
}

func (m *memorySink) AppendEvent(runID string, e domain.Event, hash, prevHash string) error {
	m.eng.log = append(m.eng.log, e)
	return nil
}

// NewEngine builds an Engine from cfg, logging events only to its own
// in-memory buffer under the run id "run". Use NewEngineWithSink to also
// persist events through a durable events.Sink (internal/repository/
// postgres or redisq).
func NewEngine(cfg Config) *Engine {
	return NewEngineWithSink(cfg, "run", nil)
}

// NewEngineWithSink builds an Engine from cfg whose events are both kept
// in the in-memory buffer GetEvents reads from and forwarded to sink (if
// non-nil) under runID, so a caller can replay from durable storage later
// without needing the live Engine to still be running. Passing a nil sink
// behaves exactly like NewEngine.
func NewEngineWithSink(cfg Config, runID string, sink events.Sink) *Engine {
	e := &Engine{
		ticksPerDay:      cfg.TicksPerDay,
		agents:           make(map[money.AgentID]*domain.AgentState, len(cfg.Agents)),
		queue1s:          make(map[money.AgentID]*queue1.Queue, len(cfg.Agents)),
		queue2:           queue2.New(),
		accruer:          costs.NewAccruer(cfg.CostRates),
		minCycleLen:      cfg.MinCycleLen,
		maxCycleLen:      cfg.MaxCycleLen,
		maxLSMIterations: cfg.MaxLSMIterations,
		queue2SoftCap:    cfg.Queue2SoftCap,
		scheduler:        scenario.NewScheduler(cfg.Script),
		rngSource:        rng.NewSource(cfg.MasterSeed),
		agentArrivalRate: make(map[money.AgentID]float64),
		amountSpecs:      cfg.AmountSpecs,
		counterpartyWeights: cfg.CounterpartyWeights,
	}
	for _, a := range cfg.Agents {
		e.agents[a.ID] = a
		e.queue1s[a.ID] = queue1.New()
		e.agentIDs = append(e.agentIDs, a.ID)
	}
	sort.Slice(e.agentIDs, func(i, j int) bool { return e.agentIDs[i] < e.agentIDs[j] })
	for id, rate := range cfg.AgentArrivalRates {
		e.agentArrivalRate[id] = rate
	}
	if len(cfg.DeadlineWindows) > 0 {
		e.deadlineWindows = make(map[money.AgentID][2]int64, len(cfg.DeadlineWindows))
		for id, w := range cfg.DeadlineWindows {
			e.deadlineWindows[id] = [2]int64{w.MinTicks, w.MaxTicks}
		}
	}

	var s events.Sink = &memorySink{eng: e}
	if sink != nil {
		s = &teeSink{primary: &memorySink{eng: e}, durable: sink}
	}
	e.emitter = events.NewEmitter(runID, s)
	return e
}

// teeSink fans every event out to the in-memory buffer (so GetEvents keeps
// working against a live Engine) and to a durable sink. The durable write
// is a PersistenceFailure per §7, not fatal: a broken sink degrades a run
// to in-memory-only rather than aborting it.
type teeSink struct {
	primary events.Sink
	durable events.Sink
}

func (t *teeSink) AppendEvent(runID string, e domain.Event, hash, prevHash string) error {
	if err := t.primary.AppendEvent(runID, e, hash, prevHash); err != nil {
		return err
	}
	_ = t.durable.AppendEvent(runID, e, hash, prevHash)
	return nil
}

// CurrentTick returns the tick about to run or just completed.
func (e *Engine) CurrentTick() int64 { return e.tick }

// GetState returns a snapshot of every agent's state, keyed by id. Each
// entry is a copy, so changing it leaves the engine's state untouched.
func (e *Engine) GetState() map[money.AgentID]*domain.AgentState {
	out := make(map[money.AgentID]*domain.AgentState, len(e.agents))
	for id, a := range e.agents {
		c := *a
		out[id] = &c
	}
	return out
}

// GetTransactionHistory returns every transaction that has arrived so far
// in this Engine's lifetime, in arrival order: the captured tx pool the
// optimization loop's context simulation (spec §4.4 step 1) draws bootstrap
// samples from.
func (e *Engine) GetTransactionHistory() []*domain.Transaction {
	return e.txHistory
}

// GetEvents returns every logged event with Tick in [from, to].
func (e *Engine) GetEvents(from, to int64) []domain.Event {
	var out []domain.Event
	for _, ev := range e.log {
		if ev.Tick >= from && ev.Tick <= to {
			out = append(out, ev)
		}
	}
	return out
}

func (e *Engine) nextTxID() money.TxID {
	e.nextTxSeq++
	return money.TxID(fmt.Sprintf("tx_%d_%d", e.tick, e.nextTxSeq))
}

// EffectiveLiquidity implements lsm.LiquidityLookup.
func (e *Engine) EffectiveLiquidity(agent money.AgentID) money.Cents {
	a, ok := e.agents[agent]
	if !ok {
		return 0
	}
	return a.EffectiveLiquidity()
}

var _ interface {
	EvaluateCost(ctx context.Context, agentID money.AgentID, kind policy.TreeKind, candidate *policy.Policy, script []*scenario.ScheduledEvent, simSeed uint64) (money.Cents, error)
} = (*Engine)(nil)

var _ scenario.Target = (*Engine)(nil)
