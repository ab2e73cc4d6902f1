// Package scenario implements the deterministic, tick-indexed event
// scheduler that injects scripted perturbations into a run: one-time and
// repeating events dispatched purely as a function of the current tick,
// never of wall-clock time (a simulation replayed at any speed, or not
// replayed in real time at all, must produce identical scheduling).
package scenario

import (
	"sort"

	"rtgssim/internal/money"
)

// EventType enumerates the kinds of scripted perturbation a scenario can
// carry.
type EventType string

const (
	EventDirectTransfer          EventType = "direct_transfer"
	EventCustomTransactionArrival EventType = "custom_transaction_arrival"
	EventCollateralAdjustment    EventType = "collateral_adjustment"
	EventGlobalArrivalRateChange EventType = "global_arrival_rate_change"
	EventAgentArrivalRateChange  EventType = "agent_arrival_rate_change"
	EventCounterpartyWeightChange EventType = "counterparty_weight_change"
	EventDeadlineWindowChange    EventType = "deadline_window_change"
)

// RepeatKind distinguishes a scripted event that fires once from one that
// recurs at a fixed tick interval.
type RepeatKind string

const (
	OneTime   RepeatKind = "one_time"
	Repeating RepeatKind = "repeating"
)

// ScheduledEvent is one entry in a scenario script.
type ScheduledEvent struct {
	ID         string
	Type       EventType
	Repeat     RepeatKind
	FirstTick  int64
	IntervalTicks int64 // only meaningful when Repeat == Repeating
	EndTick    int64   // 0 means unbounded for a repeating event

	Agent        money.AgentID
	Counterparty money.AgentID
	Amount       money.Cents
	Params       map[string]float64
}

// nextFireTick returns the next tick >= fromTick at which e fires, or
// (0, false) if it will never fire again.
func (e *ScheduledEvent) nextFireTick(fromTick int64) (int64, bool) {
	if e.Repeat == OneTime {
		if e.FirstTick >= fromTick {
			return e.FirstTick, true
		}
		return 0, false
	}
	if e.FirstTick > fromTick {
		return e.FirstTick, true
	}
	if e.IntervalTicks <= 0 {
		return 0, false
	}
	elapsed := fromTick - e.FirstTick
	periods := elapsed / e.IntervalTicks
	next := e.FirstTick + periods*e.IntervalTicks
	if next < fromTick {
		next += e.IntervalTicks
	}
	if e.EndTick > 0 && next > e.EndTick {
		return 0, false
	}
	return next, true
}

// Scheduler holds a fixed scenario script and dispatches the events due at
// each tick.
type Scheduler struct {
	events []*ScheduledEvent
	fired  map[string]int64 // event id -> last tick fired, for one-time de-duplication
}

// NewScheduler builds a Scheduler from a script. Events are sorted by id so
// iteration order (and therefore dispatch order among same-tick events) is
// stable across runs.
func NewScheduler(script []*ScheduledEvent) *Scheduler {
	sorted := append([]*ScheduledEvent(nil), script...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &Scheduler{events: sorted, fired: make(map[string]int64)}
}

// Due returns every scheduled event that fires exactly at tick, in
// deterministic (event id) order.
func (s *Scheduler) Due(tick int64) []*ScheduledEvent {
	var due []*ScheduledEvent
	for _, e := range s.events {
		next, ok := e.nextFireTick(s.lastDispatch(e))
		if !ok || next != tick {
			continue
		}
		due = append(due, e)
		s.fired[e.ID] = tick
	}
	return due
}

func (s *Scheduler) lastDispatch(e *ScheduledEvent) int64 {
	if last, ok := s.fired[e.ID]; ok {
		return last + 1
	}
	return e.FirstTick
}
