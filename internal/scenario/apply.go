package scenario

import "rtgssim/internal/money"

// Target is the narrow interface the engine implements so scenario.Apply
// can mutate simulation state without this package importing the engine
// (which would create an import cycle, since the engine is what drives the
// scheduler in the first place).
type Target interface {
	DirectTransfer(sender, receiver money.AgentID, amount money.Cents)
	InjectCustomTransaction(sender, receiver money.AgentID, amount money.Cents, params map[string]float64)
	AdjustCollateral(agent money.AgentID, deltaAmount money.Cents)
	SetGlobalArrivalRate(rate float64)
	SetAgentArrivalRate(agent money.AgentID, rate float64)
	SetCounterpartyWeight(agent, counterparty money.AgentID, weight float64)
	SetDeadlineWindow(agent money.AgentID, minTicks, maxTicks int64)
}

// Apply dispatches a single due event against target.
func Apply(e *ScheduledEvent, target Target) {
	switch e.Type {
	case EventDirectTransfer:
		target.DirectTransfer(e.Agent, e.Counterparty, e.Amount)
	case EventCustomTransactionArrival:
		target.InjectCustomTransaction(e.Agent, e.Counterparty, e.Amount, e.Params)
	case EventCollateralAdjustment:
		target.AdjustCollateral(e.Agent, e.Amount)
	case EventGlobalArrivalRateChange:
		target.SetGlobalArrivalRate(e.Params["rate"])
	case EventAgentArrivalRateChange:
		target.SetAgentArrivalRate(e.Agent, e.Params["rate"])
	case EventCounterpartyWeightChange:
		target.SetCounterpartyWeight(e.Agent, e.Counterparty, e.Params["weight"])
	case EventDeadlineWindowChange:
		target.SetDeadlineWindow(e.Agent, int64(e.Params["min_ticks"]), int64(e.Params["max_ticks"]))
	}
}
