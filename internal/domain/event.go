package domain

import "rtgssim/internal/money"

// EventType enumerates the diagnostic and lifecycle events the engine
// emits, consumed by internal/events for hash-chained persistence.
type EventType string

const (
	EventTxArrived          EventType = "tx_arrived"
	EventTxSettledQueue1    EventType = "tx_settled_queue1"
	EventTxSettledQueue2    EventType = "tx_settled_queue2"
	EventTxSettledBilateral EventType = "tx_settled_bilateral_offset"
	EventTxSettledCycle     EventType = "tx_settled_lsm_cycle"
	EventTxMovedToQueue2    EventType = "tx_moved_to_queue2"
	EventTxSplit            EventType = "tx_split"
	EventTxDropped          EventType = "tx_dropped"
	EventTxOverdue          EventType = "tx_overdue"
	EventCollateralPosted   EventType = "collateral_posted"
	EventCollateralWithdrawn EventType = "collateral_withdrawn"
	EventCostAccrued        EventType = "cost_accrued"
	EventPolicyArithmeticFailure EventType = "policy_arithmetic_failure"
	EventLsmCycleRejected   EventType = "lsm_cycle_rejected"
	EventSettlementInfeasible EventType = "settlement_infeasible"
	EventEodProcessed       EventType = "eod_processed"
	EventEodPenalty         EventType = "eod_penalty"
	EventScenarioApplied    EventType = "scenario_applied"
	EventPolicyDecision     EventType = "policy_decision"
	EventArrivalRejected    EventType = "arrival_rejected"
)

// Event is one immutable record in the simulation's event log.
type Event struct {
	SeqNum  int64
	Tick    int64
	Day     int64
	Type    EventType
	AgentID *money.AgentID
	TxID    *money.TxID
	Details map[string]interface{}
}
