package policy

import "sort"

// Field is a closed-set identifier for a named evaluation-context field.
// Interpreter lookups in the hot path are always through this enum, never
// a string-keyed map; a string-keyed lookup (fieldsByName) exists only to
// support validation at tree-load time.
type Field int

// TreeKind identifies which of the four tree families a Field may legally
// appear in. Field references outside the appropriate tree's field set
// fail at validation time, not eval time.
type TreeKind int

const (
	TreePayment TreeKind = iota
	TreeStrategicCollateral
	TreeEndOfTickCollateral
	TreeBank
)

// String renders the tree kind's wire name, the same string used in the
// JSON policy document's "kind" field (see treeKindNames in serialize.go).
func (k TreeKind) String() string {
	switch k {
	case TreePayment:
		return "payment"
	case TreeStrategicCollateral:
		return "strategic_collateral"
	case TreeEndOfTickCollateral:
		return "end_of_tick_collateral"
	case TreeBank:
		return "bank"
	default:
		return "unknown"
	}
}

const (
	FieldUnknown Field = iota

	// --- Transaction fields (payment_tree only) ---
	FieldTxAmount
	FieldTxRemainingAmount
	FieldTxSettledAmount
	FieldTxTicksToDeadline
	FieldTxPriority
	FieldTxQueueAge
	FieldTxIsSplit
	FieldTxIsDivisible
	FieldTxOverdue
	FieldTxOverdueTicks

	// --- Agent balance / liquidity ---
	//
	// FieldEffectiveLiquidity is balance plus unsecured and
	// collateral-backed credit headroom: what the agent can actually pay
	// with right now. FieldAvailableLiquidity is own cash only,
	// max(balance, 0), excluding every credit facility. Policy authors
	// gating a Split or Release on "available_liquidity" when they mean
	// "effective_liquidity" will see the predicate collapse to zero the
	// moment the agent dips into overdraft, and a splitting policy built
	// on it splits ever smaller while never regaining headroom. The
	// engine exposes both on purpose; choosing the right one is the
	// tree author's responsibility.
	FieldBalance
	FieldCreditUsed
	FieldCreditHeadroom
	FieldUnsecuredCap
	FieldEffectiveLiquidity
	FieldAvailableLiquidity
	FieldLiquidityPressure
	FieldLiquidityBuffer
	FieldLiquidityBufferGap

	// --- Queue 1 ---
	FieldOutgoingQueueSize
	FieldQueue1TotalValue
	FieldQueue1LiquidityGap
	FieldQueue1Headroom
	FieldQueue1OldestAgeTicks
	FieldQueue1UrgentCount

	// --- Queue 2 ---
	FieldRtgsQueueSize
	FieldQueue2CountForAgent
	FieldQueue2ValueForAgent
	FieldQueue2NearestDeadline
	FieldQueue2FarthestDeadline

	// --- Collateral ---
	FieldPostedCollateral
	FieldMaxCollateralCapacity
	FieldRemainingCollateralCapacity
	FieldExcessCollateral
	FieldCollateralHaircut
	FieldCollateralBackedCredit

	// --- LSM-aware ---
	FieldMyQ2OutValueToCounterparty
	FieldMyQ2InValueFromCounterparty
	FieldMyBilateralNetQ2
	FieldMyQ2OutValueTop1
	FieldMyQ2OutValueTop2
	FieldMyQ2OutValueTop3
	FieldMyQ2OutValueTop4
	FieldMyQ2OutValueTop5

	// --- Cost rates / derived per-tx costs ---
	FieldOverdraftBpsPerTick
	FieldDelayCostPerTickPerCent
	FieldCollateralCostPerTickBps
	FieldSplitFrictionCost
	FieldDeadlinePenalty
	FieldEodPenaltyPerTransaction
	FieldProjectedDelayCostIfHeld
	FieldProjectedSplitFrictionCost

	// --- Time ---
	FieldCurrentTick
	FieldDayProgressFraction
	FieldIsEodRush
	FieldTicksRemainingInDay
	FieldCurrentDay

	// --- Throughput ---
	FieldMyThroughputFractionToday
	FieldThroughputGap
	FieldMyReleasedCountToday
	FieldMyReleasedValueToday

	// --- State registers bank_state_0 .. bank_state_9 ---
	FieldBankState0
	FieldBankState1
	FieldBankState2
	FieldBankState3
	FieldBankState4
	FieldBankState5
	FieldBankState6
	FieldBankState7
	FieldBankState8
	FieldBankState9

	fieldSentinelEnd
)

var stateRegisterFields = [10]Field{
	FieldBankState0, FieldBankState1, FieldBankState2, FieldBankState3, FieldBankState4,
	FieldBankState5, FieldBankState6, FieldBankState7, FieldBankState8, FieldBankState9,
}

// StateRegisterField returns the Field identifier for bank_state_<i>, i in [0,9].
func StateRegisterField(i int) (Field, bool) {
	if i < 0 || i >= len(stateRegisterFields) {
		return FieldUnknown, false
	}
	return stateRegisterFields[i], true
}

var fieldNames = map[Field]string{
	FieldTxAmount:                    "amount",
	FieldTxRemainingAmount:           "remaining_amount",
	FieldTxSettledAmount:             "settled_amount",
	FieldTxTicksToDeadline:           "ticks_to_deadline",
	FieldTxPriority:                  "priority",
	FieldTxQueueAge:                  "queue_age",
	FieldTxIsSplit:                   "is_split",
	FieldTxIsDivisible:               "is_divisible",
	FieldTxOverdue:                   "is_overdue",
	FieldTxOverdueTicks:              "overdue_ticks",
	FieldBalance:                     "balance",
	FieldCreditUsed:                  "credit_used",
	FieldCreditHeadroom:              "credit_headroom",
	FieldUnsecuredCap:                "unsecured_cap",
	FieldEffectiveLiquidity:          "effective_liquidity",
	FieldAvailableLiquidity:          "available_liquidity",
	FieldLiquidityPressure:           "liquidity_pressure",
	FieldLiquidityBuffer:             "liquidity_buffer",
	FieldLiquidityBufferGap:          "liquidity_buffer_gap",
	FieldOutgoingQueueSize:           "outgoing_queue_size",
	FieldQueue1TotalValue:            "queue1_total_value",
	FieldQueue1LiquidityGap:          "queue1_liquidity_gap",
	FieldQueue1Headroom:              "headroom",
	FieldQueue1OldestAgeTicks:        "queue1_oldest_age_ticks",
	FieldQueue1UrgentCount:           "queue1_urgent_count",
	FieldRtgsQueueSize:               "rtgs_queue_size",
	FieldQueue2CountForAgent:         "queue2_count_for_agent",
	FieldQueue2ValueForAgent:         "queue2_value_for_agent",
	FieldQueue2NearestDeadline:       "queue2_nearest_deadline",
	FieldQueue2FarthestDeadline:      "queue2_farthest_deadline",
	FieldPostedCollateral:            "posted_collateral",
	FieldMaxCollateralCapacity:       "max_collateral_capacity",
	FieldRemainingCollateralCapacity: "remaining_collateral_capacity",
	FieldExcessCollateral:            "excess_collateral",
	FieldCollateralHaircut:           "collateral_haircut",
	FieldCollateralBackedCredit:      "collateral_backed_credit",
	FieldMyQ2OutValueToCounterparty:  "my_q2_out_value_to_counterparty",
	FieldMyQ2InValueFromCounterparty: "my_q2_in_value_from_counterparty",
	FieldMyBilateralNetQ2:            "my_bilateral_net_q2",
	FieldMyQ2OutValueTop1:            "my_q2_out_value_top_1",
	FieldMyQ2OutValueTop2:            "my_q2_out_value_top_2",
	FieldMyQ2OutValueTop3:            "my_q2_out_value_top_3",
	FieldMyQ2OutValueTop4:            "my_q2_out_value_top_4",
	FieldMyQ2OutValueTop5:            "my_q2_out_value_top_5",
	FieldOverdraftBpsPerTick:         "overdraft_bps_per_tick",
	FieldDelayCostPerTickPerCent:     "delay_cost_per_tick_per_cent",
	FieldCollateralCostPerTickBps:    "collateral_cost_per_tick_bps",
	FieldSplitFrictionCost:           "split_friction_cost",
	FieldDeadlinePenalty:             "deadline_penalty",
	FieldEodPenaltyPerTransaction:    "eod_penalty_per_transaction",
	FieldProjectedDelayCostIfHeld:    "projected_delay_cost_if_held",
	FieldProjectedSplitFrictionCost:  "projected_split_friction_cost",
	FieldCurrentTick:                 "current_tick",
	FieldDayProgressFraction:         "day_progress_fraction",
	FieldIsEodRush:                   "is_eod_rush",
	FieldTicksRemainingInDay:         "ticks_remaining_in_day",
	FieldCurrentDay:                  "current_day",
	FieldMyThroughputFractionToday:   "my_throughput_fraction_today",
	FieldThroughputGap:               "throughput_gap",
	FieldMyReleasedCountToday:        "my_released_count_today",
	FieldMyReleasedValueToday:        "my_released_value_today",
	FieldBankState0:                  "bank_state_0",
	FieldBankState1:                  "bank_state_1",
	FieldBankState2:                  "bank_state_2",
	FieldBankState3:                  "bank_state_3",
	FieldBankState4:                  "bank_state_4",
	FieldBankState5:                  "bank_state_5",
	FieldBankState6:                  "bank_state_6",
	FieldBankState7:                  "bank_state_7",
	FieldBankState8:                  "bank_state_8",
	FieldBankState9:                  "bank_state_9",
}

var fieldsByName map[string]Field

func init() {
	fieldsByName = make(map[string]Field, len(fieldNames))
	for id, name := range fieldNames {
		fieldsByName[name] = id
	}
}

// FieldByName resolves a field name to its Field id, for use at tree-load
// validation time only.
func FieldByName(name string) (Field, bool) {
	f, ok := fieldsByName[name]
	return f, ok
}

// FieldName is the inverse of FieldByName, used when serializing a tree
// back to its canonical JSON form.
func FieldName(f Field) (string, bool) {
	name, ok := fieldNames[f]
	return name, ok
}

// AllFieldNames returns every named field's canonical string name, sorted,
// for schema-introspection callers (e.g. a CLI policy-schema command or an
// LLM proposal prompt listing legal field references).
func AllFieldNames() []string {
	out := make([]string, 0, len(fieldNames))
	for _, name := range fieldNames {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// transactionOnlyFields are legal only in the payment tree, since only a
// payment-tree evaluation carries a transaction in its context.
var transactionOnlyFields = map[Field]bool{
	FieldTxAmount: true, FieldTxRemainingAmount: true, FieldTxSettledAmount: true,
	FieldTxTicksToDeadline: true, FieldTxPriority: true, FieldTxQueueAge: true,
	FieldTxIsSplit: true, FieldTxIsDivisible: true, FieldTxOverdue: true, FieldTxOverdueTicks: true,
	FieldProjectedDelayCostIfHeld: true, FieldProjectedSplitFrictionCost: true,
}

// bankOnlyFields lists fields legal only in the once-per-tick bank tree.
// It is empty, so the throughput and state-register fields are legal in
// every tree kind.
var bankOnlyFields = map[Field]bool{}

// AllowedInTree reports whether Field f may be referenced inside a tree of
// kind k.
func AllowedInTree(f Field, k TreeKind) bool {
	if f <= FieldUnknown || f >= fieldSentinelEnd {
		return false
	}
	if transactionOnlyFields[f] && k != TreePayment {
		return false
	}
	if bankOnlyFields[f] && k != TreeBank {
		return false
	}
	return true
}
