// Package costs applies the per-tick cost model to agents and
// transactions: overdraft interest, delay cost, collateral opportunity
// cost, split friction, and the one-time deadline and end-of-day
// penalties. All rate math runs in decimal and is floor-rounded to whole
// cents only at the point a cost is actually charged, so compounding
// basis-point rates across many ticks never drifts from rounding error
// accumulating charge by charge.
package costs

import (
	"github.com/shopspring/decimal"

	"rtgssim/internal/domain"
	"rtgssim/internal/money"
)

// Accruer applies CostRates against live agent and transaction state.
type Accruer struct {
	Rates *domain.CostRates
}

// NewAccruer builds an Accruer bound to a rate table.
func NewAccruer(rates *domain.CostRates) *Accruer {
	return &Accruer{Rates: rates}
}

// OverdraftCost charges overdraft interest on the negative portion of an
// agent's balance, for one tick. Returns 0 if the agent's balance is
// non-negative.
func (a *Accruer) OverdraftCost(balance money.Cents) money.Cents {
	if balance >= 0 {
		return 0
	}
	overdrawn := (-balance).ToDecimal()
	cost := overdrawn.Mul(a.Rates.OverdraftBpsPerTick).Div(decimal.NewFromInt(10000))
	return money.FromDecimal(cost)
}

// DelayCost charges the per-tick cost of a transaction still resident in
// Queue 1, scaled by its priority band's multiplier, and further by the
// overdue multiplier once the transaction is past its deadline.
// Transactions already in Queue 2 are never charged delay cost: once a
// payment policy has released a transaction, further delay is a
// settlement-layer property, not a decision the owning agent is still
// making.
func (a *Accruer) DelayCost(tx *domain.Transaction, currentTick int64) money.Cents {
	if tx.State != domain.TxPendingQueue1 {
		return 0
	}
	multiplier := a.Rates.PriorityMultiplier(tx.Priority)
	cost := tx.Remaining.ToDecimal().
		Mul(a.Rates.DelayCostPerTickPerCent).
		Mul(multiplier)
	if tx.IsOverdue(currentTick) {
		cost = cost.Mul(a.Rates.OverdueMultiplier())
	}
	return money.FromDecimal(cost)
}

// CollateralCost charges the per-tick opportunity cost of posted
// collateral.
func (a *Accruer) CollateralCost(posted money.Cents) money.Cents {
	if posted <= 0 {
		return 0
	}
	cost := posted.ToDecimal().Mul(a.Rates.CollateralCostPerTickBps).Div(decimal.NewFromInt(10000))
	return money.FromDecimal(cost)
}

// SplitFrictionCost is the flat cost per extra child of a Split action;
// the engine charges it n-1 times for an n-way split.
func (a *Accruer) SplitFrictionCost() money.Cents {
	return money.Cents(a.Rates.SplitFrictionFlatCost)
}

// DeadlinePenalty is the flat one-time cost charged the first tick a
// transaction becomes overdue. Callers must only invoke this once per
// transaction (guarded by Transaction.DeadlinePenaltyCharged).
func (a *Accruer) DeadlinePenalty() money.Cents {
	return money.Cents(a.Rates.DeadlinePenalty)
}

// EodPenalty is the flat one-time cost charged per transaction still
// unsettled when end-of-day processing runs.
func (a *Accruer) EodPenalty() money.Cents {
	return money.Cents(a.Rates.EodPenaltyPerTransaction)
}
