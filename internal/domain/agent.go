// Package domain holds the core record types shared by every simulation
// component: agents, transactions, and the cost-rate configuration that
// drives per-tick cost accrual.
package domain

import (
	"github.com/shopspring/decimal"

	"rtgssim/internal/money"
	"rtgssim/internal/policy"
)

// MaxStateRegisters is the number of named float registers a bank_tree may
// read and write via SetState/AddState, reset to zero at the start of each
// simulated day.
const MaxStateRegisters = 10

// AgentState is the full mutable state of one participant bank, including
// its current policy trees. Policy trees are pointers so an agent can swap
// in a candidate policy for evaluation without copying the whole struct.
type AgentState struct {
	ID money.AgentID

	Balance              money.Cents
	UnsecuredCap         money.Cents
	PostedCollateral     money.Cents
	MaxCollateralCap     money.Cents
	CollateralHaircut    decimal.Decimal
	LiquidityBuffer      money.Cents

	PaymentTree                 *policy.Policy
	StrategicCollateralTree     *policy.Policy
	EndOfTickCollateralTree     *policy.Policy
	BankTree                    *policy.Policy

	StateRegisters [MaxStateRegisters]float64

	ReleasedCountToday int64
	ReleasedValueToday money.Cents

	CostsToday DayCosts
}

// DayCosts accumulates one agent's costs for the current simulated day, by
// category, reset at the EOD boundary alongside the state registers. Every
// figure here is also emitted as a cost_accrued event at the tick it was
// charged; the accumulator exists so end-of-day reporting and the
// optimizer's cost breakdown never need to re-aggregate the event stream.
type DayCosts struct {
	Overdraft       money.Cents
	Delay           money.Cents
	Collateral      money.Cents
	SplitFriction   money.Cents
	DeadlinePenalty money.Cents
	EodPenalty      money.Cents
}

// Total sums every category.
func (d DayCosts) Total() money.Cents {
	return d.Overdraft + d.Delay + d.Collateral + d.SplitFriction + d.DeadlinePenalty + d.EodPenalty
}

// NewAgentState constructs an agent with zeroed balances and no trees
// attached; trees are assigned by the caller after construction once they
// are known to validate.
func NewAgentState(id money.AgentID) *AgentState {
	return &AgentState{
		ID:                id,
		CollateralHaircut: decimal.Zero,
	}
}

// EffectiveLiquidity is the cash an agent could still draw on this tick:
// balance plus unsecured credit headroom plus collateral-backed credit
// headroom, net of what is already drawn. It never accounts for what is
// sitting in Queue 2 awaiting LSM offset. The "available_liquidity" policy
// field differs from it by excluding all credit: it is own cash only,
// max(balance, 0).
func (a *AgentState) EffectiveLiquidity() money.Cents {
	collateralBacked := a.CollateralBackedCredit()
	return a.Balance + a.UnsecuredCap + collateralBacked
}

// CollateralBackedCredit is posted collateral reduced by its haircut,
// floor-rounded to whole cents, and capped at MaxCollateralCap.
func (a *AgentState) CollateralBackedCredit() money.Cents {
	haircutFactor := decimal.NewFromInt(1).Sub(a.CollateralHaircut)
	backed := money.FromDecimal(a.PostedCollateral.ToDecimal().Mul(haircutFactor))
	if backed > a.MaxCollateralCap {
		return a.MaxCollateralCap
	}
	if backed < 0 {
		return 0
	}
	return backed
}

// RemainingCollateralCapacity is how much more collateral this agent could
// still post before hitting MaxCollateralCap.
func (a *AgentState) RemainingCollateralCapacity() money.Cents {
	remaining := a.MaxCollateralCap - a.PostedCollateral
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PolicyFor returns the agent's current tree for the given kind, so
// callers driving all four trees generically (the optimization loop
// iterates agent x tree-kind pairs) don't need a type switch at every call
// site.
func (a *AgentState) PolicyFor(kind policy.TreeKind) *policy.Policy {
	switch kind {
	case policy.TreePayment:
		return a.PaymentTree
	case policy.TreeStrategicCollateral:
		return a.StrategicCollateralTree
	case policy.TreeEndOfTickCollateral:
		return a.EndOfTickCollateralTree
	case policy.TreeBank:
		return a.BankTree
	default:
		return nil
	}
}

// SetPolicyFor installs p as the agent's tree for the given kind, the
// mutation side of PolicyFor used when the optimization loop accepts a
// candidate.
func (a *AgentState) SetPolicyFor(kind policy.TreeKind, p *policy.Policy) {
	switch kind {
	case policy.TreePayment:
		a.PaymentTree = p
	case policy.TreeStrategicCollateral:
		a.StrategicCollateralTree = p
	case policy.TreeEndOfTickCollateral:
		a.EndOfTickCollateralTree = p
	case policy.TreeBank:
		a.BankTree = p
	}
}

// ResetDailyState zeroes the per-day counters and state registers; called
// by the engine at the EOD boundary (see internal/engine).
func (a *AgentState) ResetDailyState() {
	a.ReleasedCountToday = 0
	a.ReleasedValueToday = 0
	a.CostsToday = DayCosts{}
	for i := range a.StateRegisters {
		a.StateRegisters[i] = 0
	}
}
