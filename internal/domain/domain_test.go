package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"rtgssim/internal/money"
	"rtgssim/internal/policy"
)

func TestEffectiveLiquidityCombinesBalanceCreditAndCollateral(t *testing.T) {
	a := NewAgentState("A")
	a.Balance = 1000
	a.UnsecuredCap = 500
	a.MaxCollateralCap = 10_000
	a.PostedCollateral = 2000
	a.CollateralHaircut = decimal.NewFromFloat(0.1)

	assert.Equal(t, money.Cents(1800), a.CollateralBackedCredit())
	assert.Equal(t, money.Cents(1000+500+1800), a.EffectiveLiquidity())
}

func TestCollateralBackedCreditCapsAtMaxCollateralCap(t *testing.T) {
	a := NewAgentState("A")
	a.MaxCollateralCap = 1000
	a.PostedCollateral = 5000
	a.CollateralHaircut = decimal.Zero

	assert.Equal(t, money.Cents(1000), a.CollateralBackedCredit())
}

func TestRemainingCollateralCapacityNeverNegative(t *testing.T) {
	a := NewAgentState("A")
	a.MaxCollateralCap = 1000
	a.PostedCollateral = 1500

	assert.Equal(t, money.Cents(0), a.RemainingCollateralCapacity())
}

func TestResetDailyStateZeroesCountersAndRegisters(t *testing.T) {
	a := NewAgentState("A")
	a.ReleasedCountToday = 5
	a.ReleasedValueToday = 12345
	a.StateRegisters[3] = 7.5

	a.ResetDailyState()

	assert.Equal(t, int64(0), a.ReleasedCountToday)
	assert.Equal(t, money.Cents(0), a.ReleasedValueToday)
	assert.Equal(t, [MaxStateRegisters]float64{}, a.StateRegisters)
}

func TestTransactionSplitPreservesExactSum(t *testing.T) {
	tx := &Transaction{TxID: "p1", Sender: "A", Receiver: "B", Amount: 1000, Remaining: 1000}

	children := tx.Split(3, func(i int) money.TxID { return money.TxID("p1_child") })

	var total money.Cents
	for _, c := range children {
		total += c.Remaining
		assert.True(t, c.IsSplit)
		assert.Equal(t, money.TxID("p1"), c.ParentID)
	}
	assert.Equal(t, tx.Remaining, total)
	assert.Equal(t, money.Cents(333), children[0].Remaining)
	assert.Equal(t, money.Cents(334), children[2].Remaining, "last child absorbs the remainder")
}

func TestTransactionIsOverdueOnlyWhileUnsettled(t *testing.T) {
	tx := &Transaction{DeadlineTick: 10, State: TxPendingQueue1}
	assert.False(t, tx.IsOverdue(10))
	assert.True(t, tx.IsOverdue(11))

	tx.State = TxSettled
	assert.False(t, tx.IsOverdue(11), "a settled transaction is never overdue regardless of tick")
}

func TestPriorityMultiplierDefaultsToOne(t *testing.T) {
	rates := &CostRates{}
	m := rates.PriorityMultiplier(5)
	assert.True(t, m.Equal(decimal.NewFromInt(1)))

	rates.PriorityBandMultipliers = map[int]decimal.Decimal{5: decimal.NewFromFloat(2.5)}
	assert.True(t, rates.PriorityMultiplier(5).Equal(decimal.NewFromFloat(2.5)))
}

func TestPolicyForAndSetPolicyForRoundTripEveryTreeKind(t *testing.T) {
	a := NewAgentState("A")
	tree := &policy.Tree{Action: &policy.Action{Type: policy.ActionReleaseV}}
	p, err := policy.NewPolicy(policy.TreePayment, tree, nil)
	assert.NoError(t, err)

	for _, kind := range []policy.TreeKind{
		policy.TreePayment, policy.TreeStrategicCollateral,
		policy.TreeEndOfTickCollateral, policy.TreeBank,
	} {
		assert.Nil(t, a.PolicyFor(kind))
		a.SetPolicyFor(kind, p)
		assert.Same(t, p, a.PolicyFor(kind))
	}
}
