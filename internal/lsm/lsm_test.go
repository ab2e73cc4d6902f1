package lsm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rtgssim/internal/domain"
	"rtgssim/internal/money"
	"rtgssim/internal/queue2"
)

type fakeLiquidity struct {
	byAgent map[money.AgentID]money.Cents
}

func (f fakeLiquidity) EffectiveLiquidity(agent money.AgentID) money.Cents {
	return f.byAgent[agent]
}

func tx(id money.TxID, sender, receiver money.AgentID, amount money.Cents) *domain.Transaction {
	return &domain.Transaction{TxID: id, Sender: sender, Receiver: receiver, Remaining: amount, State: domain.TxPendingQueue2}
}

func TestBilateralOffsetSettlesBothDirections(t *testing.T) {
	q := queue2.New()
	q.Add(tx("1", "A", "B", 1000))
	q.Add(tx("2", "B", "A", 400))

	liq := fakeLiquidity{byAgent: map[money.AgentID]money.Cents{"A": 10000, "B": 10000}}
	results := BilateralPass(q, liq, []money.AgentID{"A", "B"})
	if assert.Len(t, results, 1) {
		assert.Equal(t, money.AgentID("A"), results[0].NetPayer)
		assert.Equal(t, money.Cents(600), results[0].NetAmount)
		assert.Len(t, results[0].SettledTxIDs, 2)
	}
}

func TestBilateralOffsetRejectedWithoutFunding(t *testing.T) {
	q := queue2.New()
	q.Add(tx("1", "A", "B", 1000))
	q.Add(tx("2", "B", "A", 400))

	liq := fakeLiquidity{byAgent: map[money.AgentID]money.Cents{"A": 0, "B": 10000}}
	results := BilateralPass(q, liq, []money.AgentID{"A", "B"})
	assert.Len(t, results, 0)
}

func TestBilateralOffsetSkipsUnidirectionalPairs(t *testing.T) {
	q := queue2.New()
	q.Add(tx("1", "A", "B", 1000))
	q.Add(tx("2", "A", "B", 400))

	liq := fakeLiquidity{byAgent: map[money.AgentID]money.Cents{"A": 10000, "B": 10000}}
	results := BilateralPass(q, liq, []money.AgentID{"A", "B"})
	assert.Len(t, results, 0)
}

func TestCyclePassFindsThreeWayCycle(t *testing.T) {
	q := queue2.New()
	q.Add(tx("1", "A", "B", 500))
	q.Add(tx("2", "B", "C", 500))
	q.Add(tx("3", "C", "A", 500))

	liq := fakeLiquidity{byAgent: map[money.AgentID]money.Cents{"A": 10000, "B": 10000, "C": 10000}}
	results := CyclePass(q, liq, []money.AgentID{"A", "B", "C"}, 3, 5, 10)
	if assert.Len(t, results, 1) {
		assert.Equal(t, money.Cents(1500), results[0].TotalValue)
		assert.Len(t, results[0].SettledTxIDs, 3)
		for _, agent := range []money.AgentID{"A", "B", "C"} {
			assert.Equal(t, money.Cents(0), results[0].NetPositions[agent], "an equal ring has zero net position everywhere")
		}
	}
}

// TestCyclePassEqualRingNeedsNoFunding: a perfectly balanced ring has zero
// net position at every node, so it settles even when no participant has
// any liquidity at all.
func TestCyclePassEqualRingNeedsNoFunding(t *testing.T) {
	q := queue2.New()
	q.Add(tx("1", "A", "B", 500))
	q.Add(tx("2", "B", "C", 500))
	q.Add(tx("3", "C", "A", 500))

	liq := fakeLiquidity{byAgent: map[money.AgentID]money.Cents{"A": 0, "B": 0, "C": 0}}
	results := CyclePass(q, liq, []money.AgentID{"A", "B", "C"}, 3, 5, 10)
	assert.Len(t, results, 1)
}

// TestCyclePassUnequalRingFundingGate is the unequal-ring boundary case:
// A pays out 800 but receives only 500, so A alone has a net outflow of
// 300; the cycle settles iff A can fund exactly that net.
func TestCyclePassUnequalRingFundingGate(t *testing.T) {
	build := func() *queue2.Queue {
		q := queue2.New()
		q.Add(tx("1", "A", "B", 800))
		q.Add(tx("2", "B", "C", 500))
		q.Add(tx("3", "C", "A", 500))
		return q
	}

	poor := fakeLiquidity{byAgent: map[money.AgentID]money.Cents{"A": 299, "B": 0, "C": 0}}
	assert.Len(t, CyclePass(build(), poor, []money.AgentID{"A", "B", "C"}, 3, 5, 10), 0)

	funded := fakeLiquidity{byAgent: map[money.AgentID]money.Cents{"A": 300, "B": 0, "C": 0}}
	results := CyclePass(build(), funded, []money.AgentID{"A", "B", "C"}, 3, 5, 10)
	if assert.Len(t, results, 1) {
		assert.Equal(t, money.Cents(-300), results[0].NetPositions["A"])
		assert.Equal(t, money.Cents(300), results[0].NetPositions["B"])
		assert.Equal(t, money.Cents(0), results[0].NetPositions["C"])
	}
}

func TestApplyCycleSettlementClearsQueueAndMovesNets(t *testing.T) {
	q := queue2.New()
	q.Add(tx("1", "A", "B", 800))
	q.Add(tx("2", "B", "C", 500))
	q.Add(tx("3", "C", "A", 500))

	agents := map[money.AgentID]*domain.AgentState{
		"A": {ID: "A", Balance: 1000},
		"B": {ID: "B", Balance: 1000},
		"C": {ID: "C", Balance: 1000},
	}
	result := CycleResult{
		Agents:       []money.AgentID{"A", "B", "C", "A"},
		SettledTxIDs: []money.TxID{"1", "2", "3"},
		NetPositions: map[money.AgentID]money.Cents{"A": -300, "B": 300, "C": 0},
		TotalValue:   1800,
	}
	ApplyCycleSettlement(result, agents, q)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, money.Cents(700), agents["A"].Balance)
	assert.Equal(t, money.Cents(1300), agents["B"].Balance)
	assert.Equal(t, money.Cents(1000), agents["C"].Balance)
}
