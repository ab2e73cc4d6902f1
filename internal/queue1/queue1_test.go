package queue1

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rtgssim/internal/domain"
	"rtgssim/internal/money"
)

func tx(id money.TxID, priority int, deadline, arrival int64) *domain.Transaction {
	return &domain.Transaction{TxID: id, Priority: priority, DeadlineTick: deadline, ArrivalTick: arrival, Remaining: money.Cents(100)}
}

func TestOrderedByPriorityThenDeadlineThenArrivalThenID(t *testing.T) {
	q := New()
	q.Add(tx("B", 1, 10, 0))
	q.Add(tx("A", 5, 10, 0))
	q.Add(tx("C", 5, 5, 0))
	q.Add(tx("D", 5, 5, 1))

	ordered := q.Ordered()
	ids := make([]money.TxID, len(ordered))
	for i, tx := range ordered {
		ids[i] = tx.TxID
	}
	assert.Equal(t, []money.TxID{"C", "D", "A", "B"}, ids)
}

func TestTotalValueAndRemove(t *testing.T) {
	q := New()
	q.Add(tx("A", 1, 1, 0))
	q.Add(tx("B", 1, 1, 0))
	assert.Equal(t, money.Cents(200), q.TotalValue())
	q.Remove("A")
	assert.Equal(t, money.Cents(100), q.TotalValue())
	assert.Equal(t, 1, q.Len())
}
