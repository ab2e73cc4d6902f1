// Package queue1 implements the per-agent outgoing queue: transactions an
// agent's payment policy has not yet released toward Queue 2. Iteration
// order is deterministic so a policy pass produces identical results
// across runs with the same seed.
package queue1

import (
	"sort"

	"rtgssim/internal/domain"
	"rtgssim/internal/money"
)

// Queue holds one agent's pending outgoing transactions.
type Queue struct {
	byID map[money.TxID]*domain.Transaction
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{byID: make(map[money.TxID]*domain.Transaction)}
}

// Add inserts a transaction into the queue.
func (q *Queue) Add(tx *domain.Transaction) {
	q.byID[tx.TxID] = tx
}

// Remove drops a transaction from the queue (it settled, dropped, or moved
// to Queue 2).
func (q *Queue) Remove(id money.TxID) {
	delete(q.byID, id)
}

// Get returns a transaction by id.
func (q *Queue) Get(id money.TxID) (*domain.Transaction, bool) {
	tx, ok := q.byID[id]
	return tx, ok
}

// Len reports how many transactions are queued.
func (q *Queue) Len() int {
	return len(q.byID)
}

// TotalValue sums the remaining amount of every queued transaction.
func (q *Queue) TotalValue() money.Cents {
	var total money.Cents
	for _, tx := range q.byID {
		total += tx.Remaining
	}
	return total
}

// Ordered returns every transaction in the queue's canonical evaluation
// order: priority descending, deadline ascending, arrival tick ascending,
// tx id ascending as a final deterministic tie-break.
func (q *Queue) Ordered() []*domain.Transaction {
	out := make([]*domain.Transaction, 0, len(q.byID))
	for _, tx := range q.byID {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.DeadlineTick != b.DeadlineTick {
			return a.DeadlineTick < b.DeadlineTick
		}
		if a.ArrivalTick != b.ArrivalTick {
			return a.ArrivalTick < b.ArrivalTick
		}
		return a.TxID < b.TxID
	})
	return out
}

// UrgentCount reports how many queued transactions are at or above the
// given priority.
func (q *Queue) UrgentCount(minPriority int) int {
	n := 0
	for _, tx := range q.byID {
		if tx.Priority >= minPriority {
			n++
		}
	}
	return n
}

// OldestAgeTicks returns the queue age, in ticks, of its longest-waiting
// transaction, or 0 if the queue is empty.
func (q *Queue) OldestAgeTicks(currentTick int64) int64 {
	var oldest int64
	for _, tx := range q.byID {
		age := tx.QueueAge(currentTick)
		if age > oldest {
			oldest = age
		}
	}
	return oldest
}
