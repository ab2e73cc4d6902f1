// Package queue2 implements the system-wide queue of transactions that
// have cleared their originating agent's payment policy and are now
// waiting for RTGS settlement or an LSM offset/cycle. It keeps secondary
// indices (by sending agent, by receiving agent, by unordered pair) alongside the
// primary store so the engine and the LSM pass can look transactions up
// from whichever angle they need without a linear scan; every mutation
// updates all indices together so they can never drift apart.
package queue2

import (
	"sort"

	perrors "rtgssim/pkg/errors"

	"rtgssim/internal/domain"
	"rtgssim/internal/money"
)

type pairKey struct {
	A, B money.AgentID // always ordered so (sender,receiver) and (receiver,sender) hash the same
}

func orderedPair(a, b money.AgentID) pairKey {
	if a <= b {
		return pairKey{A: a, B: b}
	}
	return pairKey{A: b, B: a}
}

// Queue is the system-wide pending-settlement pool.
type Queue struct {
	byID       map[money.TxID]*domain.Transaction
	byAgentOut map[money.AgentID]map[money.TxID]bool
	byAgentIn  map[money.AgentID]map[money.TxID]bool
	byPair     map[pairKey]map[money.TxID]bool
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{
		byID:       make(map[money.TxID]*domain.Transaction),
		byAgentOut: make(map[money.AgentID]map[money.TxID]bool),
		byAgentIn:  make(map[money.AgentID]map[money.TxID]bool),
		byPair:     make(map[pairKey]map[money.TxID]bool),
	}
}

// Add inserts tx and updates every secondary index.
func (q *Queue) Add(tx *domain.Transaction) {
	q.byID[tx.TxID] = tx
	addTo(q.byAgentOut, tx.Sender, tx.TxID)
	addTo(q.byAgentIn, tx.Receiver, tx.TxID)
	addTo(q.byPair, orderedPair(tx.Sender, tx.Receiver), tx.TxID)
}

func addTo[K comparable](m map[K]map[money.TxID]bool, key K, id money.TxID) {
	set, ok := m[key]
	if !ok {
		set = make(map[money.TxID]bool)
		m[key] = set
	}
	set[id] = true
}

// Remove drops tx from every index. It is a no-op if the id is unknown.
func (q *Queue) Remove(id money.TxID) {
	tx, ok := q.byID[id]
	if !ok {
		return
	}
	delete(q.byID, id)
	removeFrom(q.byAgentOut, tx.Sender, id)
	removeFrom(q.byAgentIn, tx.Receiver, id)
	removeFrom(q.byPair, orderedPair(tx.Sender, tx.Receiver), id)
}

func removeFrom[K comparable](m map[K]map[money.TxID]bool, key K, id money.TxID) {
	if set, ok := m[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(m, key)
		}
	}
}

// Get looks a transaction up by id.
func (q *Queue) Get(id money.TxID) (*domain.Transaction, bool) {
	tx, ok := q.byID[id]
	return tx, ok
}

// Len reports the total number of queued transactions.
func (q *Queue) Len() int {
	return len(q.byID)
}

// Outgoing returns every transaction sent by agent, in ascending tx id order.
func (q *Queue) Outgoing(agent money.AgentID) []*domain.Transaction {
	return q.resolve(q.byAgentOut[agent])
}

// Incoming returns every transaction addressed to agent, in ascending tx id order.
func (q *Queue) Incoming(agent money.AgentID) []*domain.Transaction {
	return q.resolve(q.byAgentIn[agent])
}

// Between returns every transaction between a and b in either direction.
func (q *Queue) Between(a, b money.AgentID) []*domain.Transaction {
	return q.resolve(q.byPair[orderedPair(a, b)])
}

func (q *Queue) resolve(ids map[money.TxID]bool) []*domain.Transaction {
	out := make([]*domain.Transaction, 0, len(ids))
	for id := range ids {
		if tx, ok := q.byID[id]; ok {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TxID < out[j].TxID })
	return out
}

// SettlementOrder returns every queued transaction in the order the RTGS
// settlement attempt processes them: priority descending, then submission
// order (the RtgsSeq token assigned on entry), then tx id.
func (q *Queue) SettlementOrder() []*domain.Transaction {
	out := make([]*domain.Transaction, 0, len(q.byID))
	for _, tx := range q.byID {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.RtgsSeq != b.RtgsSeq {
			return a.RtgsSeq < b.RtgsSeq
		}
		return a.TxID < b.TxID
	})
	return out
}

// ValueForAgent sums the remaining amount of every transaction sent by
// agent.
func (q *Queue) ValueForAgent(agent money.AgentID) money.Cents {
	var total money.Cents
	for _, tx := range q.Outgoing(agent) {
		total += tx.Remaining
	}
	return total
}

// NearestDeadline returns the soonest deadline tick among agent's queued
// outgoing transactions, and false if it has none.
func (q *Queue) NearestDeadline(agent money.AgentID) (int64, bool) {
	txs := q.Outgoing(agent)
	if len(txs) == 0 {
		return 0, false
	}
	best := txs[0].DeadlineTick
	for _, tx := range txs[1:] {
		if tx.DeadlineTick < best {
			best = tx.DeadlineTick
		}
	}
	return best, true
}

// FarthestDeadline returns the furthest deadline tick among agent's queued
// outgoing transactions, and false if it has none.
func (q *Queue) FarthestDeadline(agent money.AgentID) (int64, bool) {
	txs := q.Outgoing(agent)
	if len(txs) == 0 {
		return 0, false
	}
	best := txs[0].DeadlineTick
	for _, tx := range txs[1:] {
		if tx.DeadlineTick > best {
			best = tx.DeadlineTick
		}
	}
	return best, true
}

// CounterpartyTotals reports each counterparty agent's total outgoing
// value owed by agent, sorted descending by value, for the "top K
// counterparty exposure" fields.
func (q *Queue) CounterpartyTotals(agent money.AgentID) []CounterpartyTotal {
	totals := make(map[money.AgentID]money.Cents)
	for _, tx := range q.Outgoing(agent) {
		totals[tx.Receiver] += tx.Remaining
	}
	out := make([]CounterpartyTotal, 0, len(totals))
	for cp, v := range totals {
		out = append(out, CounterpartyTotal{Counterparty: cp, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Counterparty < out[j].Counterparty
	})
	return out
}

// CounterpartyTotal is one agent's aggregate outgoing exposure to a single
// counterparty.
type CounterpartyTotal struct {
	Counterparty money.AgentID
	Value        money.Cents
}

// TopKOutgoingValue returns the kth largest (1-indexed) counterparty
// exposure value for agent, or 0 if it has fewer than k counterparties.
func (q *Queue) TopKOutgoingValue(agent money.AgentID, k int) money.Cents {
	totals := q.CounterpartyTotals(agent)
	if k < 1 || k > len(totals) {
		return 0
	}
	return totals[k-1].Value
}

// CheckConsistency verifies the by-sending-agent index against the primary
// store, returning ErrQueue2Desynced if that index holds an id the store
// lacks or misses one the store holds. The by-receiving-agent and by-pair
// indices are not checked. Intended for use in tests and as a defensive
// assertion after bulk mutation.
func (q *Queue) CheckConsistency() error {
	count := 0
	for _, set := range q.byAgentOut {
		count += len(set)
	}
	seen := make(map[money.TxID]bool)
	for _, set := range q.byAgentOut {
		for id := range set {
			if _, ok := q.byID[id]; !ok {
				return perrors.ErrQueue2Desynced
			}
			seen[id] = true
		}
	}
	if len(seen) != len(q.byID) {
		return perrors.ErrQueue2Desynced
	}
	return nil
}
