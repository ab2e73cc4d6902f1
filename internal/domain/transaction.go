package domain

import "rtgssim/internal/money"

// TxState is the lifecycle state of a Transaction.
type TxState string

const (
	TxPendingQueue1 TxState = "pending_queue1"
	TxPendingQueue2 TxState = "pending_queue2"
	TxSettled       TxState = "settled"
	TxDropped       TxState = "dropped"
)

// Transaction is a single payment obligation flowing through the two-queue
// settlement pipeline.
type Transaction struct {
	TxID     money.TxID
	ParentID money.TxID // set on a child produced by a Split action

	Sender   money.AgentID
	Receiver money.AgentID

	Amount    money.Cents
	Remaining money.Cents
	Settled   money.Cents

	ArrivalTick  int64
	DeadlineTick int64
	Priority     int

	IsDivisible bool
	IsSplit     bool

	State          TxState
	OverdueSince   int64 // tick at which ticks_to_deadline first went negative; 0 means never overdue
	DeadlinePenaltyCharged bool

	// RtgsSeq is the ordering token assigned when the transaction enters
	// Queue 2; the settlement attempt processes the queue by (priority desc,
	// RtgsSeq asc). Zero until submission.
	RtgsSeq int64
}

// TicksToDeadline is negative once the transaction has passed its deadline.
func (t *Transaction) TicksToDeadline(currentTick int64) int64 {
	return t.DeadlineTick - currentTick
}

// IsOverdue reports whether the transaction has passed its deadline and has
// not yet settled.
func (t *Transaction) IsOverdue(currentTick int64) bool {
	return t.State != TxSettled && t.State != TxDropped && currentTick > t.DeadlineTick
}

// QueueAge is how many ticks the transaction has been waiting since arrival.
func (t *Transaction) QueueAge(currentTick int64) int64 {
	return currentTick - t.ArrivalTick
}

// Split divides the transaction's remaining amount into n child
// transactions of roughly equal size, the first n-1 getting
// floor(remaining/n) and the last absorbing the remainder so the sum is
// exact (no cent can be lost or manufactured by a split).
func (t *Transaction) Split(n int, nextIDs func(i int) money.TxID) []*Transaction {
	if n < 1 {
		n = 1
	}
	base := int64(t.Remaining) / int64(n)
	out := make([]*Transaction, 0, n)
	allocated := money.Cents(0)
	for i := 0; i < n; i++ {
		var amt money.Cents
		if i == n-1 {
			amt = t.Remaining - allocated
		} else {
			amt = money.Cents(base)
			allocated += amt
		}
		out = append(out, &Transaction{
			TxID:         nextIDs(i),
			ParentID:     t.TxID,
			Sender:       t.Sender,
			Receiver:     t.Receiver,
			Amount:       amt,
			Remaining:    amt,
			ArrivalTick:  t.ArrivalTick,
			DeadlineTick: t.DeadlineTick,
			Priority:     t.Priority,
			IsDivisible:  false,
			IsSplit:      true,
			State:        TxPendingQueue1,
		})
	}
	return out
}
