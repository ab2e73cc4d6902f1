// Package lsm implements the two liquidity-saving mechanisms that run over
// Queue 2 each tick: bilateral net offsetting between agent pairs, and
// multilateral cycle detection across three or more agents. Both settle
// all-or-nothing: either every transaction a pass selects clears, or none
// of them do, so a funding shortfall never leaves a participant half
// settled.
package lsm

import (
	"rtgssim/internal/domain"
	"rtgssim/internal/money"
	"rtgssim/internal/queue2"
)

// LiquidityLookup answers how much more an agent could pay out right now,
// so the LSM passes can funding-check a proposed offset without importing
// the whole engine.
type LiquidityLookup interface {
	EffectiveLiquidity(agent money.AgentID) money.Cents
}

// BilateralResult records one executed bilateral offset between two
// agents.
type BilateralResult struct {
	A, B         money.AgentID
	SettledTxIDs []money.TxID
	NetPayer     money.AgentID // the agent funding the net difference
	NetAmount    money.Cents
}

// BilateralPass scans q for every agent pair with obligations in both
// directions and offsets each pair's gross exposure down to its net
// difference, settling every transaction between the pair provided the net
// payer has enough effective liquidity to fund the net amount. Pairs are
// processed in a fixed order (lexicographic by agent id) so results are
// reproducible regardless of map iteration order.
func BilateralPass(q *queue2.Queue, liquidity LiquidityLookup, agents []money.AgentID) []BilateralResult {
	var results []BilateralResult
	seen := make(map[[2]money.AgentID]bool)
	// adjust tracks the net balance effect of offsets already selected this
	// pass, so a later pair's funding check sees what the earlier offsets
	// will do to the payer once they apply.
	adjust := make(map[money.AgentID]money.Cents)

	sortedAgents := append([]money.AgentID(nil), agents...)
	sortAgentIDs(sortedAgents)

	for _, a := range sortedAgents {
		for _, b := range sortedAgents {
			if a >= b {
				continue
			}
			key := [2]money.AgentID{a, b}
			if seen[key] {
				continue
			}
			seen[key] = true

			txs := q.Between(a, b)
			if len(txs) < 2 {
				continue
			}
			var aToB, bToA money.Cents
			for _, tx := range txs {
				if tx.Sender == a {
					aToB += tx.Remaining
				} else {
					bToA += tx.Remaining
				}
			}
			if aToB == 0 || bToA == 0 {
				continue // no bidirectional exposure, nothing to offset
			}

			var payer money.AgentID
			var net money.Cents
			switch {
			case aToB > bToA:
				payer, net = a, aToB-bToA
			case bToA > aToB:
				payer, net = b, bToA-aToB
			default:
				payer, net = "", 0 // exact offset, no net payer needed
			}

			if net > 0 && liquidity.EffectiveLiquidity(payer)+adjust[payer] < net {
				continue // funding check failed, leave this pair untouched
			}
			if net > 0 {
				payee := a
				if payer == a {
					payee = b
				}
				adjust[payer] -= net
				adjust[payee] += net
			}

			ids := make([]money.TxID, len(txs))
			for i, tx := range txs {
				ids[i] = tx.TxID
			}
			results = append(results, BilateralResult{
				A: a, B: b, SettledTxIDs: ids, NetPayer: payer, NetAmount: net,
			})
		}
	}
	return results
}

// ApplySettlement marks every transaction in a BilateralResult settled and
// applies the net balance movement, in the domain.AgentState map keyed by
// agent id. Callers (the engine) are responsible for calling this only
// after confirming the result still applies (state hasn't changed since
// BilateralPass ran).
func ApplySettlement(result BilateralResult, agentsByID map[money.AgentID]*domain.AgentState, q *queue2.Queue) {
	for _, id := range result.SettledTxIDs {
		tx, ok := q.Get(id)
		if !ok {
			continue
		}
		tx.Settled = tx.Remaining
		tx.Remaining = 0
		tx.State = domain.TxSettled
		q.Remove(id)
	}
	if result.NetAmount > 0 && result.NetPayer != "" {
		payer := agentsByID[result.NetPayer]
		var payee money.AgentID
		if result.NetPayer == result.A {
			payee = result.B
		} else {
			payee = result.A
		}
		receiver := agentsByID[payee]
		if payer != nil {
			payer.Balance -= result.NetAmount
		}
		if receiver != nil {
			receiver.Balance += result.NetAmount
		}
	}
}

func sortAgentIDs(ids []money.AgentID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
