package lsm

import (
	"rtgssim/internal/domain"
	"rtgssim/internal/money"
	"rtgssim/internal/queue2"
)

// ApplyCycleSettlement marks every transaction in a CycleResult settled and
// applies each participant's net position to its balance. The net positions
// sum to zero by construction, so aggregate balance across the cycle is
// unchanged.
func ApplyCycleSettlement(result CycleResult, agentsByID map[money.AgentID]*domain.AgentState, q *queue2.Queue) {
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
	for agent, net := range result.NetPositions {
		if a, ok := agentsByID[agent]; ok {
			a.Balance += net
		}
	}
}
