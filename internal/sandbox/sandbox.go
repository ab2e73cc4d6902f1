// Package sandbox builds the scenario script for one optimization
// iteration's sub-simulation: a sampled batch of historical transactions,
// replayed as scripted custom-transaction-arrival events so every
// candidate/incumbent comparison in that iteration sees byte-identical
// input.
package sandbox

import (
	"fmt"

	"rtgssim/internal/domain"
	"rtgssim/internal/scenario"
)

// BuildArrivalScript converts a sampled batch of transactions into a
// one-time scenario script that injects each at its original arrival tick,
// so a sub-simulation replays the sample deterministically regardless of
// which policy (candidate or incumbent) is under evaluation.
func BuildArrivalScript(sample []*domain.Transaction) []*scenario.ScheduledEvent {
	out := make([]*scenario.ScheduledEvent, 0, len(sample))
	for i, tx := range sample {
		out = append(out, &scenario.ScheduledEvent{
			ID:           fmt.Sprintf("sandbox_arrival_%d", i),
			Type:         scenario.EventCustomTransactionArrival,
			Repeat:       scenario.OneTime,
			FirstTick:    tx.ArrivalTick,
			Agent:        tx.Sender,
			Counterparty: tx.Receiver,
			Amount:       tx.Amount,
			Params: map[string]float64{
				"deadline_tick": float64(tx.DeadlineTick),
				"priority":      float64(tx.Priority),
				"is_divisible":  boolToFloat(tx.IsDivisible),
			},
		})
	}
	return out
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
