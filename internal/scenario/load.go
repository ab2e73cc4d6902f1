package scenario

import (
	"encoding/json"
	"os"

	"rtgssim/internal/money"
	perrors "rtgssim/pkg/errors"
)

// wireEvent is the JSON wire form of a ScheduledEvent.
type wireEvent struct {
	ID            string             `json:"id"`
	Type          string             `json:"type"`
	Repeat        string             `json:"repeat"`
	FirstTick     int64              `json:"first_tick"`
	IntervalTicks int64              `json:"interval_ticks"`
	EndTick       int64              `json:"end_tick"`
	Agent         string             `json:"agent"`
	Counterparty  string             `json:"counterparty"`
	AmountCents   int64              `json:"amount_cents"`
	Params        map[string]float64 `json:"params"`
}

// LoadScript reads a scenario script from its JSON file form: a top-level
// array of scripted events, referenced by a run's scenario_file config.
func LoadScript(path string) ([]*ScheduledEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perrors.NewKinded(perrors.KindScenarioInvalid, "reading scenario file", err)
	}
	var wire []wireEvent
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, perrors.NewKinded(perrors.KindScenarioInvalid, "parsing scenario file", err)
	}
	out := make([]*ScheduledEvent, 0, len(wire))
	for _, w := range wire {
		out = append(out, &ScheduledEvent{
			ID:            w.ID,
			Type:          EventType(w.Type),
			Repeat:        RepeatKind(w.Repeat),
			FirstTick:     w.FirstTick,
			IntervalTicks: w.IntervalTicks,
			EndTick:       w.EndTick,
			Agent:         money.AgentID(w.Agent),
			Counterparty:  money.AgentID(w.Counterparty),
			Amount:        money.Cents(w.AmountCents),
			Params:        w.Params,
		})
	}
	return out, nil
}
