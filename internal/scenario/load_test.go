package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtgssim/internal/money"
)

func TestLoadScriptParsesEventsFromJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.json")
	doc := `[
		{"id":"e1","type":"direct_transfer","repeat":"one_time","first_tick":3,"agent":"BANK_A","counterparty":"BANK_B","amount_cents":50000},
		{"id":"e2","type":"global_arrival_rate_change","repeat":"repeating","first_tick":0,"interval_ticks":5,"params":{"rate":0.1}}
	]`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	events, err := LoadScript(path)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, EventDirectTransfer, events[0].Type)
	assert.Equal(t, money.AgentID("BANK_A"), events[0].Agent)
	assert.Equal(t, money.Cents(50000), events[0].Amount)
	assert.Equal(t, 0.1, events[1].Params["rate"])
}

func TestLoadScriptErrorsOnMissingFile(t *testing.T) {
	_, err := LoadScript("/nonexistent/scenario.json")
	assert.Error(t, err)
}
