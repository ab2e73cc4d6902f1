package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const validYAML = `
ticks_per_day: 24
num_days: 1
master_seed: 1

agents:
  - id: BANK_A
    unsecured_cap_cents: 100000
    max_collateral_cap_cents: 500000
    liquidity_buffer_cents: 1000
    initial_balance_cents: 1000000
    arrival_rate_per_tick: 0.1
    payment_policy_file: payment.json
    strategic_collateral_policy_file: strategic.json
    end_of_tick_collateral_policy_file: eot.json
    bank_policy_file: bank.json

cost_rates:
  overdraft_bps_per_tick: "5"

lsm:
  min_cycle_length: 3
  max_iterations: 10

database:
  dsn: "postgres://localhost/rtgssim"
  max_open_conns: 5

redis:
  namespace: rtgssim

llm:
  base_url: "http://localhost:9000"
  model: "policy-advisor"
  timeout_seconds: 10

optimization:
  max_iterations: 50
  stability_window: 5
  bootstrap_samples: 100
  min_improvement_cents: 1
`

func writeTempConfig(t *testing.T, contents string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, validYAML)

	cfg, err := Load(path)

	assert.NoError(t, err)
	assert.Equal(t, 24, cfg.TicksPerDay)
	assert.Len(t, cfg.Agents, 1)
	assert.Equal(t, "BANK_A", cfg.Agents[0].ID)
	assert.Equal(t, 10, cfg.LSM.MaxIterations)
}

func TestLoadRejectsInvalidAgentID(t *testing.T) {
	path := writeTempConfig(t, `
ticks_per_day: 24
num_days: 1
agents:
  - id: "bank-a!"
    payment_policy_file: p.json
    strategic_collateral_policy_file: s.json
    end_of_tick_collateral_policy_file: e.json
    bank_policy_file: b.json
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsEmptyAgentList(t *testing.T) {
	path := writeTempConfig(t, `
ticks_per_day: 24
num_days: 1
agents: []
`)

	_, err := Load(path)
	assert.Error(t, err)
}
