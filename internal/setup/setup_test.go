package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtgssim/internal/arrivals"
	"rtgssim/internal/config"
	"rtgssim/internal/money"
	"rtgssim/internal/policy"
)

func writePolicyFile(t *testing.T, dir, name string, kind policy.TreeKind, action policy.ActionType) string {
	t.Helper()
	p, err := policy.NewPolicy(kind, &policy.Tree{Action: &policy.Action{Type: action}}, nil)
	require.NoError(t, err)
	data, err := p.ToJSON()
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestBuildEngineConfigLoadsPoliciesAndArrivalSpecs(t *testing.T) {
	dir := t.TempDir()

	cfg := &config.Config{
		TicksPerDay: 24,
		NumDays:     1,
		MasterSeed:  7,
		CostRates: config.CostRatesConfig{
			OverdraftBpsPerTick: decimal.NewFromFloat(0.5),
		},
		LSM: config.LSMConfig{MinCycleLength: 3, MaxIterations: 10},
		Agents: []config.AgentConfig{
			{
				ID:                            "BANK_A",
				InitialBalanceCents:           1_000_000,
				ArrivalRatePerTick:            0.2,
				DistributionType:              "lognormal",
				AmountMeanCents:               5000,
				AmountStdDevCents:             2000,
				DeadlineWindowTicks:           10,
				CounterpartyWeights:           map[string]float64{"BANK_B": 1.0},
				PaymentPolicyFile:             writePolicyFile(t, dir, "a_payment.json", policy.TreePayment, policy.ActionReleaseV),
				StrategicCollateralPolicyFile: writePolicyFile(t, dir, "a_strategic.json", policy.TreeStrategicCollateral, policy.ActionHoldCollateral),
				EndOfTickCollateralPolicyFile: writePolicyFile(t, dir, "a_eod.json", policy.TreeEndOfTickCollateral, policy.ActionHoldCollateral),
				BankPolicyFile:                writePolicyFile(t, dir, "a_bank.json", policy.TreeBank, policy.ActionNoAction),
			},
			{
				ID:                            "BANK_B",
				InitialBalanceCents:           2_000_000,
				PaymentPolicyFile:             writePolicyFile(t, dir, "b_payment.json", policy.TreePayment, policy.ActionReleaseV),
				StrategicCollateralPolicyFile: writePolicyFile(t, dir, "b_strategic.json", policy.TreeStrategicCollateral, policy.ActionHoldCollateral),
				EndOfTickCollateralPolicyFile: writePolicyFile(t, dir, "b_eod.json", policy.TreeEndOfTickCollateral, policy.ActionHoldCollateral),
				BankPolicyFile:                writePolicyFile(t, dir, "b_bank.json", policy.TreeBank, policy.ActionNoAction),
			},
		},
	}

	ecfg, err := BuildEngineConfig(cfg, nil)
	require.NoError(t, err)

	assert.Len(t, ecfg.Agents, 2)
	assert.Equal(t, int64(24), ecfg.TicksPerDay)
	assert.Equal(t, 0.2, ecfg.AgentArrivalRates[money.AgentID("BANK_A")])
	assert.Equal(t, float64(1.0), ecfg.CounterpartyWeights[[2]money.AgentID{"BANK_A", "BANK_B"}])
	assert.Equal(t, arrivals.DistLognormal, ecfg.AmountSpecs[money.AgentID("BANK_A")].Distribution)

	for _, ag := range ecfg.Agents {
		if ag.ID == "BANK_A" {
			require.NotNil(t, ag.PaymentTree)
			require.NotNil(t, ag.BankTree)
		}
	}
}

func TestBuildEngineConfigErrorsOnMissingPolicyFile(t *testing.T) {
	cfg := &config.Config{
		TicksPerDay: 24,
		MasterSeed:  1,
		Agents: []config.AgentConfig{
			{
				ID:                            "BANK_A",
				PaymentPolicyFile:             "/nonexistent/payment.json",
				StrategicCollateralPolicyFile: "/nonexistent/strategic.json",
				EndOfTickCollateralPolicyFile: "/nonexistent/eod.json",
				BankPolicyFile:                "/nonexistent/bank.json",
			},
		},
	}
	_, err := BuildEngineConfig(cfg, nil)
	assert.Error(t, err)
}
