// Package setup converts a loaded config.Config into the typed structures
// internal/engine consumes: per-agent domain.AgentState (with policy trees
// read from their JSON files), domain.CostRates, and the arrival
// distribution/weighting maps engine.Config carries.
package setup

import (
	"os"

	"rtgssim/internal/arrivals"
	"rtgssim/internal/config"
	"rtgssim/internal/domain"
	"rtgssim/internal/engine"
	"rtgssim/internal/money"
	"rtgssim/internal/policy"
	"rtgssim/internal/scenario"
	perrors "rtgssim/pkg/errors"
)

// BuildEngineConfig reads every agent's policy files and assembles an
// engine.Config ready to pass to engine.NewEngineWithSink. script is the
// scenario the run should replay; it is passed through unchanged.
func BuildEngineConfig(cfg *config.Config, script []*scenario.ScheduledEvent) (engine.Config, error) {
	agents := make([]*domain.AgentState, 0, len(cfg.Agents))
	amountSpecs := make(map[money.AgentID]arrivals.AmountSpec, len(cfg.Agents))
	deadlineWindows := make(map[money.AgentID]arrivals.DeadlineWindow)
	counterpartyWeights := make(map[[2]money.AgentID]float64)
	arrivalRates := make(map[money.AgentID]float64, len(cfg.Agents))

	for _, ac := range cfg.Agents {
		id := money.AgentID(ac.ID)
		a := domain.NewAgentState(id)
		a.Balance = money.Cents(ac.InitialBalanceCents)
		a.UnsecuredCap = money.Cents(ac.UnsecuredCapCents)
		a.MaxCollateralCap = money.Cents(ac.MaxCollateralCapCents)
		a.CollateralHaircut = ac.CollateralHaircut
		a.LiquidityBuffer = money.Cents(ac.LiquidityBufferCents)

		var err error
		if a.PaymentTree, err = loadPolicyFile(ac.PaymentPolicyFile); err != nil {
			return engine.Config{}, perrors.NewKinded(perrors.KindConfigInvalid, "agent "+ac.ID+": payment policy", err)
		}
		if a.StrategicCollateralTree, err = loadPolicyFile(ac.StrategicCollateralPolicyFile); err != nil {
			return engine.Config{}, perrors.NewKinded(perrors.KindConfigInvalid, "agent "+ac.ID+": strategic collateral policy", err)
		}
		if a.EndOfTickCollateralTree, err = loadPolicyFile(ac.EndOfTickCollateralPolicyFile); err != nil {
			return engine.Config{}, perrors.NewKinded(perrors.KindConfigInvalid, "agent "+ac.ID+": end-of-tick collateral policy", err)
		}
		if a.BankTree, err = loadPolicyFile(ac.BankPolicyFile); err != nil {
			return engine.Config{}, perrors.NewKinded(perrors.KindConfigInvalid, "agent "+ac.ID+": bank policy", err)
		}
		agents = append(agents, a)

		amountSpecs[id] = arrivals.AmountSpec{
			Distribution: arrivals.Distribution(ac.DistributionType),
			MeanCents:    money.Cents(ac.AmountMeanCents),
			StdDevCents:  money.Cents(ac.AmountStdDevCents),
		}
		if ac.DeadlineWindowTicks > 0 {
			deadlineWindows[id] = arrivals.DeadlineWindow{MinTicks: ac.DeadlineWindowTicks, MaxTicks: ac.DeadlineWindowTicks}
		}
		for counterparty, w := range ac.CounterpartyWeights {
			counterpartyWeights[[2]money.AgentID{id, money.AgentID(counterparty)}] = w
		}
		arrivalRates[id] = ac.ArrivalRatePerTick
	}

	costRates := &domain.CostRates{
		OverdraftBpsPerTick:      cfg.CostRates.OverdraftBpsPerTick,
		DelayCostPerTickPerCent:  cfg.CostRates.DelayCostPerTickPerCent,
		CollateralCostPerTickBps: cfg.CostRates.CollateralCostPerTickBps,
		SplitFrictionFlatCost:    cfg.CostRates.SplitFrictionFlatCost,
		DeadlinePenalty:          cfg.CostRates.DeadlinePenalty,
		EodPenaltyPerTransaction: cfg.CostRates.EodPenaltyPerTransaction,
		PriorityBandMultipliers:  cfg.CostRates.PriorityBandMultipliers,
		OverdueDelayMultiplier:   cfg.CostRates.OverdueDelayMultiplier,
	}

	return engine.Config{
		TicksPerDay:         int64(cfg.TicksPerDay),
		Agents:              agents,
		CostRates:           costRates,
		MinCycleLen:         cfg.LSM.MinCycleLength,
		MaxCycleLen:         cfg.LSM.MaxCycleLength,
		MaxLSMIterations:    cfg.LSM.MaxIterations,
		Queue2SoftCap:       cfg.Queue2SoftCap,
		Script:              script,
		MasterSeed:          cfg.MasterSeed,
		AmountSpecs:         amountSpecs,
		DeadlineWindows:     deadlineWindows,
		CounterpartyWeights: counterpartyWeights,
		AgentArrivalRates:   arrivalRates,
	}, nil
}

// loadPolicyFile reads and parses a policy tree from its canonical JSON
// wire form (internal/policy/serialize.go).
func loadPolicyFile(path string) (*policy.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return policy.PolicyFromJSON(data)
}
