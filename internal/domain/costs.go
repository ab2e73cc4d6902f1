package domain

import "github.com/shopspring/decimal"

// CostRates is the per-run configuration of the cost model the accruer in
// internal/costs applies every tick. Rates that scale with money use
// decimal so fractional basis-point math stays exact until the final
// floor-round to cents.
type CostRates struct {
	OverdraftBpsPerTick        decimal.Decimal
	DelayCostPerTickPerCent    decimal.Decimal
	CollateralCostPerTickBps   decimal.Decimal
	SplitFrictionFlatCost      int64 // money.Cents, charged n-1 times for an n-way split
	DeadlinePenalty            int64 // money.Cents, charged once when a tx first goes overdue
	EodPenaltyPerTransaction   int64 // money.Cents, charged once per tx still unsettled at EOD
	PriorityBandMultipliers    map[int]decimal.Decimal // priority -> multiplier applied to delay cost

	// OverdueDelayMultiplier scales delay cost for transactions already past
	// their deadline; zero means unconfigured and is treated as 1.
	OverdueDelayMultiplier decimal.Decimal
}

// OverdueMultiplier returns the configured overdue delay multiplier,
// defaulting to 1 when unset.
func (c *CostRates) OverdueMultiplier() decimal.Decimal {
	if c.OverdueDelayMultiplier.IsZero() {
		return decimal.NewFromInt(1)
	}
	return c.OverdueDelayMultiplier
}

// PriorityMultiplier returns the delay-cost multiplier for a priority band,
// defaulting to 1 if the band has no configured multiplier.
func (c *CostRates) PriorityMultiplier(priority int) decimal.Decimal {
	if c.PriorityBandMultipliers == nil {
		return decimal.NewFromInt(1)
	}
	if m, ok := c.PriorityBandMultipliers[priority]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}
