package engine

import (
	"rtgssim/internal/domain"
	"rtgssim/internal/money"
	"rtgssim/internal/policy"
)

// agentContext assembles the EvalContext for one policy evaluation: agent
// and queue-derived fields are always populated; transaction fields are
// populated only when tx is non-nil (payment tree evaluations).
func (e *Engine) agentContext(a *domain.AgentState, tx *domain.Transaction) *policy.EvalContext {
	ctx := policy.NewEvalContext()
	for name, v := range e.policyParams(a) {
		ctx.SetParam(name, v)
	}

	creditUsed := money.Max(-a.Balance, money.Zero)
	ctx.SetMoney(policy.FieldBalance, a.Balance)
	ctx.SetMoney(policy.FieldUnsecuredCap, a.UnsecuredCap)
	ctx.SetMoney(policy.FieldCreditUsed, creditUsed)
	ctx.SetMoney(policy.FieldCreditHeadroom, a.UnsecuredCap-creditUsed)
	ctx.SetMoney(policy.FieldEffectiveLiquidity, a.EffectiveLiquidity())
	ctx.SetMoney(policy.FieldAvailableLiquidity, money.Max(a.Balance, money.Zero))
	ctx.SetMoney(policy.FieldLiquidityBuffer, a.LiquidityBuffer)
	ctx.Set(policy.FieldLiquidityBufferGap, (a.EffectiveLiquidity() - a.LiquidityBuffer).AsFloat64())

	q1 := e.queue1s[a.ID]
	ctx.Set(policy.FieldOutgoingQueueSize, float64(q1.Len()))
	ctx.SetMoney(policy.FieldQueue1TotalValue, q1.TotalValue())
	ctx.Set(policy.FieldQueue1OldestAgeTicks, float64(q1.OldestAgeTicks(e.tick)))
	ctx.Set(policy.FieldQueue1LiquidityGap, (q1.TotalValue() - a.EffectiveLiquidity()).AsFloat64())
	ctx.Set(policy.FieldQueue1Headroom, (a.EffectiveLiquidity() - q1.TotalValue()).AsFloat64())
	ctx.Set(policy.FieldQueue1UrgentCount, float64(q1.UrgentCount(8)))
	if eff := a.EffectiveLiquidity(); eff > 0 {
		ctx.Set(policy.FieldLiquidityPressure, q1.TotalValue().AsFloat64()/eff.AsFloat64())
	} else if q1.TotalValue() > 0 {
		ctx.Set(policy.FieldLiquidityPressure, 1)
	} else {
		ctx.Set(policy.FieldLiquidityPressure, 0)
	}

	ctx.Set(policy.FieldRtgsQueueSize, float64(e.queue2.Len()))
	ctx.SetMoney(policy.FieldQueue2ValueForAgent, e.queue2.ValueForAgent(a.ID))
	ctx.Set(policy.FieldQueue2CountForAgent, float64(len(e.queue2.Outgoing(a.ID))))
	if nearest, ok := e.queue2.NearestDeadline(a.ID); ok {
		ctx.Set(policy.FieldQueue2NearestDeadline, float64(nearest-e.tick))
	}
	if farthest, ok := e.queue2.FarthestDeadline(a.ID); ok {
		ctx.Set(policy.FieldQueue2FarthestDeadline, float64(farthest-e.tick))
	}
	ctx.SetMoney(policy.FieldMyQ2OutValueTop1, e.queue2.TopKOutgoingValue(a.ID, 1))
	ctx.SetMoney(policy.FieldMyQ2OutValueTop2, e.queue2.TopKOutgoingValue(a.ID, 2))
	ctx.SetMoney(policy.FieldMyQ2OutValueTop3, e.queue2.TopKOutgoingValue(a.ID, 3))
	ctx.SetMoney(policy.FieldMyQ2OutValueTop4, e.queue2.TopKOutgoingValue(a.ID, 4))
	ctx.SetMoney(policy.FieldMyQ2OutValueTop5, e.queue2.TopKOutgoingValue(a.ID, 5))

	ctx.SetMoney(policy.FieldPostedCollateral, a.PostedCollateral)
	ctx.SetMoney(policy.FieldMaxCollateralCapacity, a.MaxCollateralCap)
	ctx.SetMoney(policy.FieldRemainingCollateralCapacity, a.RemainingCollateralCapacity())
	ctx.SetMoney(policy.FieldCollateralBackedCredit, a.CollateralBackedCredit())
	haircutFloat, _ := a.CollateralHaircut.Float64()
	ctx.Set(policy.FieldCollateralHaircut, haircutFloat)
	// Collateral posted beyond what the current overdraft actually draws on.
	excess := a.PostedCollateral - money.Max(creditUsed-a.UnsecuredCap, money.Zero)
	ctx.SetMoney(policy.FieldExcessCollateral, money.Max(excess, money.Zero))

	rates := e.accruer.Rates
	ctx.Set(policy.FieldOverdraftBpsPerTick, rates.OverdraftBpsPerTick.InexactFloat64())
	ctx.Set(policy.FieldDelayCostPerTickPerCent, rates.DelayCostPerTickPerCent.InexactFloat64())
	ctx.Set(policy.FieldCollateralCostPerTickBps, rates.CollateralCostPerTickBps.InexactFloat64())
	ctx.Set(policy.FieldSplitFrictionCost, float64(rates.SplitFrictionFlatCost))
	ctx.Set(policy.FieldDeadlinePenalty, float64(rates.DeadlinePenalty))
	ctx.Set(policy.FieldEodPenaltyPerTransaction, float64(rates.EodPenaltyPerTransaction))

	ctx.Set(policy.FieldCurrentTick, float64(e.tick))
	ctx.Set(policy.FieldCurrentDay, float64(e.day))
	if e.ticksPerDay > 0 {
		withinDay := e.tick % e.ticksPerDay
		ctx.Set(policy.FieldDayProgressFraction, float64(withinDay)/float64(e.ticksPerDay))
		ctx.Set(policy.FieldTicksRemainingInDay, float64(e.ticksPerDay-withinDay))
		ctx.SetBool(policy.FieldIsEodRush, float64(withinDay)/float64(e.ticksPerDay) > 0.9)
	}

	ctx.Set(policy.FieldMyReleasedCountToday, float64(a.ReleasedCountToday))
	ctx.SetMoney(policy.FieldMyReleasedValueToday, a.ReleasedValueToday)
	throughput := 0.0
	if denom := a.ReleasedValueToday + q1.TotalValue(); denom > 0 {
		throughput = a.ReleasedValueToday.AsFloat64() / denom.AsFloat64()
	}
	ctx.Set(policy.FieldMyThroughputFractionToday, throughput)
	if e.ticksPerDay > 0 {
		progress := float64(e.tick%e.ticksPerDay) / float64(e.ticksPerDay)
		ctx.Set(policy.FieldThroughputGap, progress-throughput)
	}

	for i := 0; i < domain.MaxStateRegisters; i++ {
		field, ok := policy.StateRegisterField(i)
		if ok {
			ctx.Set(field, a.StateRegisters[i])
		}
	}

	if tx != nil {
		ctx.SetMoney(policy.FieldTxAmount, tx.Amount)
		ctx.SetMoney(policy.FieldTxRemainingAmount, tx.Remaining)
		ctx.SetMoney(policy.FieldTxSettledAmount, tx.Settled)
		ctx.Set(policy.FieldTxTicksToDeadline, float64(tx.TicksToDeadline(e.tick)))
		ctx.Set(policy.FieldTxPriority, float64(tx.Priority))
		ctx.Set(policy.FieldTxQueueAge, float64(tx.QueueAge(e.tick)))
		ctx.SetBool(policy.FieldTxIsSplit, tx.IsSplit)
		ctx.SetBool(policy.FieldTxIsDivisible, tx.IsDivisible)
		ctx.SetBool(policy.FieldTxOverdue, tx.IsOverdue(e.tick))
		overdueTicks := int64(0)
		if e.tick > tx.DeadlineTick {
			overdueTicks = e.tick - tx.DeadlineTick
		}
		ctx.Set(policy.FieldTxOverdueTicks, float64(overdueTicks))

		var outTo, inFrom money.Cents
		for _, qtx := range e.queue2.Between(a.ID, tx.Receiver) {
			if qtx.Sender == a.ID {
				outTo += qtx.Remaining
			} else {
				inFrom += qtx.Remaining
			}
		}
		ctx.SetMoney(policy.FieldMyQ2OutValueToCounterparty, outTo)
		ctx.SetMoney(policy.FieldMyQ2InValueFromCounterparty, inFrom)
		ctx.Set(policy.FieldMyBilateralNetQ2, (outTo - inFrom).AsFloat64())

		ctx.SetMoney(policy.FieldProjectedDelayCostIfHeld, e.accruer.DelayCost(tx, e.tick))
		ctx.Set(policy.FieldProjectedSplitFrictionCost, float64(rates.SplitFrictionFlatCost))
	}

	return ctx
}

func (e *Engine) policyParams(a *domain.AgentState) map[string]float64 {
	merged := map[string]float64{}
	for _, p := range []*policy.Policy{a.PaymentTree, a.StrategicCollateralTree, a.EndOfTickCollateralTree, a.BankTree} {
		if p == nil {
			continue
		}
		for k, v := range p.Params {
			merged[k] = v
		}
	}
	return merged
}
