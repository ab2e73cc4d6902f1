package engine

import (
	"strconv"

	"rtgssim/internal/arrivals"
	"rtgssim/internal/domain"
	"rtgssim/internal/lsm"
	"rtgssim/internal/money"
	"rtgssim/internal/policy"
	"rtgssim/internal/scenario"
)

// Tick advances the simulation by one tick, running the fixed step
// sequence: arrival injection, scenario events, bank-tree state updates,
// strategic collateral decisions, the Queue 1 policy pass, Queue 2
// immediate settlement, the LSM pass, end-of-tick collateral decisions,
// cost accrual, and EOD handling.
func (e *Engine) Tick() error {
	e.stepArrivals()
	e.stepScenarioEvents()
	e.stepBankTree()
	e.stepStrategicCollateral()
	e.stepQueue1Policy()
	e.stepQueue2ImmediateSettlement()
	e.stepLSM()
	e.stepEndOfTickCollateral()
	e.stepCostAccrual()
	e.stepEOD()

	e.tick++
	return nil
}

// step 1: arrival injection. Scripted arrivals are dispatched in
// stepScenarioEvents; this step only handles stochastic background
// arrivals driven by the configured per-agent and global arrival rates.
func (e *Engine) stepArrivals() {
	for _, id := range e.agentIDs {
		rate := e.agentArrivalRate[id] + e.globalArrivalRate
		if rate <= 0 {
			continue
		}
		n := e.rngSource.PoissonDraw(rate)
		for i := 0; i < n; i++ {
			receiver := arrivals.SelectCounterparty(e.rngSource, id, e.counterpartyWeightsFor(id), e.agentIDs)
			if receiver == "" {
				continue
			}
			amount := e.amountSpecs[id].Sample(e.rngSource)
			if e.queue2SoftCap > 0 && e.queue2.Len() >= e.queue2SoftCap {
				e.emit(domain.EventArrivalRejected, &id, nil, map[string]interface{}{
					"receiver": string(receiver), "amount": int64(amount),
					"queue2_size": e.queue2.Len(), "soft_cap": e.queue2SoftCap,
				})
				continue
			}
			tx := &domain.Transaction{
				TxID: e.nextTxID(), Sender: id, Receiver: receiver,
				Amount: amount, Remaining: amount,
				ArrivalTick: e.tick, DeadlineTick: e.deadlineFor(id),
				Priority: e.rngSource.IntN(11), IsDivisible: true,
				State: domain.TxPendingQueue1,
			}
			e.queue1s[id].Add(tx)
			e.txHistory = append(e.txHistory, tx)
			e.emit(domain.EventTxArrived, &id, &tx.TxID, map[string]interface{}{
				"sender": string(tx.Sender), "receiver": string(tx.Receiver),
				"amount": int64(tx.Amount), "deadline_tick": tx.DeadlineTick,
				"priority": tx.Priority, "is_divisible": tx.IsDivisible,
			})
		}
	}
}

// counterpartyWeightsFor collects the scripted/configured counterparty
// weights that apply to sender, keyed by candidate receiver, from the
// engine's flat pairwise map.
func (e *Engine) counterpartyWeightsFor(sender money.AgentID) map[money.AgentID]float64 {
	if len(e.counterpartyWeights) == 0 {
		return nil
	}
	out := make(map[money.AgentID]float64)
	for pair, w := range e.counterpartyWeights {
		if pair[0] == sender {
			out[pair[1]] = w
		}
	}
	return out
}

// deadlineFor draws a deadline tick for a newly arriving transaction from
// sender's configured/scripted deadline window, falling back to a fixed
// 20-tick window when none is set.
func (e *Engine) deadlineFor(sender money.AgentID) int64 {
	w, ok := e.deadlineWindows[sender]
	if !ok {
		return e.tick + 20
	}
	return arrivals.DeadlineWindow{MinTicks: w[0], MaxTicks: w[1]}.Sample(e.rngSource, e.tick)
}

// step 2: scenario events.
func (e *Engine) stepScenarioEvents() {
	for _, ev := range e.scheduler.Due(e.tick) {
		scenario.Apply(ev, e)
		e.emit(domain.EventScenarioApplied, nil, nil, map[string]interface{}{"event_id": ev.ID, "type": string(ev.Type)})
	}
}

// Bank-tree pass: each agent's bank tree runs once per tick with no
// transaction in context, updating its state registers, the only memory a
// policy carries between evaluations within a day.
func (e *Engine) stepBankTree() {
	for _, id := range e.agentIDs {
		a := e.agents[id]
		if a.BankTree == nil {
			continue
		}
		ctx := e.agentContext(a, nil)
		action, err := policy.Evaluate(a.BankTree.Root, ctx, policy.TreeBank)
		if err != nil {
			e.emit(domain.EventPolicyArithmeticFailure, &id, nil, map[string]interface{}{"tree": "bank"})
		}
		e.applyBankAction(a, action, ctx)
	}
}

func (e *Engine) applyBankAction(a *domain.AgentState, action *policy.Action, ctx *policy.EvalContext) {
	if action == nil {
		return
	}
	switch action.Type {
	case policy.ActionSetState:
		if action.SetState == nil || action.SetState.Key < 0 || action.SetState.Key >= domain.MaxStateRegisters {
			return
		}
		v, err := policy.ResolveValue(action.SetState.Value, ctx)
		if err != nil {
			e.emit(domain.EventPolicyArithmeticFailure, &a.ID, nil, map[string]interface{}{"tree": "bank", "action": "set_state"})
			return
		}
		a.StateRegisters[action.SetState.Key] = v
	case policy.ActionAddState:
		if action.AddState == nil || action.AddState.Key < 0 || action.AddState.Key >= domain.MaxStateRegisters {
			return
		}
		d, err := policy.ResolveValue(action.AddState.Delta, ctx)
		if err != nil {
			e.emit(domain.EventPolicyArithmeticFailure, &a.ID, nil, map[string]interface{}{"tree": "bank", "action": "add_state"})
			return
		}
		a.StateRegisters[action.AddState.Key] += d
	case policy.ActionNoAction:
		// nothing to do
	}
}

// step 3: strategic collateral decisions, evaluated once per agent per
// tick ahead of the payment pass so posted collateral reflects the
// agent's pre-settlement liquidity stance.
func (e *Engine) stepStrategicCollateral() {
	for _, id := range e.agentIDs {
		a := e.agents[id]
		if a.StrategicCollateralTree == nil {
			continue
		}
		ctx := e.agentContext(a, nil)
		action, err := policy.Evaluate(a.StrategicCollateralTree.Root, ctx, policy.TreeStrategicCollateral)
		if err != nil {
			e.emit(domain.EventPolicyArithmeticFailure, &id, nil, map[string]interface{}{"tree": "strategic_collateral"})
		}
		e.applyCollateralAction(a, action)
	}
}

// step 4: Queue 1 policy pass. Every agent's payment tree is evaluated
// against each of its queued transactions, in canonical order, and the
// resulting action (release/hold/drop/split) is applied immediately so a
// later transaction in the same pass sees the effect of an earlier one.
func (e *Engine) stepQueue1Policy() {
	for _, id := range e.agentIDs {
		a := e.agents[id]
		q := e.queue1s[id]
		if a.PaymentTree == nil {
			continue
		}
		for _, tx := range q.Ordered() {
			ctx := e.agentContext(a, tx)
			action, err := policy.Evaluate(a.PaymentTree.Root, ctx, policy.TreePayment)
			if err != nil {
				e.emit(domain.EventPolicyArithmeticFailure, &id, &tx.TxID, map[string]interface{}{"tree": "payment"})
			}
			details := map[string]interface{}{"action": string(action.Type)}
			if action.Reason != "" {
				details["reason"] = action.Reason
			}
			e.emit(domain.EventPolicyDecision, &id, &tx.TxID, details)
			e.applyPaymentAction(a, q, tx, action, ctx)
		}
	}
}

func (e *Engine) applyPaymentAction(a *domain.AgentState, q interface{ Remove(money.TxID) }, tx *domain.Transaction, action *policy.Action, ctx *policy.EvalContext) {
	switch action.Type {
	case policy.ActionReleaseV:
		e.moveToQueue2(a, tx)
	case policy.ActionHold:
		// leave queued
	case policy.ActionDrop:
		tx.State = domain.TxDropped
		q.Remove(tx.TxID)
		e.emit(domain.EventTxDropped, &a.ID, &tx.TxID, map[string]interface{}{
			"receiver": string(tx.Receiver), "remaining_amount": int64(tx.Remaining),
		})
	case policy.ActionSplit:
		maxPacing := 10
		n, _ := policy.ResolveNumSplits(action.Split, ctx, maxPacing)
		children := tx.Split(n, func(i int) money.TxID { return e.splitChildID(tx.TxID, i) })
		q.Remove(tx.TxID)
		for _, child := range children {
			e.queue1s[a.ID].Add(child)
		}
		if n > 1 {
			friction := e.accruer.SplitFrictionCost() * money.Cents(n-1)
			a.Balance -= friction
			a.CostsToday.SplitFriction += friction
			e.emit(domain.EventCostAccrued, &a.ID, &tx.TxID, map[string]interface{}{"amount": int64(friction), "cost_type": "split_friction"})
		}
		e.emit(domain.EventTxSplit, &a.ID, &tx.TxID, map[string]interface{}{"num_splits": n, "parent_amount": int64(tx.Amount)})
	}
}

func (e *Engine) splitChildID(parent money.TxID, i int) money.TxID {
	e.nextTxSeq++
	return money.TxID(string(parent) + "_split_" + strconv.Itoa(i) + "_" + strconv.Itoa(int(e.nextTxSeq)))
}

func (e *Engine) moveToQueue2(a *domain.AgentState, tx *domain.Transaction) {
	e.queue1s[a.ID].Remove(tx.TxID)
	tx.State = domain.TxPendingQueue2
	e.nextRtgsSeq++
	tx.RtgsSeq = e.nextRtgsSeq
	a.ReleasedCountToday++
	a.ReleasedValueToday += tx.Remaining
	e.queue2.Add(tx)
	e.emit(domain.EventTxMovedToQueue2, &a.ID, &tx.TxID, map[string]interface{}{
		"receiver": string(tx.Receiver), "amount": int64(tx.Remaining),
	})
}

// step 5: Queue 2 immediate settlement. The queue is processed in
// settlement order (priority descending, then submission order), each
// transaction settling in full iff the sender's effective liquidity covers
// its remaining amount.
func (e *Engine) stepQueue2ImmediateSettlement() {
	for _, tx := range e.queue2.SettlementOrder() {
		sender := e.agents[tx.Sender]
		receiver := e.agents[tx.Receiver]
		if sender == nil || receiver == nil {
			continue
		}
		if sender.EffectiveLiquidity() < tx.Remaining {
			e.emit(domain.EventSettlementInfeasible, &tx.Sender, &tx.TxID, map[string]interface{}{
				"receiver": string(tx.Receiver), "remaining_amount": int64(tx.Remaining),
			})
			continue
		}
		settled := tx.Remaining
		sender.Balance -= settled
		receiver.Balance += settled
		tx.Settled = settled
		tx.Remaining = 0
		tx.State = domain.TxSettled
		e.queue2.Remove(tx.TxID)
		e.emit(domain.EventTxSettledQueue2, &tx.Sender, &tx.TxID, map[string]interface{}{
			"receiver": string(tx.Receiver), "amount": int64(settled),
		})
	}
}

// step 6: the LSM pass, bilateral offsetting first (cheaper, handles the
// common two-party gridlock case), then multilateral cycle detection over
// whatever remains.
func (e *Engine) stepLSM() {
	bilateralResults := lsm.BilateralPass(e.queue2, e, e.agentIDs)
	for _, r := range bilateralResults {
		lsm.ApplySettlement(r, e.agents, e.queue2)
		for _, txID := range r.SettledTxIDs {
			e.emit(domain.EventTxSettledBilateral, &r.A, &txID, map[string]interface{}{
				"counterparty": string(r.B), "net_payer": string(r.NetPayer), "net_amount": int64(r.NetAmount),
			})
		}
	}

	cycleResults := lsm.CyclePass(e.queue2, e, e.agentIDs, e.minCycleLen, e.maxCycleLen, e.maxLSMIterations)
	for _, r := range cycleResults {
		lsm.ApplyCycleSettlement(r, e.agents, e.queue2)
		for _, txID := range r.SettledTxIDs {
			e.emit(domain.EventTxSettledCycle, nil, &txID, map[string]interface{}{
				"cycle_len": len(r.Agents) - 1, "cycle_value": int64(r.TotalValue),
			})
		}
	}
}

// step 7: end-of-tick collateral decisions, evaluated after settlement so
// an agent reacts to its post-settlement liquidity position.
func (e *Engine) stepEndOfTickCollateral() {
	for _, id := range e.agentIDs {
		a := e.agents[id]
		if a.EndOfTickCollateralTree == nil {
			continue
		}
		ctx := e.agentContext(a, nil)
		action, err := policy.Evaluate(a.EndOfTickCollateralTree.Root, ctx, policy.TreeEndOfTickCollateral)
		if err != nil {
			e.emit(domain.EventPolicyArithmeticFailure, &id, nil, map[string]interface{}{"tree": "end_of_tick_collateral"})
		}
		e.applyCollateralAction(a, action)
	}
}

func (e *Engine) applyCollateralAction(a *domain.AgentState, action *policy.Action) {
	if action == nil {
		return
	}
	ctx := e.agentContext(a, nil)
	switch action.Type {
	case policy.ActionPostCollateral:
		amt, _ := policy.ResolveAmount(action.PostCollateral.Amount, ctx)
		posted := money.Cents(amt)
		if posted > a.RemainingCollateralCapacity() {
			posted = a.RemainingCollateralCapacity()
		}
		a.PostedCollateral += posted
		a.Balance -= posted
		if posted > 0 {
			e.emit(domain.EventCollateralPosted, &a.ID, nil, map[string]interface{}{"amount": int64(posted)})
		}
	case policy.ActionWithdrawCollateral:
		amt, _ := policy.ResolveAmount(action.WithdrawCollateral.Amount, ctx)
		withdrawn := money.Cents(amt)
		if withdrawn > a.PostedCollateral {
			withdrawn = a.PostedCollateral
		}
		a.PostedCollateral -= withdrawn
		a.Balance += withdrawn
		if withdrawn > 0 {
			e.emit(domain.EventCollateralWithdrawn, &a.ID, nil, map[string]interface{}{"amount": int64(withdrawn)})
		}
	case policy.ActionHoldCollateral:
		// no-op
	}
}

// step 8: cost accrual, each cost family charged and emitted separately so
// the event stream can be summed per (agent, day, cost_type) and reconciled
// against the agent's day-cost accumulator.
func (e *Engine) stepCostAccrual() {
	for _, id := range e.agentIDs {
		a := e.agents[id]

		var delay, deadline money.Cents
		for _, tx := range e.queue1s[id].Ordered() {
			delay += e.accruer.DelayCost(tx, e.tick)
			if tx.IsOverdue(e.tick) && !tx.DeadlinePenaltyCharged {
				tx.DeadlinePenaltyCharged = true
				tx.OverdueSince = e.tick
				deadline += e.accruer.DeadlinePenalty()
				e.emit(domain.EventTxOverdue, &id, &tx.TxID, map[string]interface{}{
					"deadline_tick": tx.DeadlineTick, "remaining_amount": int64(tx.Remaining),
				})
			}
		}

		e.chargeCost(a, "overdraft", e.accruer.OverdraftCost(a.Balance), &a.CostsToday.Overdraft)
		e.chargeCost(a, "collateral", e.accruer.CollateralCost(a.PostedCollateral), &a.CostsToday.Collateral)
		e.chargeCost(a, "delay", delay, &a.CostsToday.Delay)
		e.chargeCost(a, "deadline_penalty", deadline, &a.CostsToday.DeadlinePenalty)
	}
}

// chargeCost debits one cost family from an agent, records it in the day
// accumulator, and emits the matching cost_accrued event. Zero charges are
// skipped entirely.
func (e *Engine) chargeCost(a *domain.AgentState, costType string, amount money.Cents, bucket *money.Cents) {
	if amount <= 0 {
		return
	}
	a.Balance -= amount
	*bucket += amount
	e.emit(domain.EventCostAccrued, &a.ID, nil, map[string]interface{}{
		"amount": int64(amount), "cost_type": costType,
	})
}

// step 9: EOD handling.
func (e *Engine) stepEOD() {
	if e.ticksPerDay <= 0 || (e.tick+1)%e.ticksPerDay != 0 {
		return
	}
	for _, id := range e.agentIDs {
		a := e.agents[id]
		unsettled := e.queue1s[id].Len()
		if unsettled > 0 {
			penalty := e.accruer.EodPenalty() * money.Cents(unsettled)
			a.Balance -= penalty
			a.CostsToday.EodPenalty += penalty
			e.emit(domain.EventEodPenalty, &id, nil, map[string]interface{}{
				"unsettled_count": unsettled, "amount": int64(penalty),
			})
		}
		e.emit(domain.EventEodProcessed, &id, nil, map[string]interface{}{
			"day":                  e.day,
			"cost_overdraft":       int64(a.CostsToday.Overdraft),
			"cost_delay":           int64(a.CostsToday.Delay),
			"cost_collateral":      int64(a.CostsToday.Collateral),
			"cost_split_friction":  int64(a.CostsToday.SplitFriction),
			"cost_deadline":        int64(a.CostsToday.DeadlinePenalty),
			"cost_eod_penalty":     int64(a.CostsToday.EodPenalty),
			"cost_total":           int64(a.CostsToday.Total()),
		})
		a.ResetDailyState()
	}
	e.day++
}

func (e *Engine) emit(t domain.EventType, agentID *money.AgentID, txID *money.TxID, details map[string]interface{}) {
	_ = e.emitter.Emit(domain.Event{Tick: e.tick, Day: e.day, Type: t, AgentID: agentID, TxID: txID, Details: details})
}

