package engine

import (
	"rtgssim/internal/domain"
	"rtgssim/internal/money"
)

// DirectTransfer implements scenario.Target: an unconditional balance
// move between two agents, bypassing both queues entirely (used for
// scripted liquidity shocks, not ordinary payment traffic).
func (e *Engine) DirectTransfer(sender, receiver money.AgentID, amount money.Cents) {
	s, rOk := e.agents[sender]
	r, ok2 := e.agents[receiver]
	if s == nil || r == nil || !rOk || !ok2 {
		return
	}
	s.Balance -= amount
	r.Balance += amount
}

// InjectCustomTransaction implements scenario.Target: creates a
// transaction directly into the sender's Queue 1, as if it had just
// arrived, using the scripted deadline/priority/divisibility parameters.
func (e *Engine) InjectCustomTransaction(sender, receiver money.AgentID, amount money.Cents, params map[string]float64) {
	if _, ok := e.agents[sender]; !ok {
		return
	}
	deadline := e.tick + 20
	priority := 0
	divisible := true
	if params != nil {
		if v, ok := params["deadline_tick"]; ok {
			deadline = int64(v)
		}
		if v, ok := params["priority"]; ok {
			priority = int(v)
		}
		if v, ok := params["is_divisible"]; ok {
			divisible = v != 0
		}
	}
	tx := &domain.Transaction{
		TxID: e.nextTxID(), Sender: sender, Receiver: receiver,
		Amount: amount, Remaining: amount,
		ArrivalTick: e.tick, DeadlineTick: deadline, Priority: priority,
		IsDivisible: divisible, State: domain.TxPendingQueue1,
	}
	e.queue1s[sender].Add(tx)
	e.txHistory = append(e.txHistory, tx)
	e.emit(domain.EventTxArrived, &sender, &tx.TxID, map[string]interface{}{
		"receiver": string(receiver), "amount": int64(amount),
		"deadline_tick": deadline, "priority": priority, "is_divisible": divisible,
	})
}

// AdjustCollateral implements scenario.Target: a scripted change to an
// agent's posted collateral, independent of its collateral policy trees.
func (e *Engine) AdjustCollateral(agent money.AgentID, deltaAmount money.Cents) {
	a, ok := e.agents[agent]
	if !ok {
		return
	}
	a.PostedCollateral += deltaAmount
	if a.PostedCollateral < 0 {
		a.PostedCollateral = 0
	}
}

// SetGlobalArrivalRate implements scenario.Target.
func (e *Engine) SetGlobalArrivalRate(rate float64) {
	e.globalArrivalRate = rate
}

// SetAgentArrivalRate implements scenario.Target.
func (e *Engine) SetAgentArrivalRate(agent money.AgentID, rate float64) {
	e.agentArrivalRate[agent] = rate
}

// SetCounterpartyWeight implements scenario.Target: records a scripted
// per-pair weight, consumed by stepArrivals via counterpartyWeightsFor in
// place of the uniform fallback once any weight has been set for sender.
func (e *Engine) SetCounterpartyWeight(agent, counterparty money.AgentID, weight float64) {
	if e.counterpartyWeights == nil {
		e.counterpartyWeights = make(map[[2]money.AgentID]float64)
	}
	e.counterpartyWeights[[2]money.AgentID{agent, counterparty}] = weight
}

// SetDeadlineWindow implements scenario.Target: changes the [min,max]
// tick window newly arriving stochastic transactions for agent draw their
// deadline from.
func (e *Engine) SetDeadlineWindow(agent money.AgentID, minTicks, maxTicks int64) {
	if e.deadlineWindows == nil {
		e.deadlineWindows = make(map[money.AgentID][2]int64)
	}
	e.deadlineWindows[agent] = [2]int64{minTicks, maxTicks}
}
