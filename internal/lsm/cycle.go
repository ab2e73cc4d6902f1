package lsm

import (
	"sort"

	"rtgssim/internal/money"
	"rtgssim/internal/queue2"
)

// CycleResult records one executed multilateral cycle settlement: every
// transaction on every edge of the cycle clears whole, and each participant's
// balance moves by its net position within the cycle (inbound edge minus
// outbound edge). Net positions always sum to zero across the cycle.
type CycleResult struct {
	Agents       []money.AgentID // cycle order, Agents[i] pays Agents[i+1]; last element repeats the first
	SettledTxIDs []money.TxID
	NetPositions map[money.AgentID]money.Cents
	TotalValue   money.Cents // gross value settled across all edges, the primary tie-break key
}

// edge is one directed obligation between two agents, aggregated from one
// or more live Queue 2 transactions.
type edge struct {
	to     money.AgentID
	amount money.Cents
	txIDs  []money.TxID
}

// CyclePass searches the obligation graph built from q for elementary
// cycles with length in [minCycleLen, maxCycleLen], repeatedly settling the
// best fundable candidate and rebuilding the graph (a settled cycle changes
// what remains), up to maxIterations rounds. A node's net position within a
// candidate cycle is its inbound edge amount minus its outbound edge
// amount; the cycle is fundable iff every node with a negative net position
// can cover that net outflow from its effective liquidity, adjusted for the
// net effects of cycles already selected this pass. Ties among candidates
// break by greater gross value settled, then shorter cycle, then
// lexicographically smaller participant ids.
func CyclePass(q *queue2.Queue, liquidity LiquidityLookup, agents []money.AgentID, minCycleLen, maxCycleLen, maxIterations int) []CycleResult {
	if maxCycleLen <= 0 {
		maxCycleLen = 5
	}
	consumed := make(map[money.TxID]bool)
	adjust := make(map[money.AgentID]money.Cents)

	var results []CycleResult
	for iter := 0; iter < maxIterations; iter++ {
		graph := buildGraph(q, agents, consumed)
		candidates := findElementaryCycles(graph, minCycleLen, maxCycleLen)
		if len(candidates) == 0 {
			break
		}
		sortCandidates(candidates)

		best, ok := firstFundable(candidates, liquidity, adjust)
		if !ok {
			break
		}

		for _, id := range best.SettledTxIDs {
			consumed[id] = true
		}
		for agent, net := range best.NetPositions {
			adjust[agent] += net
		}
		results = append(results, best)
	}
	return results
}

func buildGraph(q *queue2.Queue, agents []money.AgentID, consumed map[money.TxID]bool) map[money.AgentID][]edge {
	graph := make(map[money.AgentID][]edge, len(agents))
	for _, a := range agents {
		byReceiver := make(map[money.AgentID]*edge)
		for _, tx := range q.Outgoing(a) {
			if consumed[tx.TxID] || tx.Remaining <= 0 {
				continue
			}
			e, ok := byReceiver[tx.Receiver]
			if !ok {
				e = &edge{to: tx.Receiver}
				byReceiver[tx.Receiver] = e
			}
			e.amount += tx.Remaining
			e.txIDs = append(e.txIDs, tx.TxID)
		}
		edges := make([]edge, 0, len(byReceiver))
		for _, e := range byReceiver {
			edges = append(edges, *e)
		}
		sort.Slice(edges, func(i, j int) bool { return edges[i].to < edges[j].to })
		graph[a] = edges
	}
	return graph
}

// findElementaryCycles runs a bounded DFS from every node. To enumerate
// each cycle exactly once, only the lexicographically smallest participant
// may act as the start node: the DFS never descends into a node smaller
// than its start.
func findElementaryCycles(graph map[money.AgentID][]edge, minLen, maxLen int) []CycleResult {
	var out []CycleResult

	var starts []money.AgentID
	for a := range graph {
		starts = append(starts, a)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	for _, start := range starts {
		path := []money.AgentID{start}
		var edgesUsed []edge
		var dfs func(current money.AgentID)
		dfs = func(current money.AgentID) {
			for _, e := range graph[current] {
				if e.amount <= 0 {
					continue
				}
				if e.to == start && len(path) >= minLen {
					out = append(out, assembleCycle(path, append(edgesUsed, e)))
					continue
				}
				if len(path) >= maxLen {
					continue
				}
				if e.to < start || containsAgent(path, e.to) {
					continue // elementary cycles only, canonical start only
				}
				path = append(path, e.to)
				edgesUsed = append(edgesUsed, e)
				dfs(e.to)
				edgesUsed = edgesUsed[:len(edgesUsed)-1]
				path = path[:len(path)-1]
			}
		}
		dfs(start)
	}
	return out
}

// assembleCycle turns a closed path and its edges into a CycleResult,
// computing each node's net position (inbound minus outbound) and the
// gross value settled.
func assembleCycle(path []money.AgentID, edges []edge) CycleResult {
	agents := append(append([]money.AgentID{}, path...), path[0])
	net := make(map[money.AgentID]money.Cents, len(path))
	var ids []money.TxID
	var total money.Cents
	for i, e := range edges {
		payer := path[i]
		net[payer] -= e.amount
		net[e.to] += e.amount
		total += e.amount
		ids = append(ids, e.txIDs...)
	}
	return CycleResult{Agents: agents, SettledTxIDs: ids, NetPositions: net, TotalValue: total}
}

func containsAgent(path []money.AgentID, a money.AgentID) bool {
	for _, p := range path {
		if p == a {
			return true
		}
	}
	return false
}

func sortCandidates(candidates []CycleResult) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.TotalValue != b.TotalValue {
			return a.TotalValue > b.TotalValue
		}
		if len(a.Agents) != len(b.Agents) {
			return len(a.Agents) < len(b.Agents)
		}
		return lexLess(a.Agents, b.Agents)
	})
}

func lexLess(a, b []money.AgentID) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// firstFundable returns the first candidate (in tie-break order) whose
// net-outflow nodes can all cover their nets, given base liquidity plus
// the running adjustment from cycles already selected this pass.
func firstFundable(candidates []CycleResult, liquidity LiquidityLookup, adjust map[money.AgentID]money.Cents) (CycleResult, bool) {
	for _, c := range candidates {
		if cycleFundable(c, liquidity, adjust) {
			return c, true
		}
	}
	return CycleResult{}, false
}

func cycleFundable(c CycleResult, liquidity LiquidityLookup, adjust map[money.AgentID]money.Cents) bool {
	for agent, net := range c.NetPositions {
		if net >= 0 {
			continue
		}
		if liquidity.EffectiveLiquidity(agent)+adjust[agent] < -net {
			return false
		}
	}
	return true
}
