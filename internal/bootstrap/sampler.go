// Package bootstrap captures a historical pool of transactions from a
// baseline run and draws samples from it (bootstrap-with-replacement,
// permutation, or stratified by agent) for the optimization loop's paired
// evaluation.
package bootstrap

import (
	"sort"

	"rtgssim/internal/domain"
	"rtgssim/internal/rng"
)

// Pool is an immutable capture of transactions observed during a baseline
// simulation, used as the population later sampling draws from.
type Pool struct {
	Transactions []*domain.Transaction
}

// NewPool captures txs into a Pool. The slice is copied so later mutation
// of the originals (settlement, splitting) never leaks back into the pool.
func NewPool(txs []*domain.Transaction) *Pool {
	cp := make([]*domain.Transaction, len(txs))
	for i, tx := range txs {
		dup := *tx
		cp[i] = &dup
	}
	return &Pool{Transactions: cp}
}

// BootstrapSample draws n transactions from the pool with replacement.
func (p *Pool) BootstrapSample(n int, source *rng.Source) []*domain.Transaction {
	if len(p.Transactions) == 0 {
		return nil
	}
	out := make([]*domain.Transaction, n)
	for i := 0; i < n; i++ {
		idx := source.IntN(len(p.Transactions))
		dup := *p.Transactions[idx]
		out[i] = &dup
	}
	return out
}

// PermutationSample returns every transaction in the pool in a random
// order, without replacement.
func (p *Pool) PermutationSample(source *rng.Source) []*domain.Transaction {
	out := make([]*domain.Transaction, len(p.Transactions))
	for i, tx := range p.Transactions {
		dup := *tx
		out[i] = &dup
	}
	source.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// StratifiedSample draws n transactions from the pool with replacement,
// stratified by sender: each draw picks a sender uniformly, then one of
// that sender's transactions uniformly, so every sender contributes the
// same expected share of the sample whatever its share of the pool.
func (p *Pool) StratifiedSample(n int, source *rng.Source) []*domain.Transaction {
	byAgent := make(map[string][]*domain.Transaction)
	for _, tx := range p.Transactions {
		key := string(tx.Sender)
		byAgent[key] = append(byAgent[key], tx)
	}
	var agents []string
	for a := range byAgent {
		agents = append(agents, a)
	}
	sort.Strings(agents)
	if len(agents) == 0 {
		return nil
	}

	out := make([]*domain.Transaction, 0, n)
	for i := 0; i < n; i++ {
		agent := agents[source.IntN(len(agents))]
		bucket := byAgent[agent]
		idx := source.IntN(len(bucket))
		dup := *bucket[idx]
		out = append(out, &dup)
	}
	return out
}
