// Package arrivals implements the transaction-amount distributions and
// counterparty-weighting used by the engine's stochastic arrival
// generator (spec §4.1 step 1, §6 arrival_config). It is kept separate
// from internal/engine so the sampling math can be unit tested without
// standing up a whole Engine.
package arrivals

import (
	"math"

	"rtgssim/internal/money"
	"rtgssim/internal/rng"
)

// Distribution names one of the shapes an agent's arrival amounts can be
// drawn from.
type Distribution string

const (
	DistUniform     Distribution = "uniform"
	DistNormal      Distribution = "normal"
	DistLognormal   Distribution = "lognormal"
	DistExponential Distribution = "exponential"
)

// fallback range used when an agent carries no AmountSpec at all, matching
// the simulator's behavior before amount distributions were configurable.
const (
	fallbackMinCents = money.Cents(1000)
	fallbackMaxCents = money.Cents(900000)
)

// AmountSpec parameterizes one agent's transaction-amount distribution.
// The zero value samples the fallback uniform range.
type AmountSpec struct {
	Distribution Distribution
	MeanCents    money.Cents
	StdDevCents  money.Cents
}

// Sample draws one transaction amount in cents, floored at one cent so a
// degenerate draw never produces a zero or negative-value transaction.
func (s AmountSpec) Sample(src *rng.Source) money.Cents {
	var v float64
	switch s.Distribution {
	case DistNormal:
		v = float64(s.MeanCents) + src.NormFloat64()*float64(s.StdDevCents)
	case DistLognormal:
		mean := float64(s.MeanCents)
		if mean <= 0 {
			mean = 1
		}
		cv := 0.25
		if s.MeanCents > 0 {
			cv = float64(s.StdDevCents) / mean
		}
		mu := math.Log(mean)
		v = math.Exp(mu + src.NormFloat64()*cv)
	case DistExponential:
		mean := float64(s.MeanCents)
		if mean <= 0 {
			mean = float64(fallbackMinCents+fallbackMaxCents) / 2
		}
		v = mean * src.ExpFloat64()
	case DistUniform:
		if s.StdDevCents <= 0 {
			lo, hi := float64(fallbackMinCents), float64(fallbackMaxCents)
			v = lo + src.Float64()*(hi-lo)
		} else {
			lo := float64(s.MeanCents - s.StdDevCents)
			hi := float64(s.MeanCents + s.StdDevCents)
			if hi < lo {
				lo, hi = hi, lo
			}
			v = lo + src.Float64()*(hi-lo)
		}
	default:
		lo, hi := float64(fallbackMinCents), float64(fallbackMaxCents)
		v = lo + src.Float64()*(hi-lo)
	}
	if v < 1 {
		v = 1
	}
	return money.Cents(v)
}

// SelectCounterparty picks a receiver for sender. If weights carries at
// least one positive entry, the receiver is drawn proportional to those
// weights; otherwise it falls back to a uniform draw over allAgents,
// excluding sender. Returns "" if sender is the only known agent.
func SelectCounterparty(src *rng.Source, sender money.AgentID, weights map[money.AgentID]float64, allAgents []money.AgentID) money.AgentID {
	var candidates []money.AgentID
	var cumulative []float64
	total := 0.0
	for _, id := range allAgents {
		if id == sender {
			continue
		}
		w, ok := weights[id]
		if !ok || w <= 0 {
			continue
		}
		total += w
		candidates = append(candidates, id)
		cumulative = append(cumulative, total)
	}
	if total <= 0 || len(candidates) == 0 {
		return uniformCounterparty(src, sender, allAgents)
	}
	r := src.Float64() * total
	for i, c := range cumulative {
		if r < c {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

func uniformCounterparty(src *rng.Source, sender money.AgentID, allAgents []money.AgentID) money.AgentID {
	if len(allAgents) < 2 {
		return ""
	}
	for {
		candidate := allAgents[src.IntN(len(allAgents))]
		if candidate != sender {
			return candidate
		}
	}
}

// DeadlineWindow is the [min,max] tick offset from arrival that a newly
// arriving transaction's deadline is drawn from.
type DeadlineWindow struct {
	MinTicks, MaxTicks int64
}

// Sample draws a deadline tick offset from currentTick. A degenerate
// window (MaxTicks <= MinTicks) always returns currentTick+MinTicks.
func (w DeadlineWindow) Sample(src *rng.Source, currentTick int64) int64 {
	if w.MaxTicks <= w.MinTicks {
		return currentTick + w.MinTicks
	}
	span := w.MaxTicks - w.MinTicks
	return currentTick + w.MinTicks + int64(src.IntN(int(span)+1))
}
