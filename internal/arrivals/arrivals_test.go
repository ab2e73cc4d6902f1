package arrivals

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rtgssim/internal/money"
	"rtgssim/internal/rng"
)

func TestAmountSpecZeroValueUsesFallbackRange(t *testing.T) {
	src := rng.NewSource(1)
	var s AmountSpec
	for i := 0; i < 200; i++ {
		v := s.Sample(src)
		assert.True(t, v >= fallbackMinCents && v <= fallbackMaxCents)
	}
}

func TestAmountSpecNeverReturnsNonPositive(t *testing.T) {
	src := rng.NewSource(2)
	specs := []AmountSpec{
		{Distribution: DistNormal, MeanCents: 100, StdDevCents: 500},
		{Distribution: DistLognormal, MeanCents: 1000, StdDevCents: 300},
		{Distribution: DistExponential, MeanCents: 2000},
		{Distribution: DistUniform, MeanCents: 500, StdDevCents: 400},
	}
	for _, s := range specs {
		for i := 0; i < 200; i++ {
			assert.True(t, s.Sample(src) >= 1)
		}
	}
}

func TestAmountSpecDeterministic(t *testing.T) {
	s := AmountSpec{Distribution: DistLognormal, MeanCents: 5000, StdDevCents: 2000}
	a := rng.NewSource(7)
	b := rng.NewSource(7)
	for i := 0; i < 50; i++ {
		assert.Equal(t, s.Sample(a), s.Sample(b))
	}
}

func TestSelectCounterpartyHonorsWeights(t *testing.T) {
	src := rng.NewSource(3)
	agents := []money.AgentID{"A", "B", "C"}
	weights := map[money.AgentID]float64{"B": 1.0}
	for i := 0; i < 50; i++ {
		got := SelectCounterparty(src, "A", weights, agents)
		assert.Equal(t, money.AgentID("B"), got)
	}
}

func TestSelectCounterpartyFallsBackToUniformWithoutWeights(t *testing.T) {
	src := rng.NewSource(4)
	agents := []money.AgentID{"A", "B", "C"}
	seen := make(map[money.AgentID]bool)
	for i := 0; i < 200; i++ {
		got := SelectCounterparty(src, "A", nil, agents)
		assert.NotEqual(t, money.AgentID("A"), got)
		seen[got] = true
	}
	assert.True(t, seen["B"] && seen["C"])
}

func TestSelectCounterpartyEmptyWithSingleAgent(t *testing.T) {
	src := rng.NewSource(5)
	got := SelectCounterparty(src, "A", nil, []money.AgentID{"A"})
	assert.Equal(t, money.AgentID(""), got)
}

func TestDeadlineWindowSample(t *testing.T) {
	src := rng.NewSource(6)
	w := DeadlineWindow{MinTicks: 5, MaxTicks: 15}
	for i := 0; i < 100; i++ {
		d := w.Sample(src, 100)
		assert.True(t, d >= 105 && d <= 115)
	}

	degenerate := DeadlineWindow{MinTicks: 20, MaxTicks: 20}
	assert.Equal(t, int64(120), degenerate.Sample(src, 100))
}
