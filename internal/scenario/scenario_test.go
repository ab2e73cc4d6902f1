package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOneTimeEventFiresExactlyOnce(t *testing.T) {
	s := NewScheduler([]*ScheduledEvent{
		{ID: "e1", Type: EventDirectTransfer, Repeat: OneTime, FirstTick: 5},
	})
	assert.Len(t, s.Due(4), 0)
	assert.Len(t, s.Due(5), 1)
	assert.Len(t, s.Due(5), 0) // already fired, idempotent on replay of the same tick
	assert.Len(t, s.Due(6), 0)
}

func TestRepeatingEventFiresOnInterval(t *testing.T) {
	s := NewScheduler([]*ScheduledEvent{
		{ID: "e1", Type: EventGlobalArrivalRateChange, Repeat: Repeating, FirstTick: 2, IntervalTicks: 3},
	})
	var fired []int64
	for tick := int64(0); tick < 12; tick++ {
		if len(s.Due(tick)) > 0 {
			fired = append(fired, tick)
		}
	}
	assert.Equal(t, []int64{2, 5, 8, 11}, fired)
}

func TestRepeatingEventRespectsEndTick(t *testing.T) {
	s := NewScheduler([]*ScheduledEvent{
		{ID: "e1", Type: EventGlobalArrivalRateChange, Repeat: Repeating, FirstTick: 0, IntervalTicks: 2, EndTick: 4},
	})
	var fired []int64
	for tick := int64(0); tick < 10; tick++ {
		if len(s.Due(tick)) > 0 {
			fired = append(fired, tick)
		}
	}
	assert.Equal(t, []int64{0, 2, 4}, fired)
}
