package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rtgssim/internal/domain"
)

type memorySink struct {
	events    []domain.Event
	hashes    []string
	prevHash  []string
}

func (m *memorySink) AppendEvent(runID string, e domain.Event, hash, prevHash string) error {
	m.events = append(m.events, e)
	m.hashes = append(m.hashes, hash)
	m.prevHash = append(m.prevHash, prevHash)
	return nil
}

func TestEmitAssignsSeqAndChainsHashes(t *testing.T) {
	sink := &memorySink{}
	em := NewEmitter("run-1", sink)

	assert.NoError(t, em.Emit(domain.Event{Tick: 1, Type: domain.EventTxArrived}))
	assert.NoError(t, em.Emit(domain.Event{Tick: 2, Type: domain.EventTxSettledQueue1}))

	assert.Equal(t, int64(1), sink.events[0].SeqNum)
	assert.Equal(t, int64(2), sink.events[1].SeqNum)
	assert.Equal(t, sink.hashes[0], sink.prevHash[1])

	idx := VerifyChain(sink.events, sink.hashes, sink.prevHash)
	assert.Equal(t, -1, idx)
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	sink := &memorySink{}
	em := NewEmitter("run-1", sink)
	assert.NoError(t, em.Emit(domain.Event{Tick: 1, Type: domain.EventTxArrived}))
	assert.NoError(t, em.Emit(domain.Event{Tick: 2, Type: domain.EventTxSettledQueue1}))

	sink.events[0].Tick = 999 // tamper after the fact

	idx := VerifyChain(sink.events, sink.hashes, sink.prevHash)
	assert.NotEqual(t, -1, idx)
}
