// Package redisq is the fast, namespaced events.Sink variant of the
// persisted state layout: it trades the relational foreign-key structure
// of internal/repository/postgres for an append-only per-run Redis list,
// useful for a run whose events are read back whole (as `run replay`
// does) rather than queried relationally. Event ordering within a run
// is exactly list order: AppendEvent always RPushes, never reorders.
package redisq

import (
	"context"
	"encoding/json"

	"rtgssim/internal/domain"
	"rtgssim/internal/money"
	"rtgssim/pkg/cache"
	perrors "rtgssim/pkg/errors"
)

// Sink is a namespaced, Redis-backed events.Sink. Multiple engines sharing
// one Redis instance stay isolated from each other as long as each run is
// given a distinct id, since every key is prefixed by namespace+runID.
type Sink struct {
	cache     *cache.RedisCache
	namespace string
}

// New builds a Sink whose keys live under namespace, isolating one
// simulator deployment's runs from another sharing the same Redis.
func New(c *cache.RedisCache, namespace string) *Sink {
	return &Sink{cache: c, namespace: namespace}
}

// wireEvent is the JSON-on-the-wire shape of one hash-chained event,
// matching the columns internal/repository/postgres stores relationally.
type wireEvent struct {
	SeqNum   int64                  `json:"seq_num"`
	Tick     int64                  `json:"tick"`
	Day      int64                  `json:"day"`
	Type     string                 `json:"type"`
	AgentID  *string                `json:"agent_id,omitempty"`
	TxID     *string                `json:"tx_id,omitempty"`
	Details  map[string]interface{} `json:"details"`
	Hash     string                 `json:"hash"`
	PrevHash string                 `json:"prev_hash"`
}

func (s *Sink) key(runID string) string {
	return s.namespace + ":run:" + runID + ":events"
}

// AppendEvent implements events.Sink.
func (s *Sink) AppendEvent(runID string, e domain.Event, hash, prevHash string) error {
	var agentID, txID *string
	if e.AgentID != nil {
		v := string(*e.AgentID)
		agentID = &v
	}
	if e.TxID != nil {
		v := string(*e.TxID)
		txID = &v
	}
	we := wireEvent{
		SeqNum: e.SeqNum, Tick: e.Tick, Day: e.Day, Type: string(e.Type),
		AgentID: agentID, TxID: txID, Details: e.Details, Hash: hash, PrevHash: prevHash,
	}
	return perrors.Wrap(s.cache.RPushJSON(context.Background(), s.key(runID), we), "appending event to redis sink")
}

// EventsInRange reads back the full per-run event list and filters by
// tick range client-side: Redis lists have no secondary index, so this
// variant trades query power for write simplicity, per the persistence
// contract's "narrow interface" framing (§4.1 get_events is satisfied,
// just not efficiently for a very long run).
func (s *Sink) EventsInRange(ctx context.Context, runID string, from, to int64) ([]domain.Event, []string, []string, error) {
	var events []domain.Event
	var hashes, prevHashes []string
	err := s.cache.LRangeJSON(ctx, s.key(runID), 0, -1, func(raw []byte) error {
		var we wireEvent
		if err := json.Unmarshal(raw, &we); err != nil {
			return err
		}
		if we.Tick < from || we.Tick > to {
			return nil
		}
		e := domain.Event{SeqNum: we.SeqNum, Tick: we.Tick, Day: we.Day, Type: domain.EventType(we.Type), Details: we.Details}
		if we.AgentID != nil {
			aid := money.AgentID(*we.AgentID)
			e.AgentID = &aid
		}
		if we.TxID != nil {
			tid := money.TxID(*we.TxID)
			e.TxID = &tid
		}
		events = append(events, e)
		hashes = append(hashes, we.Hash)
		prevHashes = append(prevHashes, we.PrevHash)
		return nil
	})
	if err != nil {
		return nil, nil, nil, perrors.Wrap(err, "reading events from redis sink")
	}
	return events, hashes, prevHashes, nil
}

// RunKeys lists the full Redis key (namespace:run:<id>:events) of every
// run with at least one event stored under this sink's namespace.
func (s *Sink) RunKeys(ctx context.Context) ([]string, error) {
	keys, err := s.cache.KeysWithPrefix(ctx, s.namespace+":run:")
	if err != nil {
		return nil, perrors.Wrap(err, "listing redis run keys")
	}
	return keys, nil
}
