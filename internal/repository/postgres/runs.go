package postgres

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"rtgssim/internal/domain"
	"rtgssim/internal/money"
	perrors "rtgssim/pkg/errors"
)

// RunRepository persists simulation_runs rows and the events.Sink contract
// (simulation_events) an Emitter writes through during a run.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository builds a RunRepository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Run mirrors a simulation_runs row. ExperimentID and Iteration are nil
// for an ad-hoc run not part of an optimization experiment.
type Run struct {
	ID           string
	Config       json.RawMessage
	Seed         int64
	ExperimentID *string
	Iteration    *int
	Purpose      string
}

// CreateRun inserts a new simulation_runs row before the engine starts
// ticking, so simulation_events rows can reference it via foreign key.
func (r *RunRepository) CreateRun(ctx context.Context, run Run) error {
	query := `
		INSERT INTO simulation_runs (id, config, seed, experiment_id, iteration, purpose)
		VALUES (:id, :config, :seed, :experiment_id, :iteration, :purpose)
	`
	_, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":            run.ID,
		"config":        []byte(run.Config),
		"seed":          run.Seed,
		"experiment_id": run.ExperimentID,
		"iteration":     run.Iteration,
		"purpose":       run.Purpose,
	})
	return perrors.Wrap(err, "creating simulation run")
}

// FindRun looks up a run by id, returning ErrRunNotFound if absent.
func (r *RunRepository) FindRun(ctx context.Context, id string) (*Run, error) {
	var row struct {
		ID           string          `db:"id"`
		Config       json.RawMessage `db:"config"`
		Seed         int64           `db:"seed"`
		ExperimentID *string         `db:"experiment_id"`
		Iteration    *int            `db:"iteration"`
		Purpose      string          `db:"purpose"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT id, config, seed, experiment_id, iteration, purpose FROM simulation_runs WHERE id = $1`, id)
	if isNoRows(err) {
		return nil, perrors.ErrRunNotFound
	}
	if err != nil {
		return nil, perrors.Wrap(err, "finding simulation run")
	}
	return &Run{ID: row.ID, Config: row.Config, Seed: row.Seed, ExperimentID: row.ExperimentID, Iteration: row.Iteration, Purpose: row.Purpose}, nil
}

// eventRow is the simulation_events wire row, matched to domain.Event plus
// the hash-chain fields internal/events attaches.
type eventRow struct {
	SimID    string          `db:"sim_id"`
	Tick     int64           `db:"tick"`
	Seq      int64           `db:"seq"`
	Day      int64           `db:"day"`
	Type     string          `db:"type"`
	AgentID  *string         `db:"agent_id"`
	TxID     *string         `db:"tx_id"`
	Details  json.RawMessage `db:"details"`
	Hash     string          `db:"hash"`
	PrevHash string          `db:"prev_hash"`
}

// AppendEvent implements events.Sink: writes one event row per call. The
// simulation_events primary key (sim_id, seq) makes a duplicate Emit for
// the same run a constraint violation rather than a silent double-write.
func (r *RunRepository) AppendEvent(runID string, e domain.Event, hash, prevHash string) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return perrors.Wrap(err, "encoding event details")
	}
	var agentID, txID *string
	if e.AgentID != nil {
		s := string(*e.AgentID)
		agentID = &s
	}
	if e.TxID != nil {
		s := string(*e.TxID)
		txID = &s
	}
	row := eventRow{
		SimID: runID, Tick: e.Tick, Seq: e.SeqNum, Day: e.Day, Type: string(e.Type),
		AgentID: agentID, TxID: txID, Details: details, Hash: hash, PrevHash: prevHash,
	}
	query := `
		INSERT INTO simulation_events (sim_id, tick, seq, day, type, agent_id, tx_id, details, hash, prev_hash)
		VALUES (:sim_id, :tick, :seq, :day, :type, :agent_id, :tx_id, :details, :hash, :prev_hash)
	`
	_, err = r.db.NamedExecContext(context.Background(), query, row)
	return perrors.Wrap(err, "appending simulation event")
}

// EventsInRange reads back events for a run with tick in [from, to],
// ordered by seq, satisfying the replay contract (§4.1 get_events).
func (r *RunRepository) EventsInRange(ctx context.Context, runID string, from, to int64) ([]domain.Event, []string, []string, error) {
	var rows []eventRow
	query := `
		SELECT sim_id, tick, seq, day, type, agent_id, tx_id, details, hash, prev_hash
		FROM simulation_events
		WHERE sim_id = $1 AND tick >= $2 AND tick <= $3
		ORDER BY seq ASC
	`
	if err := r.db.SelectContext(ctx, &rows, query, runID, from, to); err != nil {
		return nil, nil, nil, perrors.Wrap(err, "reading simulation events")
	}
	events := make([]domain.Event, 0, len(rows))
	hashes := make([]string, 0, len(rows))
	prevHashes := make([]string, 0, len(rows))
	for _, row := range rows {
		var details map[string]interface{}
		if err := json.Unmarshal(row.Details, &details); err != nil {
			return nil, nil, nil, perrors.Wrap(err, "decoding event details")
		}
		e := domain.Event{SeqNum: row.Seq, Tick: row.Tick, Day: row.Day, Type: domain.EventType(row.Type), Details: details}
		if row.AgentID != nil {
			aid := money.AgentID(*row.AgentID)
			e.AgentID = &aid
		}
		if row.TxID != nil {
			tid := money.TxID(*row.TxID)
			e.TxID = &tid
		}
		events = append(events, e)
		hashes = append(hashes, row.Hash)
		prevHashes = append(prevHashes, row.PrevHash)
	}
	return events, hashes, prevHashes, nil
}
