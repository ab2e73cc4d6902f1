package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"rtgssim/internal/money"
	"rtgssim/internal/optimize"
	perrors "rtgssim/pkg/errors"
)

// ExperimentRepository persists the optimization-loop tables: experiments,
// experiment_iterations, experiment_events, policy_evaluations.
type ExperimentRepository struct {
	db *sqlx.DB
}

// NewExperimentRepository builds an ExperimentRepository.
func NewExperimentRepository(db *sqlx.DB) *ExperimentRepository {
	return &ExperimentRepository{db: db}
}

// Experiment mirrors one experiments row.
type Experiment struct {
	ID          string          `db:"id"`
	Name        string          `db:"name"`
	Type        string          `db:"type"`
	Config      json.RawMessage `db:"config"`
	MasterSeed  int64           `db:"master_seed"`
	StartedAt   time.Time       `db:"started_at"`
	CompletedAt *time.Time      `db:"completed_at"`
	Converged   bool            `db:"converged"`
	FinalCost   *int64          `db:"final_cost"`
	BestCost    *int64          `db:"best_cost"`
}

// CreateExperiment inserts a new experiments row at the start of an
// optimization run.
func (r *ExperimentRepository) CreateExperiment(ctx context.Context, exp Experiment) error {
	query := `
		INSERT INTO experiments (id, name, type, config, master_seed, started_at)
		VALUES (:id, :name, :type, :config, :master_seed, :started_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id": exp.ID, "name": exp.Name, "type": exp.Type,
		"config": []byte(exp.Config), "master_seed": exp.MasterSeed, "started_at": exp.StartedAt,
	})
	return perrors.Wrap(err, "creating experiment")
}

// CompleteExperiment marks an experiment finished, recording whether it
// converged and its final/best aggregate costs.
func (r *ExperimentRepository) CompleteExperiment(ctx context.Context, id string, converged bool, finalCost, bestCost money.Cents) error {
	query := `
		UPDATE experiments SET completed_at = now(), converged = $1, final_cost = $2, best_cost = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, converged, int64(finalCost), int64(bestCost), id)
	return perrors.Wrap(err, "completing experiment")
}

// FindExperiment looks up an experiment by id.
func (r *ExperimentRepository) FindExperiment(ctx context.Context, id string) (*Experiment, error) {
	var exp Experiment
	err := r.db.GetContext(ctx, &exp, `
		SELECT id, name, type, config, master_seed, started_at, completed_at, converged, final_cost, best_cost
		FROM experiments WHERE id = $1
	`, id)
	if isNoRows(err) {
		return nil, perrors.ErrExperimentNotFound
	}
	return &exp, perrors.Wrap(err, "finding experiment")
}

// RecordIteration persists one optimize.IterationResult under an
// experiment, storing the policies document the caller supplies alongside
// its measured costs.
func (r *ExperimentRepository) RecordIteration(ctx context.Context, experimentID string, result optimize.IterationResult, policies json.RawMessage) error {
	costs, err := json.Marshal(map[string]int64{
		"incumbent":   int64(result.IncumbentCost),
		"candidate":   int64(result.CandidateCost),
		"sum_delta":   int64(result.SumDelta),
		"num_samples": int64(result.NumSamples),
	})
	if err != nil {
		return perrors.Wrap(err, "encoding iteration costs")
	}
	query := `
		INSERT INTO experiment_iterations (experiment_id, iter, agent_id, costs_per_agent, policies)
		VALUES (:experiment_id, :iter, :agent_id, :costs_per_agent, :policies)
		ON CONFLICT (experiment_id, iter, agent_id) DO UPDATE
		SET costs_per_agent = EXCLUDED.costs_per_agent, policies = EXCLUDED.policies
	`
	_, err = r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"experiment_id": experimentID, "iter": result.Iteration, "agent_id": string(result.AgentID),
		"costs_per_agent": []byte(costs), "policies": []byte(policies),
	})
	return perrors.Wrap(err, "recording experiment iteration")
}

// IterationRow mirrors one experiment_iterations row for result listing.
type IterationRow struct {
	Iter          int             `db:"iter"`
	AgentID       string          `db:"agent_id"`
	CostsPerAgent json.RawMessage `db:"costs_per_agent"`
}

// ListIterations returns every recorded iteration of an experiment in
// iteration order.
func (r *ExperimentRepository) ListIterations(ctx context.Context, experimentID string) ([]IterationRow, error) {
	var rows []IterationRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT iter, agent_id, costs_per_agent
		FROM experiment_iterations WHERE experiment_id = $1
		ORDER BY iter, agent_id
	`, experimentID)
	return rows, perrors.Wrap(err, "listing experiment iterations")
}

// ListExperiments returns experiments newest first, optionally filtered by
// name; name "" lists everything.
func (r *ExperimentRepository) ListExperiments(ctx context.Context, name string) ([]Experiment, error) {
	var exps []Experiment
	query := `
		SELECT id, name, type, config, master_seed, started_at, completed_at, converged, final_cost, best_cost
		FROM experiments WHERE ($1 = '' OR name = $1)
		ORDER BY started_at DESC
	`
	err := r.db.SelectContext(ctx, &exps, query, name)
	return exps, perrors.Wrap(err, "listing experiments")
}

// RecordPolicyEvaluation persists the accept/reject decision for one
// candidate, satisfying the policy_evaluations table contract of §6.
func (r *ExperimentRepository) RecordPolicyEvaluation(ctx context.Context, runID string, iter int, agentID money.AgentID, proposedPolicy json.RawMessage, proposedCost, currentBestCost money.Cents, accepted bool, reason string) error {
	query := `
		INSERT INTO policy_evaluations (run_id, iter, agent_id, proposed_policy, proposed_cost, current_best_cost, accepted, acceptance_reason)
		VALUES (:run_id, :iter, :agent_id, :proposed_policy, :proposed_cost, :current_best_cost, :accepted, :acceptance_reason)
		ON CONFLICT (run_id, iter, agent_id) DO UPDATE
		SET proposed_policy = EXCLUDED.proposed_policy, proposed_cost = EXCLUDED.proposed_cost,
		    current_best_cost = EXCLUDED.current_best_cost, accepted = EXCLUDED.accepted,
		    acceptance_reason = EXCLUDED.acceptance_reason
	`
	_, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"run_id": runID, "iter": iter, "agent_id": string(agentID),
		"proposed_policy": []byte(proposedPolicy), "proposed_cost": int64(proposedCost),
		"current_best_cost": int64(currentBestCost), "accepted": accepted, "acceptance_reason": reason,
	})
	return perrors.Wrap(err, "recording policy evaluation")
}

// AppendExperimentEvent writes one experiment_events row; seq is supplied
// by the caller (the optimization loop's own monotonic counter) since,
// unlike simulation_events, there is no single Emitter guarding sequence
// assignment across the whole experiment.
func (r *ExperimentRepository) AppendExperimentEvent(ctx context.Context, experimentID string, iter int, seq int64, eventType string, data json.RawMessage) error {
	query := `
		INSERT INTO experiment_events (experiment_id, iter, seq, type, data)
		VALUES (:experiment_id, :iter, :seq, :type, :data)
	`
	_, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"experiment_id": experimentID, "iter": iter, "seq": seq, "type": eventType, "data": []byte(data),
	})
	return perrors.Wrap(err, "appending experiment event")
}
