package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/marketfold/go-targeting-service/pkg/types"
)

const experimentColumns = `
	id, key, name, description, hypothesis, status, traffic_percent,
	target_segments, start_date, end_date, variants, created_at, updated_at`

func scanExperiment(row pgx.Row) (types.Experiment, error) {
	var exp types.Experiment
	err := row.Scan(
		&exp.ID, &exp.Key, &exp.Name, &exp.Description, &exp.Hypothesis,
		&exp.Status, &exp.TrafficPercent, &exp.TargetSegments,
		&exp.StartDate, &exp.EndDate, &exp.Variants,
		&exp.CreatedAt, &exp.UpdatedAt)
	return exp, err
}

// CreateExperiment inserts a new experiment and a definition change event
// in one transaction.
func (r *Repository) CreateExperiment(ctx context.Context, exp types.Experiment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
		INSERT INTO experiments (` + experimentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err = tx.Exec(ctx, q,
		exp.ID, exp.Key, exp.Name, exp.Description, exp.Hypothesis,
		exp.Status, exp.TrafficPercent, exp.TargetSegments,
		exp.StartDate, exp.EndDate, exp.Variants,
		exp.CreatedAt, exp.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("experiment %q: %w", exp.Key, ErrDuplicateKey)
		}
		return fmt.Errorf("insert experiment: %w", err)
	}

	event := types.DefinitionEvent{Kind: "experiment", Key: exp.Key, Action: "UPSERT", ChangedAt: exp.UpdatedAt}
	if err := enqueueOutbox(ctx, tx, r.definitionsTopic, exp.Key, "UPSERT", event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetExperimentByKey loads a full experiment definition.
func (r *Repository) GetExperimentByKey(ctx context.Context, key string) (types.Experiment, error) {
	const q = `SELECT ` + experimentColumns + ` FROM experiments WHERE key = $1 LIMIT 1`

	exp, err := scanExperiment(r.pool.QueryRow(ctx, q, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Experiment{}, fmt.Errorf("experiment %q: %w", key, ErrNotFound)
		}
		return types.Experiment{}, fmt.Errorf("find experiment: %w", err)
	}
	return exp, nil
}

// ListExperiments returns experiments, optionally filtered by status,
// newest first.
func (r *Repository) ListExperiments(ctx context.Context, status types.ExperimentStatus, limit, offset int) ([]types.Experiment, error) {
	q := `SELECT ` + experimentColumns + ` FROM experiments`
	args := []any{}
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, status)
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query experiments: %w", err)
	}
	defer rows.Close()

	var experiments []types.Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan experiment row: %w", err)
		}
		experiments = append(experiments, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiments: %w", err)
	}
	return experiments, nil
}

// UpdateExperiment rewrites an experiment definition and records the change
// event in the same transaction.
func (r *Repository) UpdateExperiment(ctx context.Context, exp types.Experiment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
		UPDATE experiments
		SET name = $1, description = $2, hypothesis = $3, status = $4,
		    traffic_percent = $5, target_segments = $6, start_date = $7,
		    end_date = $8, variants = $9, updated_at = $10
		WHERE key = $11`
	tag, err := tx.Exec(ctx, q,
		exp.Name, exp.Description, exp.Hypothesis, exp.Status,
		exp.TrafficPercent, exp.TargetSegments, exp.StartDate,
		exp.EndDate, exp.Variants, exp.UpdatedAt, exp.Key)
	if err != nil {
		return fmt.Errorf("update experiment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("experiment %q: %w", exp.Key, ErrNotFound)
	}

	event := types.DefinitionEvent{Kind: "experiment", Key: exp.Key, Action: "UPSERT", ChangedAt: exp.UpdatedAt}
	if err := enqueueOutbox(ctx, tx, r.definitionsTopic, exp.Key, "UPSERT", event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// DeleteExperiment removes an experiment and records a delete event.
func (r *Repository) DeleteExperiment(ctx context.Context, key string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM experiments WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete experiment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("experiment %q: %w", key, ErrNotFound)
	}

	event := types.DefinitionEvent{Kind: "experiment", Key: key, Action: "DELETE", ChangedAt: time.Now().UTC()}
	if err := enqueueOutbox(ctx, tx, r.definitionsTopic, key, "DELETE", event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SaveConclusion upserts the final verdict for an experiment and flips its
// status to CONCLUDED in one transaction.
func (r *Repository) SaveConclusion(ctx context.Context, c types.ExperimentConclusion) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const upsert = `
		INSERT INTO experiment_conclusions (experiment_key, winning_variant, conclusion, sample_size, concluded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (experiment_key) DO UPDATE
		SET winning_variant = EXCLUDED.winning_variant,
		    conclusion = EXCLUDED.conclusion,
		    sample_size = EXCLUDED.sample_size,
		    concluded_at = EXCLUDED.concluded_at`
	if _, err := tx.Exec(ctx, upsert,
		c.ExperimentKey, c.WinningVariant, c.Conclusion, c.SampleSize, c.ConcludedAt); err != nil {
		return fmt.Errorf("upsert conclusion: %w", err)
	}

	const flip = `UPDATE experiments SET status = $1, end_date = $2, updated_at = $2 WHERE key = $3`
	if _, err := tx.Exec(ctx, flip, types.StatusConcluded, c.ConcludedAt, c.ExperimentKey); err != nil {
		return fmt.Errorf("update experiment status: %w", err)
	}

	event := types.DefinitionEvent{Kind: "experiment", Key: c.ExperimentKey, Action: "UPSERT", ChangedAt: c.ConcludedAt}
	if err := enqueueOutbox(ctx, tx, r.definitionsTopic, c.ExperimentKey, "UPSERT", event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetConclusion returns the recorded verdict, if any.
func (r *Repository) GetConclusion(ctx context.Context, experimentKey string) (types.ExperimentConclusion, error) {
	const q = `
		SELECT experiment_key, winning_variant, conclusion, sample_size, concluded_at
		FROM experiment_conclusions WHERE experiment_key = $1`

	var c types.ExperimentConclusion
	err := r.pool.QueryRow(ctx, q, experimentKey).Scan(
		&c.ExperimentKey, &c.WinningVariant, &c.Conclusion, &c.SampleSize, &c.ConcludedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.ExperimentConclusion{}, fmt.Errorf("conclusion for %q: %w", experimentKey, ErrNotFound)
		}
		return types.ExperimentConclusion{}, fmt.Errorf("find conclusion: %w", err)
	}
	return c, nil
}
