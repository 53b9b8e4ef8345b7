package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/marketfold/go-targeting-service/pkg/types"
)

// GetAssignment returns the persisted assignment for a subject, if any.
func (r *Repository) GetAssignment(ctx context.Context, experimentKey, subjectID string) (types.Assignment, error) {
	const q = `
		SELECT experiment_key, subject_id, variant_key, assigned_at
		FROM experiment_assignments
		WHERE experiment_key = $1 AND subject_id = $2`

	var a types.Assignment
	err := r.pool.QueryRow(ctx, q, experimentKey, subjectID).Scan(
		&a.ExperimentKey, &a.SubjectID, &a.VariantKey, &a.AssignedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Assignment{}, fmt.Errorf("assignment for %s/%s: %w", experimentKey, subjectID, ErrNotFound)
		}
		return types.Assignment{}, fmt.Errorf("find assignment: %w", err)
	}
	return a, nil
}

// CreateAssignmentIfAbsent persists a first-time assignment. The insert is
// atomic against concurrent first-time calls for the same pair: a primary
// key on (experiment_key, subject_id) plus ON CONFLICT DO NOTHING means
// exactly one caller wins, and the loser reads the winner's row back.
//
// Returns the durable assignment and whether this call created it. The
// assignment event only enters the outbox in the winning transaction.
func (r *Repository) CreateAssignmentIfAbsent(ctx context.Context, a types.Assignment, evalContext map[string]any) (types.Assignment, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return types.Assignment{}, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
		INSERT INTO experiment_assignments (experiment_key, subject_id, variant_key, assigned_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (experiment_key, subject_id) DO NOTHING`
	tag, err := tx.Exec(ctx, q, a.ExperimentKey, a.SubjectID, a.VariantKey, a.AssignedAt)
	if err != nil {
		return types.Assignment{}, false, fmt.Errorf("insert assignment: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// A concurrent call won the race; its row is authoritative.
		winner, err := r.GetAssignment(ctx, a.ExperimentKey, a.SubjectID)
		if err != nil {
			return types.Assignment{}, false, err
		}
		return winner, false, nil
	}

	event := types.AssignmentEvent{
		ExperimentKey: a.ExperimentKey,
		SubjectID:     a.SubjectID,
		VariantKey:    a.VariantKey,
		AssignedAt:    a.AssignedAt,
		Context:       evalContext,
	}
	if err := enqueueOutbox(ctx, tx, r.assignmentsTopic, a.ExperimentKey, "ASSIGNED", event); err != nil {
		return types.Assignment{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Assignment{}, false, fmt.Errorf("commit assignment: %w", err)
	}
	return a, true, nil
}

// CountAssignments returns per-variant participant counts and the total.
func (r *Repository) CountAssignments(ctx context.Context, experimentKey string) (map[string]int64, int64, error) {
	const q = `
		SELECT variant_key, COUNT(*)
		FROM experiment_assignments
		WHERE experiment_key = $1
		GROUP BY variant_key`

	rows, err := r.pool.Query(ctx, q, experimentKey)
	if err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	var total int64
	for rows.Next() {
		var variantKey string
		var n int64
		if err := rows.Scan(&variantKey, &n); err != nil {
			return nil, 0, fmt.Errorf("scan assignment count: %w", err)
		}
		counts[variantKey] = n
		total += n
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate assignment counts: %w", err)
	}
	return counts, total, nil
}
