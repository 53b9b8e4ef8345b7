package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/marketfold/go-targeting-service/pkg/types"
)

const segmentColumns = `key, name, description, rules, dynamic, created_at, updated_at`

func scanSegment(row pgx.Row) (types.Segment, error) {
	var s types.Segment
	err := row.Scan(
		&s.Key, &s.Name, &s.Description, &s.Rules, &s.Dynamic,
		&s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *Repository) CreateSegment(ctx context.Context, s types.Segment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
		INSERT INTO segments (` + segmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = tx.Exec(ctx, q,
		s.Key, s.Name, s.Description, s.Rules, s.Dynamic, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("segment %q: %w", s.Key, ErrDuplicateKey)
		}
		return fmt.Errorf("insert segment: %w", err)
	}

	event := types.DefinitionEvent{Kind: "segment", Key: s.Key, Action: "UPSERT", ChangedAt: s.UpdatedAt}
	if err := enqueueOutbox(ctx, tx, r.definitionsTopic, s.Key, "UPSERT", event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) GetSegment(ctx context.Context, key string) (types.Segment, error) {
	const q = `SELECT ` + segmentColumns + ` FROM segments WHERE key = $1`

	s, err := scanSegment(r.pool.QueryRow(ctx, q, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Segment{}, fmt.Errorf("segment %q: %w", key, ErrNotFound)
		}
		return types.Segment{}, fmt.Errorf("find segment: %w", err)
	}
	return s, nil
}

func (r *Repository) ListSegments(ctx context.Context) ([]types.Segment, error) {
	const q = `SELECT ` + segmentColumns + ` FROM segments ORDER BY key`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var segments []types.Segment
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan segment row: %w", err)
		}
		segments = append(segments, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}
	return segments, nil
}

func (r *Repository) UpdateSegment(ctx context.Context, s types.Segment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
		UPDATE segments
		SET name = $1, description = $2, rules = $3, dynamic = $4, updated_at = $5
		WHERE key = $6`
	tag, err := tx.Exec(ctx, q, s.Name, s.Description, s.Rules, s.Dynamic, s.UpdatedAt, s.Key)
	if err != nil {
		return fmt.Errorf("update segment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("segment %q: %w", s.Key, ErrNotFound)
	}

	event := types.DefinitionEvent{Kind: "segment", Key: s.Key, Action: "UPSERT", ChangedAt: s.UpdatedAt}
	if err := enqueueOutbox(ctx, tx, r.definitionsTopic, s.Key, "UPSERT", event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) DeleteSegment(ctx context.Context, key string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM segments WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete segment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("segment %q: %w", key, ErrNotFound)
	}

	event := types.DefinitionEvent{Kind: "segment", Key: key, Action: "DELETE", ChangedAt: time.Now().UTC()}
	if err := enqueueOutbox(ctx, tx, r.definitionsTopic, key, "DELETE", event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
