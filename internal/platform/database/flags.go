package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/marketfold/go-targeting-service/pkg/types"
)

const flagColumns = `
	key, environment, name, description, type, default_value, targeting,
	active, tags, created_at, updated_at`

func scanFlag(row pgx.Row) (types.Flag, error) {
	var f types.Flag
	err := row.Scan(
		&f.Key, &f.Environment, &f.Name, &f.Description, &f.Type,
		&f.DefaultValue, &f.Targeting, &f.Active, &f.Tags,
		&f.CreatedAt, &f.UpdatedAt)
	return f, err
}

// CreateFlag inserts a flag definition for one environment.
func (r *Repository) CreateFlag(ctx context.Context, f types.Flag) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
		INSERT INTO flags (` + flagColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = tx.Exec(ctx, q,
		f.Key, f.Environment, f.Name, f.Description, f.Type,
		f.DefaultValue, f.Targeting, f.Active, f.Tags,
		f.CreatedAt, f.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("flag %q: %w", f.Key, ErrDuplicateKey)
		}
		return fmt.Errorf("insert flag: %w", err)
	}

	event := types.DefinitionEvent{Kind: "flag", Key: f.Key, Action: "UPSERT", ChangedAt: f.UpdatedAt}
	if err := enqueueOutbox(ctx, tx, r.definitionsTopic, f.Key, "UPSERT", event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetFlag loads one flag for one environment.
func (r *Repository) GetFlag(ctx context.Context, key, environment string) (types.Flag, error) {
	const q = `SELECT ` + flagColumns + ` FROM flags WHERE key = $1 AND environment = $2`

	f, err := scanFlag(r.pool.QueryRow(ctx, q, key, environment))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Flag{}, fmt.Errorf("flag %q: %w", key, ErrNotFound)
		}
		return types.Flag{}, fmt.Errorf("find flag: %w", err)
	}
	return f, nil
}

// ListFlags returns all flags for an environment, optionally only active
// ones.
func (r *Repository) ListFlags(ctx context.Context, environment string, activeOnly bool) ([]types.Flag, error) {
	q := `SELECT ` + flagColumns + ` FROM flags WHERE environment = $1`
	if activeOnly {
		q += ` AND active`
	}
	q += ` ORDER BY key`

	rows, err := r.pool.Query(ctx, q, environment)
	if err != nil {
		return nil, fmt.Errorf("query flags: %w", err)
	}
	defer rows.Close()

	var flags []types.Flag
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan flag row: %w", err)
		}
		flags = append(flags, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flags: %w", err)
	}
	return flags, nil
}

// UpdateFlag rewrites a flag definition.
func (r *Repository) UpdateFlag(ctx context.Context, f types.Flag) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
		UPDATE flags
		SET name = $1, description = $2, type = $3, default_value = $4,
		    targeting = $5, active = $6, tags = $7, updated_at = $8
		WHERE key = $9 AND environment = $10`
	tag, err := tx.Exec(ctx, q,
		f.Name, f.Description, f.Type, f.DefaultValue,
		f.Targeting, f.Active, f.Tags, f.UpdatedAt,
		f.Key, f.Environment)
	if err != nil {
		return fmt.Errorf("update flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("flag %q: %w", f.Key, ErrNotFound)
	}

	event := types.DefinitionEvent{Kind: "flag", Key: f.Key, Action: "UPSERT", ChangedAt: f.UpdatedAt}
	if err := enqueueOutbox(ctx, tx, r.definitionsTopic, f.Key, "UPSERT", event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// DeleteFlag removes a flag definition.
func (r *Repository) DeleteFlag(ctx context.Context, key, environment string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM flags WHERE key = $1 AND environment = $2`, key, environment)
	if err != nil {
		return fmt.Errorf("delete flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("flag %q: %w", key, ErrNotFound)
	}

	event := types.DefinitionEvent{Kind: "flag", Key: key, Action: "DELETE", ChangedAt: time.Now().UTC()}
	if err := enqueueOutbox(ctx, tx, r.definitionsTopic, key, "DELETE", event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
