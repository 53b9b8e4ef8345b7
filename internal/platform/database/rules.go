package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/marketfold/go-targeting-service/pkg/types"
)

const ruleColumns = `
	key, name, type, priority, conditions, actions, active,
	active_from, active_until, created_at, updated_at`

func scanRule(row pgx.Row) (types.Rule, error) {
	var rule types.Rule
	err := row.Scan(
		&rule.Key, &rule.Name, &rule.Type, &rule.Priority,
		&rule.Conditions, &rule.Actions, &rule.Active,
		&rule.ActiveFrom, &rule.ActiveUntil,
		&rule.CreatedAt, &rule.UpdatedAt)
	return rule, err
}

func (r *Repository) CreateRule(ctx context.Context, rule types.Rule) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
		INSERT INTO rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = tx.Exec(ctx, q,
		rule.Key, rule.Name, rule.Type, rule.Priority,
		rule.Conditions, rule.Actions, rule.Active,
		rule.ActiveFrom, rule.ActiveUntil,
		rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("rule %q: %w", rule.Key, ErrDuplicateKey)
		}
		return fmt.Errorf("insert rule: %w", err)
	}

	event := types.DefinitionEvent{Kind: "rule", Key: rule.Key, Action: "UPSERT", ChangedAt: rule.UpdatedAt}
	if err := enqueueOutbox(ctx, tx, r.definitionsTopic, rule.Key, "UPSERT", event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) GetRule(ctx context.Context, key string) (types.Rule, error) {
	const q = `SELECT ` + ruleColumns + ` FROM rules WHERE key = $1`

	rule, err := scanRule(r.pool.QueryRow(ctx, q, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Rule{}, fmt.Errorf("rule %q: %w", key, ErrNotFound)
		}
		return types.Rule{}, fmt.Errorf("find rule: %w", err)
	}
	return rule, nil
}

// ListRulesByType returns every rule of one type, priority descending.
// Activity filtering happens at evaluation time, not here, so callers can
// also list scheduled and expired rules.
func (r *Repository) ListRulesByType(ctx context.Context, ruleType string) ([]types.Rule, error) {
	const q = `SELECT ` + ruleColumns + ` FROM rules WHERE type = $1 ORDER BY priority DESC, key`

	rows, err := r.pool.Query(ctx, q, ruleType)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var rules []types.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule row: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}

func (r *Repository) UpdateRule(ctx context.Context, rule types.Rule) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
		UPDATE rules
		SET name = $1, type = $2, priority = $3, conditions = $4, actions = $5,
		    active = $6, active_from = $7, active_until = $8, updated_at = $9
		WHERE key = $10`
	tag, err := tx.Exec(ctx, q,
		rule.Name, rule.Type, rule.Priority, rule.Conditions, rule.Actions,
		rule.Active, rule.ActiveFrom, rule.ActiveUntil, rule.UpdatedAt, rule.Key)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule %q: %w", rule.Key, ErrNotFound)
	}

	event := types.DefinitionEvent{Kind: "rule", Key: rule.Key, Action: "UPSERT", ChangedAt: rule.UpdatedAt}
	if err := enqueueOutbox(ctx, tx, r.definitionsTopic, rule.Key, "UPSERT", event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) DeleteRule(ctx context.Context, key string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM rules WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule %q: %w", key, ErrNotFound)
	}

	event := types.DefinitionEvent{Kind: "rule", Key: key, Action: "DELETE", ChangedAt: time.Now().UTC()}
	if err := enqueueOutbox(ctx, tx, r.definitionsTopic, key, "DELETE", event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
