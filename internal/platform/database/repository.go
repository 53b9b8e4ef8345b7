package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool is the subset of pgxpool.Pool the repository uses. Tests substitute
// a pgxmock pool.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is the Postgres-backed store for definitions, profiles and
// assignments. Writes that must be observed downstream go through the
// outbox table in the same transaction.
type Repository struct {
	pool Pool

	definitionsTopic string
	assignmentsTopic string
}

func NewRepository(p Pool, definitionsTopic, assignmentsTopic string) *Repository {
	return &Repository{
		pool:             p,
		definitionsTopic: definitionsTopic,
		assignmentsTopic: assignmentsTopic,
	}
}

// enqueueOutbox writes a pending outbox row inside the caller's
// transaction. The outbox worker publishes the payload to the given topic
// and deletes the row.
func enqueueOutbox(ctx context.Context, tx pgx.Tx, topic, aggregateID, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	const q = `
		INSERT INTO outbox (event_id, topic, aggregate_id, event_type, payload, created_at, processing_state)
		VALUES ($1, $2, $3, $4, $5, $6, 'PENDING')`
	if _, err := tx.Exec(ctx, q, uuid.New(), topic, aggregateID, eventType, body, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
