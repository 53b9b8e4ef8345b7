package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is one pending row awaiting publication.
type OutboxEvent struct {
	EventID     uuid.UUID
	Topic       string
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

// FetchPendingOutbox returns up to limit pending events, oldest first.
func (r *Repository) FetchPendingOutbox(ctx context.Context, limit int) ([]OutboxEvent, error) {
	const q = `
		SELECT event_id, topic, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE processing_state = 'PENDING'
		ORDER BY created_at
		LIMIT $1`

	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.EventID, &e.Topic, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return events, nil
}

// LockOutboxEvent claims an event with a compare-and-set on its state so
// concurrent workers never publish the same event twice. Returns false when
// another worker already holds it.
func (r *Repository) LockOutboxEvent(ctx context.Context, eventID uuid.UUID) (bool, error) {
	const q = `
		UPDATE outbox SET processing_state = 'LOCKED'
		WHERE event_id = $1 AND processing_state = 'PENDING'`

	tag, err := r.pool.Exec(ctx, q, eventID)
	if err != nil {
		return false, fmt.Errorf("lock outbox event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseOutboxEvent puts a locked event back so it is retried after a
// failed publish.
func (r *Repository) ReleaseOutboxEvent(ctx context.Context, eventID uuid.UUID) error {
	const q = `UPDATE outbox SET processing_state = 'PENDING' WHERE event_id = $1`
	if _, err := r.pool.Exec(ctx, q, eventID); err != nil {
		return fmt.Errorf("release outbox event: %w", err)
	}
	return nil
}

// DeleteOutboxEvent removes a published event.
func (r *Repository) DeleteOutboxEvent(ctx context.Context, eventID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM outbox WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("delete outbox event: %w", err)
	}
	return nil
}
