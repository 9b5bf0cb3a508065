package repository

import (
	"context"
	"fmt"

	"studybuddy/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DeadLetterRepository stores subscription events that exhausted delivery.
type DeadLetterRepository interface {
	// Create stores the event. A redelivery of the same message is ignored
	// and reports inserted=false.
	Create(ctx context.Context, ev *model.DeadLetterEvent) (inserted bool, err error)
}

type deadLetterRepo struct {
	pool *pgxpool.Pool
}

func NewDeadLetterRepo(pool *pgxpool.Pool) DeadLetterRepository {
	return &deadLetterRepo{pool: pool}
}

func (r *deadLetterRepo) Create(ctx context.Context, ev *model.DeadLetterEvent) (bool, error) {
	const q = `
        INSERT INTO dead_letter_events
            (subscription_name, message_id, event_type, student_id, payload, attributes, delivery_attempt, status)
        VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)
        ON CONFLICT (subscription_name, message_id) DO NOTHING
    `
	tag, err := r.pool.Exec(ctx, q,
		ev.SubscriptionName,
		ev.MessageID,
		ev.EventType,
		ev.StudentID,
		ev.Payload,
		ev.Attributes,
		ev.DeliveryAttempt,
		string(ev.Status),
	)
	if err != nil {
		return false, fmt.Errorf("insert dead letter %s: %w", ev.MessageID, err)
	}
	return tag.RowsAffected() == 1, nil
}
