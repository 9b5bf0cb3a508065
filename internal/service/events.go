package service

import (
	"context"
	"time"

	"studybuddy/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventPublisher delivers subscription lifecycle events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev model.SubscriptionEvent) error
}

// Clock returns the current time. Tests replace it with a fixed instant.
type Clock func() time.Time

// publishEvent is best effort: the transition has already been committed, so a
// delivery failure is logged and not returned.
func publishEvent(ctx context.Context, pub EventPublisher, logger zerolog.Logger, typ model.EventType, studentID string, plan model.PlanTier, institutionID string, at time.Time) {
	if pub == nil {
		return
	}
	ev := model.SubscriptionEvent{
		ID:            uuid.NewString(),
		Type:          typ,
		StudentID:     studentID,
		Plan:          plan,
		InstitutionID: institutionID,
		OccurredAt:    at,
	}
	if err := pub.PublishEvent(ctx, ev); err != nil {
		logger.Warn().Err(err).Str("event_type", string(typ)).Str("student_id", studentID).Msg("Failed to publish subscription event")
	}
}
