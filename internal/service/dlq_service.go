package service

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"studybuddy/internal/api/v1/dto"
	"studybuddy/internal/metrics"
	"studybuddy/internal/model"
	"studybuddy/internal/repository"

	"github.com/rs/zerolog"
)

// DeadLetterService records subscription events that Pub/Sub gave up on.
type DeadLetterService interface {
	Record(ctx context.Context, req *dto.PubSubPushRequest) error
}

type deadLetterService struct {
	repo    repository.DeadLetterRepository
	metrics *metrics.EntitlementMetrics
	logger  zerolog.Logger
}

// NewDeadLetterService creates a new DeadLetterService with a scoped logger.
func NewDeadLetterService(repo repository.DeadLetterRepository, m *metrics.EntitlementMetrics, logger zerolog.Logger) DeadLetterService {
	return &deadLetterService{
		repo:    repo,
		metrics: m,
		logger:  logger.With().Str("service", "DeadLetterService").Logger(),
	}
}

func (s *deadLetterService) Record(ctx context.Context, req *dto.PubSubPushRequest) error {
	payload, err := base64.StdEncoding.DecodeString(req.Message.Data)
	if err != nil {
		// Keep whatever arrived.
		payload = []byte(req.Message.Data)
	}

	ev := &model.DeadLetterEvent{
		SubscriptionName: req.Subscription,
		MessageID:        req.Message.MessageID,
		Payload:          string(payload),
		DeliveryAttempt:  req.DeliveryAttempt,
		Status:           model.DeadLetterUnprocessed,
	}
	if len(req.Message.Attributes) > 0 {
		if raw, err := json.Marshal(req.Message.Attributes); err == nil {
			attrs := string(raw)
			ev.Attributes = &attrs
		}
	}

	var sub model.SubscriptionEvent
	if json.Unmarshal(payload, &sub) == nil && sub.Type != "" {
		ev.EventType = &sub.Type
		if sub.StudentID != "" {
			ev.StudentID = &sub.StudentID
		}
	}

	inserted, err := s.repo.Create(ctx, ev)
	if err != nil {
		s.observe(ev, "error")
		s.logger.Error().Err(err).Str("message_id", ev.MessageID).Msg("Failed to save dead-lettered event")
		return err
	}
	if !inserted {
		s.observe(ev, "duplicate")
		s.logger.Debug().Str("message_id", ev.MessageID).Msg("Dead-lettered event already recorded")
		return nil
	}
	s.observe(ev, "recorded")
	s.logger.Warn().
		Str("message_id", ev.MessageID).
		Str("subscription", ev.SubscriptionName).
		Int("delivery_attempt", ev.DeliveryAttempt).
		Msg("Recorded dead-lettered subscription event")
	return nil
}

func (s *deadLetterService) observe(ev *model.DeadLetterEvent, result string) {
	if s.metrics == nil {
		return
	}
	eventType := "unknown"
	if ev.EventType != nil {
		eventType = string(*ev.EventType)
	}
	s.metrics.DeadLetterTotal.WithLabelValues(eventType, result).Inc()
}
