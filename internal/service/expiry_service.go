package service

import (
	"context"
	"time"

	"studybuddy/internal/metrics"
	"studybuddy/internal/model"
	"studybuddy/internal/repository"

	"github.com/rs/zerolog"
)

// ExpiryService reverts lapsed pro subscriptions to the student's base plan.
type ExpiryService interface {
	// SweepExpired downgrades every pro subscription whose window has closed
	// and returns how many were downgraded. Per-record failures are logged and
	// skipped; only a failure to list candidates is returned.
	SweepExpired(ctx context.Context) (int, error)
}

type expiryService struct {
	subs    repository.SubscriptionRepository
	events  EventPublisher
	metrics *metrics.EntitlementMetrics
	now     Clock
	logger  zerolog.Logger
}

// NewExpiryService creates a new ExpiryService with a scoped logger.
func NewExpiryService(subs repository.SubscriptionRepository, events EventPublisher, m *metrics.EntitlementMetrics, now Clock, logger zerolog.Logger) ExpiryService {
	return &expiryService{
		subs:    subs,
		events:  events,
		metrics: m,
		now:     now,
		logger:  logger.With().Str("service", "ExpiryService").Logger(),
	}
}

func (s *expiryService) SweepExpired(ctx context.Context) (int, error) {
	start := time.Now()
	now := s.now()

	expired, err := s.subs.ListExpired(ctx, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list expired subscriptions")
		s.finish(start, 0, err)
		return 0, err
	}

	swept := 0
	for _, e := range expired {
		if ctx.Err() != nil {
			break
		}
		base := e.StudentType.BasePlan()
		ok, err := s.subs.DowngradeIfExpired(ctx, e.StudentID, base, now)
		if err != nil {
			s.logger.Error().Err(err).Str("student_id", e.StudentID).Msg("Failed to downgrade expired subscription")
			if s.metrics != nil {
				s.metrics.SweepFailuresTotal.Inc()
			}
			continue
		}
		if !ok {
			// Renewed or already downgraded since the scan.
			continue
		}
		swept++
		publishEvent(ctx, s.events, s.logger, model.EventPlanExpired, e.StudentID, base, "", now)
	}

	s.logger.Info().Int("candidates", len(expired)).Int("expired_count", swept).Msg("Expiry sweep finished")
	s.finish(start, swept, nil)
	return swept, nil
}

func (s *expiryService) finish(start time.Time, swept int, err error) {
	if s.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failed"
	}
	s.metrics.SweepRunsTotal.WithLabelValues(result).Inc()
	s.metrics.SweepExpiredTotal.Add(float64(swept))
	s.metrics.SweepDuration.Observe(time.Since(start).Seconds())
}
