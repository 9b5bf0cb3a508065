package service

import (
	"context"
	"errors"

	"studybuddy/internal/metrics"
	"studybuddy/internal/model"
	"studybuddy/internal/repository"

	"github.com/rs/zerolog"
)

// Premium voice refusal reasons.
const (
	ReasonNotPro       = "not pro"
	ReasonExpired      = "expired"
	ReasonLimitReached = "limit reached"
)

// TTSDecision is the outcome of a premium voice debit attempt.
type TTSDecision struct {
	UsePremium   bool   `json:"usePremiumTTS"`
	Reason       string `json:"reason,omitempty"`
	TTSUsed      int    `json:"ttsUsed"`
	TTSLimit     int    `json:"ttsLimit"`
	TTSRemaining int    `json:"ttsRemaining"`
}

// Overview is everything a student dashboard shows about entitlements.
type Overview struct {
	Subscription    *model.Subscription
	LatestRequest   *model.UpgradeRequest
	StudentType     model.StudentType
	DailyUsage      *model.DailyUsage
	Plan            model.PlanTier
	PlanLimits      model.Entitlements
	StatusLabel     string
	DaysRemaining   *int
	TTSUsagePercent float64
}

// SubscriptionService defines business logic methods for subscriptions.
type SubscriptionService interface {
	// GetSubscription returns the persisted record or an unpersisted default
	// for the student's base plan, along with the student's type.
	GetSubscription(ctx context.Context, studentID string) (*model.Subscription, model.StudentType, error)
	GetOverview(ctx context.Context, studentID string) (*Overview, error)
	// IncrementTTS debits characterCount premium voice characters, all or nothing.
	IncrementTTS(ctx context.Context, studentID string, characterCount int) (*TTSDecision, error)
	// CancelOrDowngrade returns the student to the base plan with no expiry.
	CancelOrDowngrade(ctx context.Context, studentID string) (model.PlanTier, error)
}

type subscriptionService struct {
	subs     repository.SubscriptionRepository
	students repository.StudentRepository
	usage    repository.UsageRepository
	requests repository.UpgradeRequestRepository
	metrics  *metrics.EntitlementMetrics
	now      Clock
	logger   zerolog.Logger
}

// NewSubscriptionService creates a new SubscriptionService with a scoped logger.
func NewSubscriptionService(
	subs repository.SubscriptionRepository,
	students repository.StudentRepository,
	usage repository.UsageRepository,
	requests repository.UpgradeRequestRepository,
	m *metrics.EntitlementMetrics,
	now Clock,
	logger zerolog.Logger,
) SubscriptionService {
	return &subscriptionService{
		subs:     subs,
		students: students,
		usage:    usage,
		requests: requests,
		metrics:  m,
		now:      now,
		logger:   logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

// studentType defaults to school_student when the profile is missing.
func studentType(ctx context.Context, repo repository.StudentRepository, studentID string) (model.StudentType, error) {
	st, err := repo.GetStudent(ctx, studentID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.SchoolStudent, nil
	}
	if err != nil {
		return "", err
	}
	if st.StudentType != model.CoachingStudent {
		return model.SchoolStudent, nil
	}
	return model.CoachingStudent, nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, studentID string) (*model.Subscription, model.StudentType, error) {
	st, err := studentType(ctx, s.students, studentID)
	if err != nil {
		s.logger.Error().Err(err).Str("student_id", studentID).Msg("Failed to fetch student")
		return nil, "", err
	}
	sub, err := s.subs.GetSubscription(ctx, studentID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.DefaultSubscription(studentID, st, s.now()), st, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Str("student_id", studentID).Msg("Failed to fetch subscription")
		return nil, "", err
	}
	return sub, st, nil
}

func (s *subscriptionService) GetOverview(ctx context.Context, studentID string) (*Overview, error) {
	sub, st, err := s.GetSubscription(ctx, studentID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	latest, err := s.requests.GetLatest(ctx, studentID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error().Err(err).Str("student_id", studentID).Msg("Failed to fetch latest upgrade request")
		return nil, err
	}

	usage, err := s.usage.GetDailyUsage(ctx, studentID, model.UsageDate(now))
	if err != nil {
		s.logger.Error().Err(err).Str("student_id", studentID).Msg("Failed to fetch daily usage")
		return nil, err
	}

	plan := sub.EffectivePlan(st, now)
	return &Overview{
		Subscription:    sub,
		LatestRequest:   latest,
		StudentType:     st,
		DailyUsage:      usage,
		Plan:            plan,
		PlanLimits:      plan.Entitlements(),
		StatusLabel:     sub.StatusLabel(latest, now),
		DaysRemaining:   sub.DaysRemaining(now),
		TTSUsagePercent: sub.TTSUsagePercent(),
	}, nil
}

func (s *subscriptionService) IncrementTTS(ctx context.Context, studentID string, characterCount int) (*TTSDecision, error) {
	if characterCount <= 0 {
		return nil, ErrInvalidCharacterCount
	}
	now := s.now()

	sub, err := s.subs.GetSubscription(ctx, studentID)
	if errors.Is(err, repository.ErrNotFound) {
		return s.deny(&TTSDecision{}, ReasonNotPro), nil
	}
	if err != nil {
		s.logger.Error().Err(err).Str("student_id", studentID).Msg("Failed to fetch subscription for tts")
		s.observeTTS(metrics.ResultError, "")
		return nil, err
	}

	d := &TTSDecision{TTSUsed: sub.TTSUsed, TTSLimit: sub.TTSLimit, TTSRemaining: sub.TTSRemaining()}
	switch {
	case sub.Plan != model.PlanPro || !sub.IsActive:
		return s.deny(d, ReasonNotPro), nil
	case sub.Expired(now):
		return s.deny(d, ReasonExpired), nil
	case sub.TTSUsed+characterCount > sub.TTSLimit:
		return s.deny(d, ReasonLimitReached), nil
	}

	updated, ok, err := s.subs.DebitTTS(ctx, studentID, characterCount, now)
	if err != nil {
		s.logger.Error().Err(err).Str("student_id", studentID).Int("chars", characterCount).Msg("Failed to debit tts")
		s.observeTTS(metrics.ResultError, "")
		return nil, err
	}
	if !ok {
		// Lost a race with another debit or an expiry.
		return s.deny(d, ReasonLimitReached), nil
	}

	s.observeTTS(metrics.ResultAllowed, "")
	if s.metrics != nil {
		s.metrics.TTSCharsDebited.Add(float64(characterCount))
	}
	return &TTSDecision{
		UsePremium:   true,
		TTSUsed:      updated.TTSUsed,
		TTSLimit:     updated.TTSLimit,
		TTSRemaining: updated.TTSRemaining(),
	}, nil
}

func (s *subscriptionService) deny(d *TTSDecision, reason string) *TTSDecision {
	d.UsePremium = false
	d.Reason = reason
	s.observeTTS(metrics.ResultDenied, reason)
	return d
}

func (s *subscriptionService) observeTTS(result, reason string) {
	if s.metrics != nil {
		s.metrics.TTSDecisionTotal.WithLabelValues(result, reason).Inc()
	}
}

func (s *subscriptionService) CancelOrDowngrade(ctx context.Context, studentID string) (model.PlanTier, error) {
	st, err := studentType(ctx, s.students, studentID)
	if err != nil {
		s.logger.Error().Err(err).Str("student_id", studentID).Msg("Failed to fetch student")
		return "", err
	}
	base := st.BasePlan()
	if err := s.subs.Downgrade(ctx, studentID, base); err != nil {
		s.logger.Error().Err(err).Str("student_id", studentID).Msg("Failed to downgrade subscription")
		return "", err
	}
	s.logger.Info().Str("student_id", studentID).Str("plan", string(base)).Msg("Subscription downgraded")
	return base, nil
}
