package service

import (
	"context"
	"fmt"

	"studybuddy/internal/metrics"
	"studybuddy/internal/model"
	"studybuddy/internal/repository"

	"github.com/rs/zerolog"
)

// UsageResult is the outcome of a daily usage check.
type UsageResult struct {
	Allowed      bool           `json:"allowed"`
	CurrentCount int            `json:"currentCount"`
	Limit        int            `json:"limit"`
	Remaining    int            `json:"remaining"`
	Plan         model.PlanTier `json:"plan"`
	Message      string         `json:"message,omitempty"`
}

// DailyUsageSummary reports today's counters without consuming anything.
type DailyUsageSummary struct {
	UsageDate  string         `json:"usageDate"`
	Plan       model.PlanTier `json:"plan"`
	ChatsUsed  int            `json:"chatsUsed"`
	ChatLimit  int            `json:"chatLimit"`
	ImagesUsed int            `json:"imagesUsed"`
	ImageLimit int            `json:"imageLimit"`
}

// UsageService gates chat and image actions against daily plan limits.
type UsageService interface {
	// CheckAndIncrement consumes one unit when the student is under the day's
	// limit. Hitting the limit is reported with Allowed=false, not an error.
	CheckAndIncrement(ctx context.Context, studentID string, usageType model.UsageType) (*UsageResult, error)
	GetDailyUsage(ctx context.Context, studentID string) (*DailyUsageSummary, error)
}

type usageService struct {
	usage   repository.UsageRepository
	subs    SubscriptionService
	metrics *metrics.EntitlementMetrics
	now     Clock
	logger  zerolog.Logger
}

// NewUsageService creates a new UsageService with a scoped logger.
func NewUsageService(usage repository.UsageRepository, subs SubscriptionService, m *metrics.EntitlementMetrics, now Clock, logger zerolog.Logger) UsageService {
	return &usageService{
		usage:   usage,
		subs:    subs,
		metrics: m,
		now:     now,
		logger:  logger.With().Str("service", "UsageService").Logger(),
	}
}

// LimitReachedMessage is the upgrade prompt shown when a daily cap is hit.
func LimitReachedMessage(t model.UsageType) string {
	return fmt.Sprintf("Daily %s limit reached. Upgrade your plan for more.", t)
}

func (s *usageService) CheckAndIncrement(ctx context.Context, studentID string, usageType model.UsageType) (*UsageResult, error) {
	if _, err := model.ParseUsageType(string(usageType)); err != nil {
		return nil, ErrInvalidUsageType
	}

	sub, st, err := s.subs.GetSubscription(ctx, studentID)
	if err != nil {
		s.observe(usageType, metrics.ResultError)
		return nil, err
	}
	now := s.now()
	plan := sub.EffectivePlan(st, now)
	limit := plan.Entitlements().DailyLimit(usageType)
	day := model.UsageDate(now)

	count, allowed, err := s.usage.IncrementWithCeiling(ctx, studentID, day, usageType, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("student_id", studentID).Str("usage_type", string(usageType)).Msg("Failed to check daily usage")
		s.observe(usageType, metrics.ResultError)
		return nil, err
	}

	res := &UsageResult{
		Allowed:      allowed,
		CurrentCount: count,
		Limit:        limit,
		Remaining:    max(limit-count, 0),
		Plan:         plan,
	}
	if !allowed {
		res.Message = LimitReachedMessage(usageType)
		s.observe(usageType, metrics.ResultDenied)
		s.logger.Debug().Str("student_id", studentID).Str("usage_type", string(usageType)).Int("count", count).Int("limit", limit).Msg("Daily limit reached")
		return res, nil
	}
	s.observe(usageType, metrics.ResultAllowed)
	return res, nil
}

func (s *usageService) observe(t model.UsageType, result string) {
	if s.metrics != nil {
		s.metrics.UsageCheckTotal.WithLabelValues(string(t), result).Inc()
	}
}

func (s *usageService) GetDailyUsage(ctx context.Context, studentID string) (*DailyUsageSummary, error) {
	sub, st, err := s.subs.GetSubscription(ctx, studentID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	day := model.UsageDate(now)
	u, err := s.usage.GetDailyUsage(ctx, studentID, day)
	if err != nil {
		s.logger.Error().Err(err).Str("student_id", studentID).Msg("Failed to fetch daily usage")
		return nil, err
	}
	plan := sub.EffectivePlan(st, now)
	e := plan.Entitlements()
	return &DailyUsageSummary{
		UsageDate:  day,
		Plan:       plan,
		ChatsUsed:  u.ChatsUsed,
		ChatLimit:  e.ChatsPerDay,
		ImagesUsed: u.ImagesUsed,
		ImageLimit: e.ImagesPerDay,
	}, nil
}
