package model

import (
	"math"
	"time"
)

// Subscription is a student's plan state. There is at most one per student.
type Subscription struct {
	ID        string     `db:"id" json:"id,omitempty"`
	StudentID string     `db:"student_id" json:"student_id"`
	Plan      PlanTier   `db:"plan" json:"plan"`
	StartDate time.Time  `db:"start_date" json:"start_date"`
	EndDate   *time.Time `db:"end_date" json:"end_date"`
	TTSUsed   int        `db:"tts_used" json:"tts_used"`
	TTSLimit  int        `db:"tts_limit" json:"tts_limit"`
	IsActive  bool       `db:"is_active" json:"is_active"`
	// Persisted is false for the virtual default handed out before the
	// first mutation.
	Persisted bool      `db:"-" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// DefaultSubscription is the unpersisted record a student gets before any
// plan change has been written.
func DefaultSubscription(studentID string, t StudentType, now time.Time) *Subscription {
	plan := t.BasePlan()
	return &Subscription{
		StudentID: studentID,
		Plan:      plan,
		StartDate: now,
		TTSLimit:  plan.Entitlements().PremiumVoiceChars,
		IsActive:  true,
	}
}

// Expired reports whether the activation window has lapsed.
func (s *Subscription) Expired(now time.Time) bool {
	return s.EndDate != nil && s.EndDate.Before(now)
}

// EffectivePlan is the plan whose limits apply at now. A lapsed or inactive
// pro subscription that the sweep has not reached yet counts as the base plan.
func (s *Subscription) EffectivePlan(t StudentType, now time.Time) PlanTier {
	if s == nil {
		return t.BasePlan()
	}
	if s.Plan == PlanPro && (!s.IsActive || s.Expired(now)) {
		return t.BasePlan()
	}
	return s.Plan
}

// TTSRemaining is the premium voice balance, never negative.
func (s *Subscription) TTSRemaining() int {
	if s.TTSLimit <= s.TTSUsed {
		return 0
	}
	return s.TTSLimit - s.TTSUsed
}

// CanUsePremiumVoice reports whether any premium voice balance is usable.
func (s *Subscription) CanUsePremiumVoice(now time.Time) bool {
	return s != nil && s.Plan == PlanPro && s.IsActive && !s.Expired(now) && s.TTSUsed < s.TTSLimit
}

// DaysRemaining returns whole days left in a pro activation window, rounded
// up, or nil when the plan has no window.
func (s *Subscription) DaysRemaining(now time.Time) *int {
	if s == nil || s.Plan != PlanPro || s.EndDate == nil {
		return nil
	}
	days := int(math.Ceil(s.EndDate.Sub(now).Hours() / 24))
	if days < 0 {
		days = 0
	}
	return &days
}

// TTSUsagePercent is the share of the premium voice allowance consumed.
func (s *Subscription) TTSUsagePercent() float64 {
	if s == nil || s.TTSLimit == 0 {
		return 0
	}
	return math.Min(100, float64(s.TTSUsed)/float64(s.TTSLimit)*100)
}

// StatusLabel summarises the subscription for display.
func (s *Subscription) StatusLabel(latest *UpgradeRequest, now time.Time) string {
	if s == nil {
		return "No Plan"
	}
	if latest != nil {
		switch latest.Status {
		case RequestBlocked:
			return "Blocked"
		case RequestPending:
			return "Pending Approval"
		}
	}
	switch s.Plan {
	case PlanPro:
		if s.Expired(now) {
			return "Expired"
		}
		if s.TTSUsed >= s.TTSLimit {
			return "Voice Limit Reached"
		}
		return "Active Pro"
	case PlanStarter:
		return "Starter"
	default:
		return "Basic"
	}
}
