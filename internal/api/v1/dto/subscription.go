package dto

import (
	"time"

	"studybuddy/internal/model"
)

// SubscriptionDTO is the student-facing view of a subscription record
type SubscriptionDTO struct {
	Plan         model.PlanTier `json:"plan"`
	StartDate    time.Time      `json:"startDate"`
	EndDate      *time.Time     `json:"endDate"`
	TTSUsed      int            `json:"ttsUsed"`
	TTSLimit     int            `json:"ttsLimit"`
	TTSRemaining int            `json:"ttsRemaining"`
	IsActive     bool           `json:"isActive"`
}

// DailyUsageDTO is today's consumption
type DailyUsageDTO struct {
	UsageDate  string `json:"usageDate"`
	ChatsUsed  int    `json:"chatsUsed"`
	ImagesUsed int    `json:"imagesUsed"`
}

// SubscriptionResponseDTO is returned by GET /subscription
type SubscriptionResponseDTO struct {
	Subscription    SubscriptionDTO    `json:"subscription"`
	PendingRequest  *UpgradeRequestDTO `json:"pendingRequest"`
	StudentType     model.StudentType  `json:"studentType"`
	DailyUsage      DailyUsageDTO      `json:"dailyUsage"`
	PlanLimits      model.Entitlements `json:"planLimits"`
	StatusLabel     string             `json:"statusLabel"`
	DaysRemaining   *int               `json:"daysRemaining"`
	TTSUsagePercent float64            `json:"ttsUsagePercent"`
}

// UsageCheckRequestDTO is the body of POST /usage/check
type UsageCheckRequestDTO struct {
	UsageType string `json:"usageType" validate:"required,oneof=chat image"`
}

// TTSIncrementRequestDTO is the body of POST /tts/increment
type TTSIncrementRequestDTO struct {
	CharacterCount int `json:"characterCount" validate:"required,gt=0"`
}

// ToSubscriptionDTO maps a subscription record.
func ToSubscriptionDTO(s *model.Subscription) SubscriptionDTO {
	return SubscriptionDTO{
		Plan:         s.Plan,
		StartDate:    s.StartDate,
		EndDate:      s.EndDate,
		TTSUsed:      s.TTSUsed,
		TTSLimit:     s.TTSLimit,
		TTSRemaining: s.TTSRemaining(),
		IsActive:     s.IsActive,
	}
}
