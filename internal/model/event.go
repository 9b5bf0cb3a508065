package model

import "time"

// EventType names a subscription lifecycle transition.
type EventType string

const (
	EventUpgradeRequested EventType = "upgrade_requested"
	EventUpgradeApproved  EventType = "upgrade_approved"
	EventUpgradeRejected  EventType = "upgrade_rejected"
	EventStudentBlocked   EventType = "student_blocked"
	EventPlanCancelled    EventType = "plan_cancelled"
	EventPlanExpired      EventType = "plan_expired"
)

// SubscriptionEvent is published after a successful transition.
type SubscriptionEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	StudentID     string    `json:"student_id"`
	Plan          PlanTier  `json:"plan"`
	InstitutionID string    `json:"institution_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// InstitutionStats summarises plan adoption for one institution.
type InstitutionStats struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Kind             InstitutionKind `json:"type"`
	TotalStudents    int             `json:"totalStudents"`
	StarterUsers     int             `json:"starterUsers"`
	BasicUsers       int             `json:"basicUsers"`
	ProUsers         int             `json:"proUsers"`
	EstimatedRevenue int             `json:"estimatedRevenue"`
}
