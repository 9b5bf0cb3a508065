package model

import "time"

// RequestStatus is the upgrade request state. Pending is the only
// non-terminal state.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
	RequestBlocked  RequestStatus = "blocked"
)

// Terminal reports whether no further transition is allowed.
func (s RequestStatus) Terminal() bool {
	return s != RequestPending
}

// DefaultRejectionReason is recorded when an institution gives none.
const DefaultRejectionReason = "No reason provided"

// UpgradeRequest is a student's request to change plan.
type UpgradeRequest struct {
	ID              string        `db:"id" json:"id"`
	StudentID       string        `db:"student_id" json:"student_id"`
	RequestedPlan   PlanTier      `db:"requested_plan" json:"requested_plan"`
	Status          RequestStatus `db:"status" json:"status"`
	RequestedAt     time.Time     `db:"requested_at" json:"requested_at"`
	ProcessedAt     *time.Time    `db:"processed_at" json:"processed_at"`
	ProcessedBy     *string       `db:"processed_by" json:"processed_by"`
	RejectionReason *string       `db:"rejection_reason" json:"rejection_reason"`
}
