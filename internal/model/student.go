package model

import "time"

// StudentType determines a student's base tier and legal upgrade targets.
type StudentType string

const (
	SchoolStudent   StudentType = "school_student"
	CoachingStudent StudentType = "coaching_student"
)

// BasePlan is the tier a student falls back to on cancel, block or expiry.
func (t StudentType) BasePlan() PlanTier {
	if t == CoachingStudent {
		return PlanStarter
	}
	return PlanBasic
}

// CanRequest reports whether a student of this type may ask for plan.
// School students can only go straight to pro.
func (t StudentType) CanRequest(plan PlanTier) bool {
	switch t {
	case CoachingStudent:
		return plan == PlanBasic || plan == PlanPro
	default:
		return plan == PlanPro
	}
}

// Student represents a student profile as far as entitlements need it.
type Student struct {
	ID               string      `db:"id" json:"id"`
	FullName         string      `db:"full_name" json:"full_name"`
	Class            *string     `db:"class" json:"class,omitempty"`
	StudentType      StudentType `db:"student_type" json:"student_type"`
	SchoolID         *string     `db:"school_id" json:"school_id,omitempty"`
	CoachingCenterID *string     `db:"coaching_center_id" json:"coaching_center_id,omitempty"`
	IsApproved       bool        `db:"is_approved" json:"is_approved"`
	IsBanned         bool        `db:"is_banned" json:"is_banned"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
}

// BelongsTo reports whether the institution owns this student.
func (s *Student) BelongsTo(inst *Institution) bool {
	if s == nil || inst == nil {
		return false
	}
	var owner *string
	switch inst.Kind {
	case InstitutionSchool:
		owner = s.SchoolID
	case InstitutionCoaching:
		owner = s.CoachingCenterID
	}
	return owner != nil && *owner == inst.ID
}

// InstitutionKind distinguishes schools from coaching centers.
type InstitutionKind string

const (
	InstitutionSchool   InstitutionKind = "school"
	InstitutionCoaching InstitutionKind = "coaching"
)

// Institution is a school or coaching center whose admins process requests.
type Institution struct {
	ID       string          `db:"id" json:"id"`
	Kind     InstitutionKind `db:"kind" json:"type"`
	Name     string          `db:"name" json:"name"`
	IsBanned bool            `db:"is_banned" json:"is_banned"`
	// FeePaid is always true for coaching centers.
	FeePaid bool `db:"fee_paid" json:"fee_paid"`
}

// CanAct reports whether the institution's admins may act on requests.
func (i *Institution) CanAct() bool {
	return i != nil && !i.IsBanned && i.FeePaid
}

// StudentAccount bundles a student with its entitlement state for dashboards.
type StudentAccount struct {
	Student
	Subscription    *Subscription    `json:"subscription,omitempty"`
	UpgradeRequests []UpgradeRequest `json:"upgrade_requests"`
}

// PendingRequest returns the student's pending request, if any.
func (a *StudentAccount) PendingRequest() *UpgradeRequest {
	for i := range a.UpgradeRequests {
		if a.UpgradeRequests[i].Status == RequestPending {
			return &a.UpgradeRequests[i]
		}
	}
	return nil
}
