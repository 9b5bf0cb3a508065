package dto

import (
	"time"

	"studybuddy/internal/model"
)

// UpgradeRequestCreateDTO is the body of POST /upgrade-requests. An empty
// plan means pro.
type UpgradeRequestCreateDTO struct {
	RequestedPlan string `json:"requestedPlan" validate:"omitempty,oneof=starter basic pro"`
}

// UpgradeRequestDTO is returned wherever a request is shown
type UpgradeRequestDTO struct {
	ID              string              `json:"id"`
	StudentID       string              `json:"studentId"`
	RequestedPlan   model.PlanTier      `json:"requestedPlan"`
	Status          model.RequestStatus `json:"status"`
	RequestedAt     time.Time           `json:"requestedAt"`
	ProcessedAt     *time.Time          `json:"processedAt,omitempty"`
	ProcessedBy     *string             `json:"processedBy,omitempty"`
	RejectionReason *string             `json:"rejectionReason,omitempty"`
}

// InstitutionAuthDTO carries the institution session every institution
// endpoint requires.
type InstitutionAuthDTO struct {
	SessionToken  string `json:"sessionToken" validate:"required"`
	InstitutionID string `json:"institutionId" validate:"required"`
	// InstitutionType is school or coaching; defaults to school.
	InstitutionType string `json:"institutionType" validate:"omitempty,oneof=school coaching"`
}

// RequestDecisionDTO is the body of approve and reject
type RequestDecisionDTO struct {
	InstitutionAuthDTO
	RequestID string `json:"requestId" validate:"required"`
	Reason    string `json:"reason" validate:"max=500"`
}

// StudentActionDTO is the body of block and cancel-pro
type StudentActionDTO struct {
	InstitutionAuthDTO
	StudentID string `json:"studentId" validate:"required"`
}

// AdminAuthDTO is the body of admin endpoints
type AdminAuthDTO struct {
	SessionToken string `json:"sessionToken" validate:"required"`
}

// StudentDTO is a roster entry
type StudentDTO struct {
	ID              string              `json:"id"`
	FullName        string              `json:"fullName"`
	Class           *string             `json:"class,omitempty"`
	StudentType     model.StudentType   `json:"studentType"`
	IsBanned        bool                `json:"isBanned"`
	Subscription    *SubscriptionDTO    `json:"subscription"`
	UpgradeRequests []UpgradeRequestDTO `json:"upgradeRequests"`
}

// PendingRequestDTO pairs a pending request with its student
type PendingRequestDTO struct {
	UpgradeRequestDTO
	StudentName string `json:"studentName"`
}

// RosterResponseDTO is returned by POST /institutions/requests
type RosterResponseDTO struct {
	Students        []StudentDTO        `json:"students"`
	PendingRequests []PendingRequestDTO `json:"pendingRequests"`
}

// ActionResponseDTO acknowledges a mutation
type ActionResponseDTO struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SweepResponseDTO is returned by the sweep trigger
type SweepResponseDTO struct {
	ExpiredCount int `json:"expiredCount"`
}

// ErrorResponseDTO is the body of every failed request
type ErrorResponseDTO struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ToUpgradeRequestDTO maps an upgrade request; nil stays nil.
func ToUpgradeRequestDTO(r *model.UpgradeRequest) *UpgradeRequestDTO {
	if r == nil {
		return nil
	}
	return &UpgradeRequestDTO{
		ID:              r.ID,
		StudentID:       r.StudentID,
		RequestedPlan:   r.RequestedPlan,
		Status:          r.Status,
		RequestedAt:     r.RequestedAt,
		ProcessedAt:     r.ProcessedAt,
		ProcessedBy:     r.ProcessedBy,
		RejectionReason: r.RejectionReason,
	}
}

// ToStudentDTO maps a roster entry.
func ToStudentDTO(a model.StudentAccount) StudentDTO {
	out := StudentDTO{
		ID:              a.Student.ID,
		FullName:        a.Student.FullName,
		Class:           a.Student.Class,
		StudentType:     a.Student.StudentType,
		IsBanned:        a.Student.IsBanned,
		UpgradeRequests: make([]UpgradeRequestDTO, 0, len(a.UpgradeRequests)),
	}
	if a.Subscription != nil {
		s := ToSubscriptionDTO(a.Subscription)
		out.Subscription = &s
	}
	for i := range a.UpgradeRequests {
		out.UpgradeRequests = append(out.UpgradeRequests, *ToUpgradeRequestDTO(&a.UpgradeRequests[i]))
	}
	return out
}
