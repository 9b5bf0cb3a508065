package service

import (
	"errors"
	"fmt"
	"strings"

	"studybuddy/internal/model"
)

// Kind classifies a service error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthenticated
	KindForbidden
)

// Error is a classified service failure carrying a user-facing message.
// Two Errors match under errors.Is when their codes are equal.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidPlan           = &Error{KindValidation, "invalid_plan", "Invalid plan requested"}
	ErrInvalidUsageType      = &Error{KindValidation, "invalid_usage_type", "Invalid usage type"}
	ErrInvalidCharacterCount = &Error{KindValidation, "invalid_character_count", "Character count must be positive"}
	ErrPendingRequestExists  = &Error{KindValidation, "pending_request_exists", "You already have a pending upgrade request"}
	ErrAlreadyOnPlan         = &Error{KindValidation, "already_on_plan", "You already have this plan"}
	ErrPlanNotAllowed        = &Error{KindValidation, "plan_not_allowed", "School students can only upgrade to Pro"}
	ErrRequestProcessed      = &Error{KindValidation, "request_processed", "Request already processed"}
	ErrStudentNotFound       = &Error{KindNotFound, "student_not_found", "Student not found"}
	ErrRequestNotFound       = &Error{KindNotFound, "request_not_found", "Request not found"}
	ErrInvalidSession        = &Error{KindUnauthenticated, "invalid_session", "Invalid or expired session"}
	ErrNotOwner              = &Error{KindForbidden, "not_owner", "Unauthorized: student does not belong to your institution"}
	ErrInstitutionSuspended  = &Error{KindForbidden, "institution_suspended", "Institution is suspended or its fee is unpaid"}
)

func alreadyOnPlan(plan model.PlanTier) error {
	name := string(plan)
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	return &Error{KindValidation, ErrAlreadyOnPlan.Code, fmt.Sprintf("You already have a %s plan", name)}
}

// KindOf returns the classification of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// Message returns the user-facing text for err. Internal errors are not exposed.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return "Internal server error"
}
