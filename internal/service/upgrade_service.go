package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"studybuddy/internal/metrics"
	"studybuddy/internal/model"
	"studybuddy/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PendingRequest pairs a pending request with the requesting student.
type PendingRequest struct {
	Request model.UpgradeRequest
	Student model.Student
}

// InstitutionRoster is an institution's students with their entitlement state.
type InstitutionRoster struct {
	Students        []model.StudentAccount
	PendingRequests []PendingRequest
}

// UpgradeService runs the upgrade request workflow. Every institution method
// expects an institution already authorized by SessionService and re-checks
// that it owns the target student.
type UpgradeService interface {
	// RequestUpgrade files a pending request. An empty plan means pro.
	RequestUpgrade(ctx context.Context, studentID, requestedPlan string) (*model.UpgradeRequest, error)
	ListRequests(ctx context.Context, inst *model.Institution) (*InstitutionRoster, error)
	// ApproveRequest returns a confirmation message on success.
	ApproveRequest(ctx context.Context, inst *model.Institution, requestID string) (string, error)
	RejectRequest(ctx context.Context, inst *model.Institution, requestID, reason string) error
	BlockStudent(ctx context.Context, inst *model.Institution, studentID string) error
	CancelPro(ctx context.Context, inst *model.Institution, studentID string) error
}

type upgradeService struct {
	requests repository.UpgradeRequestRepository
	students repository.StudentRepository
	subs     repository.SubscriptionRepository
	subSvc   SubscriptionService
	events   EventPublisher
	metrics  *metrics.EntitlementMetrics
	now      Clock
	logger   zerolog.Logger
}

// NewUpgradeService creates a new UpgradeService with a scoped logger.
func NewUpgradeService(
	requests repository.UpgradeRequestRepository,
	students repository.StudentRepository,
	subs repository.SubscriptionRepository,
	subSvc SubscriptionService,
	events EventPublisher,
	m *metrics.EntitlementMetrics,
	now Clock,
	logger zerolog.Logger,
) UpgradeService {
	return &upgradeService{
		requests: requests,
		students: students,
		subs:     subs,
		subSvc:   subSvc,
		events:   events,
		metrics:  m,
		now:      now,
		logger:   logger.With().Str("service", "UpgradeService").Logger(),
	}
}

func (s *upgradeService) observe(action string, err error) {
	if s.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failed"
	}
	s.metrics.UpgradeActionTotal.WithLabelValues(action, result).Inc()
}

func (s *upgradeService) RequestUpgrade(ctx context.Context, studentID, requestedPlan string) (req *model.UpgradeRequest, err error) {
	defer func() { s.observe("requested", err) }()

	if strings.TrimSpace(requestedPlan) == "" {
		requestedPlan = string(model.PlanPro)
	}
	plan, perr := model.ParsePlanTier(requestedPlan)
	if perr != nil {
		return nil, ErrInvalidPlan
	}

	student, err := s.students.GetStudent(ctx, studentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrStudentNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Str("student_id", studentID).Msg("Failed to fetch student")
		return nil, err
	}

	_, err = s.requests.GetPending(ctx, studentID)
	switch {
	case err == nil:
		return nil, ErrPendingRequestExists
	case !errors.Is(err, repository.ErrNotFound):
		s.logger.Error().Err(err).Str("student_id", studentID).Msg("Failed to check pending request")
		return nil, err
	}

	sub, st, err := s.subSvc.GetSubscription(ctx, studentID)
	if err != nil {
		return nil, err
	}
	current := sub.EffectivePlan(st, s.now())
	if current == model.PlanPro || current == plan {
		return nil, alreadyOnPlan(current)
	}
	if !st.CanRequest(plan) {
		if st == model.SchoolStudent {
			return nil, ErrPlanNotAllowed
		}
		return nil, ErrInvalidPlan
	}

	req = &model.UpgradeRequest{
		ID:            uuid.NewString(),
		StudentID:     student.ID,
		RequestedPlan: plan,
		RequestedAt:   s.now(),
	}
	if err := s.requests.Create(ctx, req); err != nil {
		if errors.Is(err, repository.ErrDuplicatePending) {
			return nil, ErrPendingRequestExists
		}
		s.logger.Error().Err(err).Str("student_id", studentID).Msg("Failed to create upgrade request")
		return nil, err
	}

	s.logger.Info().Str("student_id", studentID).Str("request_id", req.ID).Str("plan", string(plan)).Msg("Upgrade requested")
	publishEvent(ctx, s.events, s.logger, model.EventUpgradeRequested, studentID, plan, "", req.RequestedAt)
	return req, nil
}

func (s *upgradeService) ListRequests(ctx context.Context, inst *model.Institution) (*InstitutionRoster, error) {
	students, err := s.students.ListStudents(ctx, inst)
	if err != nil {
		s.logger.Error().Err(err).Str("institution_id", inst.ID).Msg("Failed to list students")
		return nil, err
	}
	ids := make([]string, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}

	subs, err := s.subs.ListByStudents(ctx, ids)
	if err != nil {
		s.logger.Error().Err(err).Str("institution_id", inst.ID).Msg("Failed to list subscriptions")
		return nil, err
	}
	reqs, err := s.requests.ListByStudents(ctx, ids)
	if err != nil {
		s.logger.Error().Err(err).Str("institution_id", inst.ID).Msg("Failed to list upgrade requests")
		return nil, err
	}
	byStudent := make(map[string][]model.UpgradeRequest, len(ids))
	for _, r := range reqs {
		byStudent[r.StudentID] = append(byStudent[r.StudentID], r)
	}

	roster := &InstitutionRoster{
		Students:        make([]model.StudentAccount, 0, len(students)),
		PendingRequests: []PendingRequest{},
	}
	for _, st := range students {
		acct := model.StudentAccount{
			Student:         st,
			Subscription:    subs[st.ID],
			UpgradeRequests: byStudent[st.ID],
		}
		if acct.UpgradeRequests == nil {
			acct.UpgradeRequests = []model.UpgradeRequest{}
		}
		if p := acct.PendingRequest(); p != nil {
			roster.PendingRequests = append(roster.PendingRequests, PendingRequest{Request: *p, Student: st})
		}
		roster.Students = append(roster.Students, acct)
	}
	return roster, nil
}

// ownedStudent loads the student and checks inst owns it.
func (s *upgradeService) ownedStudent(ctx context.Context, inst *model.Institution, studentID string) (*model.Student, error) {
	st, err := s.students.GetStudent(ctx, studentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotOwner
	}
	if err != nil {
		s.logger.Error().Err(err).Str("student_id", studentID).Msg("Failed to fetch student")
		return nil, err
	}
	if !st.BelongsTo(inst) {
		s.logger.Warn().Str("student_id", studentID).Str("institution_id", inst.ID).Msg("Institution does not own student")
		return nil, ErrNotOwner
	}
	return st, nil
}

// ownedRequest loads a request and checks ownership, then pending status.
func (s *upgradeService) ownedRequest(ctx context.Context, inst *model.Institution, requestID string) (*model.UpgradeRequest, error) {
	if _, err := uuid.Parse(requestID); err != nil {
		return nil, ErrRequestNotFound
	}
	req, err := s.requests.GetByID(ctx, requestID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", requestID).Msg("Failed to fetch upgrade request")
		return nil, err
	}
	if _, err := s.ownedStudent(ctx, inst, req.StudentID); err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, ErrRequestProcessed
	}
	return req, nil
}

func terminalErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotPending):
		return ErrRequestProcessed
	case errors.Is(err, repository.ErrNotFound):
		return ErrRequestNotFound
	}
	return err
}

func (s *upgradeService) ApproveRequest(ctx context.Context, inst *model.Institution, requestID string) (msg string, err error) {
	defer func() { s.observe("approved", err) }()

	req, err := s.ownedRequest(ctx, inst, requestID)
	if err != nil {
		return "", err
	}

	now := s.now()
	act := repository.Activation{
		Plan:      req.RequestedPlan,
		StartDate: now,
		EndDate:   now.Add(model.ProActivationDays * 24 * time.Hour),
		ResetTTS:  req.RequestedPlan == model.PlanPro,
		TTSLimit:  req.RequestedPlan.Entitlements().PremiumVoiceChars,
	}
	if err := s.requests.Approve(ctx, req.ID, inst.ID, now, act); err != nil {
		if mapped := terminalErr(err); mapped != err {
			return "", mapped
		}
		s.logger.Error().Err(err).Str("request_id", req.ID).Msg("Failed to approve upgrade request")
		return "", err
	}

	s.logger.Info().Str("request_id", req.ID).Str("student_id", req.StudentID).Str("institution_id", inst.ID).Str("plan", string(req.RequestedPlan)).Msg("Upgrade approved")
	publishEvent(ctx, s.events, s.logger, model.EventUpgradeApproved, req.StudentID, req.RequestedPlan, inst.ID, now)
	return fmt.Sprintf("%s plan activated for %d days", req.RequestedPlan, model.ProActivationDays), nil
}

func (s *upgradeService) RejectRequest(ctx context.Context, inst *model.Institution, requestID, reason string) (err error) {
	defer func() { s.observe("rejected", err) }()

	req, err := s.ownedRequest(ctx, inst, requestID)
	if err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = model.DefaultRejectionReason
	}

	now := s.now()
	if err := s.requests.Reject(ctx, req.ID, inst.ID, reason, now); err != nil {
		if mapped := terminalErr(err); mapped != err {
			return mapped
		}
		s.logger.Error().Err(err).Str("request_id", req.ID).Msg("Failed to reject upgrade request")
		return err
	}

	s.logger.Info().Str("request_id", req.ID).Str("institution_id", inst.ID).Msg("Upgrade rejected")
	publishEvent(ctx, s.events, s.logger, model.EventUpgradeRejected, req.StudentID, req.RequestedPlan, inst.ID, now)
	return nil
}

func (s *upgradeService) BlockStudent(ctx context.Context, inst *model.Institution, studentID string) (err error) {
	defer func() { s.observe("blocked", err) }()

	st, err := s.ownedStudent(ctx, inst, studentID)
	if err != nil {
		return err
	}
	base := st.StudentType.BasePlan()
	now := s.now()
	n, err := s.requests.Block(ctx, st.ID, inst.ID, base, now)
	if err != nil {
		s.logger.Error().Err(err).Str("student_id", studentID).Msg("Failed to block student")
		return err
	}

	s.logger.Info().Str("student_id", studentID).Str("institution_id", inst.ID).Int64("blocked_requests", n).Msg("Student blocked")
	publishEvent(ctx, s.events, s.logger, model.EventStudentBlocked, st.ID, base, inst.ID, now)
	return nil
}

func (s *upgradeService) CancelPro(ctx context.Context, inst *model.Institution, studentID string) (err error) {
	defer func() { s.observe("cancelled", err) }()

	if _, err := s.ownedStudent(ctx, inst, studentID); err != nil {
		return err
	}
	plan, err := s.subSvc.CancelOrDowngrade(ctx, studentID)
	if err != nil {
		return err
	}
	publishEvent(ctx, s.events, s.logger, model.EventPlanCancelled, studentID, plan, inst.ID, s.now())
	return nil
}
