package service

import (
	"context"
	"time"

	"studybuddy/internal/model"
	"studybuddy/internal/repository"

	"github.com/stretchr/testify/mock"
)

var fixedNow = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type mockSubscriptionRepo struct{ mock.Mock }

func (m *mockSubscriptionRepo) GetSubscription(ctx context.Context, studentID string) (*model.Subscription, error) {
	args := m.Called(ctx, studentID)
	sub, _ := args.Get(0).(*model.Subscription)
	return sub, args.Error(1)
}

func (m *mockSubscriptionRepo) ListByStudents(ctx context.Context, ids []string) (map[string]*model.Subscription, error) {
	args := m.Called(ctx, ids)
	out, _ := args.Get(0).(map[string]*model.Subscription)
	return out, args.Error(1)
}

func (m *mockSubscriptionRepo) DebitTTS(ctx context.Context, studentID string, chars int, now time.Time) (*model.Subscription, bool, error) {
	args := m.Called(ctx, studentID, chars, now)
	sub, _ := args.Get(0).(*model.Subscription)
	return sub, args.Bool(1), args.Error(2)
}

func (m *mockSubscriptionRepo) Downgrade(ctx context.Context, studentID string, plan model.PlanTier) error {
	return m.Called(ctx, studentID, plan).Error(0)
}

func (m *mockSubscriptionRepo) ListExpired(ctx context.Context, now time.Time) ([]repository.ExpiredSubscription, error) {
	args := m.Called(ctx, now)
	out, _ := args.Get(0).([]repository.ExpiredSubscription)
	return out, args.Error(1)
}

func (m *mockSubscriptionRepo) DowngradeIfExpired(ctx context.Context, studentID string, plan model.PlanTier, now time.Time) (bool, error) {
	args := m.Called(ctx, studentID, plan, now)
	return args.Bool(0), args.Error(1)
}

type mockStudentRepo struct{ mock.Mock }

func (m *mockStudentRepo) GetStudent(ctx context.Context, id string) (*model.Student, error) {
	args := m.Called(ctx, id)
	st, _ := args.Get(0).(*model.Student)
	return st, args.Error(1)
}

func (m *mockStudentRepo) GetInstitution(ctx context.Context, kind model.InstitutionKind, id string) (*model.Institution, error) {
	args := m.Called(ctx, kind, id)
	inst, _ := args.Get(0).(*model.Institution)
	return inst, args.Error(1)
}

func (m *mockStudentRepo) ListStudents(ctx context.Context, inst *model.Institution) ([]model.Student, error) {
	args := m.Called(ctx, inst)
	out, _ := args.Get(0).([]model.Student)
	return out, args.Error(1)
}

func (m *mockStudentRepo) ListInstitutions(ctx context.Context) ([]model.Institution, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]model.Institution)
	return out, args.Error(1)
}

type mockUsageRepo struct{ mock.Mock }

func (m *mockUsageRepo) GetDailyUsage(ctx context.Context, studentID, usageDate string) (*model.DailyUsage, error) {
	args := m.Called(ctx, studentID, usageDate)
	u, _ := args.Get(0).(*model.DailyUsage)
	return u, args.Error(1)
}

func (m *mockUsageRepo) IncrementWithCeiling(ctx context.Context, studentID, usageDate string, t model.UsageType, limit int) (int, bool, error) {
	args := m.Called(ctx, studentID, usageDate, t, limit)
	return args.Int(0), args.Bool(1), args.Error(2)
}

type mockRequestRepo struct{ mock.Mock }

func (m *mockRequestRepo) Create(ctx context.Context, req *model.UpgradeRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockRequestRepo) GetByID(ctx context.Context, id string) (*model.UpgradeRequest, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*model.UpgradeRequest)
	return r, args.Error(1)
}

func (m *mockRequestRepo) GetPending(ctx context.Context, studentID string) (*model.UpgradeRequest, error) {
	args := m.Called(ctx, studentID)
	r, _ := args.Get(0).(*model.UpgradeRequest)
	return r, args.Error(1)
}

func (m *mockRequestRepo) GetLatest(ctx context.Context, studentID string) (*model.UpgradeRequest, error) {
	args := m.Called(ctx, studentID)
	r, _ := args.Get(0).(*model.UpgradeRequest)
	return r, args.Error(1)
}

func (m *mockRequestRepo) ListByStudents(ctx context.Context, ids []string) ([]model.UpgradeRequest, error) {
	args := m.Called(ctx, ids)
	out, _ := args.Get(0).([]model.UpgradeRequest)
	return out, args.Error(1)
}

func (m *mockRequestRepo) Approve(ctx context.Context, id, institutionID string, now time.Time, act repository.Activation) error {
	return m.Called(ctx, id, institutionID, now, act).Error(0)
}

func (m *mockRequestRepo) Reject(ctx context.Context, id, institutionID, reason string, now time.Time) error {
	return m.Called(ctx, id, institutionID, reason, now).Error(0)
}

func (m *mockRequestRepo) Block(ctx context.Context, studentID, institutionID string, base model.PlanTier, now time.Time) (int64, error) {
	args := m.Called(ctx, studentID, institutionID, base, now)
	return args.Get(0).(int64), args.Error(1)
}

type mockSessionRepo struct{ mock.Mock }

func (m *mockSessionRepo) GetSession(ctx context.Context, token string) (*model.Session, error) {
	args := m.Called(ctx, token)
	s, _ := args.Get(0).(*model.Session)
	return s, args.Error(1)
}

type mockStatsRepo struct{ mock.Mock }

func (m *mockStatsRepo) CountPlans(ctx context.Context) ([]repository.PlanCount, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]repository.PlanCount)
	return out, args.Error(1)
}

type mockEvents struct{ mock.Mock }

func (m *mockEvents) PublishEvent(ctx context.Context, ev model.SubscriptionEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func eventOfType(t model.EventType) any {
	return mock.MatchedBy(func(ev model.SubscriptionEvent) bool { return ev.Type == t })
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func schoolStudent(id, schoolID string) *model.Student {
	return &model.Student{ID: id, StudentType: model.SchoolStudent, SchoolID: strPtr(schoolID), IsApproved: true}
}

func coachingStudent(id, centerID string) *model.Student {
	return &model.Student{ID: id, StudentType: model.CoachingStudent, CoachingCenterID: strPtr(centerID), IsApproved: true}
}

func proSubscription(studentID string, used int, end time.Time) *model.Subscription {
	return &model.Subscription{
		StudentID: studentID,
		Plan:      model.PlanPro,
		StartDate: end.Add(-30 * 24 * time.Hour),
		EndDate:   timePtr(end),
		TTSUsed:   used,
		TTSLimit:  model.ProTTSLimit,
		IsActive:  true,
		Persisted: true,
	}
}

type mockDeadLetterRepo struct{ mock.Mock }

func (m *mockDeadLetterRepo) Create(ctx context.Context, ev *model.DeadLetterEvent) (bool, error) {
	args := m.Called(ctx, ev)
	return args.Bool(0), args.Error(1)
}
