package handler

import (
	"context"
	"net/http"

	"studybuddy/internal/api/v1/dto"
	"studybuddy/internal/middleware"
	"studybuddy/internal/model"
	"studybuddy/internal/service"

	"github.com/stretchr/testify/mock"
)

type mockSubscriptionService struct{ mock.Mock }

func (m *mockSubscriptionService) GetSubscription(ctx context.Context, id string) (*model.Subscription, model.StudentType, error) {
	args := m.Called(ctx, id)
	sub, _ := args.Get(0).(*model.Subscription)
	return sub, args.Get(1).(model.StudentType), args.Error(2)
}

func (m *mockSubscriptionService) GetOverview(ctx context.Context, id string) (*service.Overview, error) {
	args := m.Called(ctx, id)
	ov, _ := args.Get(0).(*service.Overview)
	return ov, args.Error(1)
}

func (m *mockSubscriptionService) IncrementTTS(ctx context.Context, id string, n int) (*service.TTSDecision, error) {
	args := m.Called(ctx, id, n)
	d, _ := args.Get(0).(*service.TTSDecision)
	return d, args.Error(1)
}

func (m *mockSubscriptionService) CancelOrDowngrade(ctx context.Context, id string) (model.PlanTier, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.PlanTier), args.Error(1)
}

type mockUsageService struct{ mock.Mock }

func (m *mockUsageService) CheckAndIncrement(ctx context.Context, id string, t model.UsageType) (*service.UsageResult, error) {
	args := m.Called(ctx, id, t)
	r, _ := args.Get(0).(*service.UsageResult)
	return r, args.Error(1)
}

func (m *mockUsageService) GetDailyUsage(ctx context.Context, id string) (*service.DailyUsageSummary, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*service.DailyUsageSummary)
	return r, args.Error(1)
}

type mockUpgradeService struct{ mock.Mock }

func (m *mockUpgradeService) RequestUpgrade(ctx context.Context, id, plan string) (*model.UpgradeRequest, error) {
	args := m.Called(ctx, id, plan)
	r, _ := args.Get(0).(*model.UpgradeRequest)
	return r, args.Error(1)
}

func (m *mockUpgradeService) ListRequests(ctx context.Context, inst *model.Institution) (*service.InstitutionRoster, error) {
	args := m.Called(ctx, inst)
	r, _ := args.Get(0).(*service.InstitutionRoster)
	return r, args.Error(1)
}

func (m *mockUpgradeService) ApproveRequest(ctx context.Context, inst *model.Institution, id string) (string, error) {
	args := m.Called(ctx, inst, id)
	return args.String(0), args.Error(1)
}

func (m *mockUpgradeService) RejectRequest(ctx context.Context, inst *model.Institution, id, reason string) error {
	return m.Called(ctx, inst, id, reason).Error(0)
}

func (m *mockUpgradeService) BlockStudent(ctx context.Context, inst *model.Institution, id string) error {
	return m.Called(ctx, inst, id).Error(0)
}

func (m *mockUpgradeService) CancelPro(ctx context.Context, inst *model.Institution, id string) error {
	return m.Called(ctx, inst, id).Error(0)
}

type mockSessionService struct{ mock.Mock }

func (m *mockSessionService) AuthorizeInstitution(ctx context.Context, token string, kind model.InstitutionKind, id string) (*model.Institution, error) {
	args := m.Called(ctx, token, kind, id)
	inst, _ := args.Get(0).(*model.Institution)
	return inst, args.Error(1)
}

func (m *mockSessionService) AuthorizeAdmin(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

type mockStatsService struct{ mock.Mock }

func (m *mockStatsService) InstitutionStats(ctx context.Context) ([]model.InstitutionStats, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]model.InstitutionStats)
	return out, args.Error(1)
}

type mockExpiryService struct{ mock.Mock }

func (m *mockExpiryService) SweepExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockDeadLetterService struct{ mock.Mock }

func (m *mockDeadLetterService) Record(ctx context.Context, req *dto.PubSubPushRequest) error {
	return m.Called(ctx, req).Error(0)
}

// asStudent stands in for the JWT middleware.
func asStudent(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func passThrough(next http.Handler) http.Handler { return next }
