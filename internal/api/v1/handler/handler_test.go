package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"studybuddy/internal/api/v1/dto"
	"studybuddy/internal/model"
	"studybuddy/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type handlerSet struct {
	subs     *mockSubscriptionService
	usage    *mockUsageService
	upgrade  *mockUpgradeService
	sessions *mockSessionService
	stats    *mockStatsService
	expiry   *mockExpiryService
	dead     *mockDeadLetterService
	router   chi.Router
}

func newHandlerSet() *handlerSet {
	h := &handlerSet{
		subs:     new(mockSubscriptionService),
		usage:    new(mockUsageService),
		upgrade:  new(mockUpgradeService),
		sessions: new(mockSessionService),
		stats:    new(mockStatsService),
		expiry:   new(mockExpiryService),
		dead:     new(mockDeadLetterService),
		router:   chi.NewRouter(),
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	NewStudentHandler(h.subs, h.usage, h.upgrade, v, zerolog.Nop()).RegisterRoutes(h.router, asStudent("stu-1"))
	NewInstitutionHandler(h.sessions, h.upgrade, v, zerolog.Nop()).RegisterRoutes(h.router)
	NewAdminHandler(h.sessions, h.stats, h.expiry, v, zerolog.Nop()).RegisterRoutes(h.router, passThrough)
	NewEventsHandler(h.dead, v, zerolog.Nop()).RegisterRoutes(h.router, passThrough)
	return h
}

func (h *handlerSet) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCheckUsageDenied(t *testing.T) {
	h := newHandlerSet()
	h.usage.On("CheckAndIncrement", mock.Anything, "stu-1", model.UsageChat).Return(&service.UsageResult{
		Allowed: false, CurrentCount: 40, Limit: 40, Plan: model.PlanBasic,
		Message: service.LimitReachedMessage(model.UsageChat),
	}, nil)

	rec := h.do(http.MethodPost, "/usage/check", `{"usageType":"chat"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["allowed"])
	assert.EqualValues(t, 40, body["currentCount"])
	assert.EqualValues(t, 40, body["limit"])
	assert.Equal(t, "basic", body["plan"])
}

func TestCheckUsageRejectsUnknownType(t *testing.T) {
	h := newHandlerSet()
	rec := h.do(http.MethodPost, "/usage/check", `{"usageType":"video"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])
	h.usage.AssertNotCalled(t, "CheckAndIncrement", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetSubscription(t *testing.T) {
	h := newHandlerSet()
	end := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
	days := 5
	h.subs.On("GetOverview", mock.Anything, "stu-1").Return(&service.Overview{
		Subscription:  &model.Subscription{Plan: model.PlanPro, EndDate: &end, TTSUsed: 100, TTSLimit: model.ProTTSLimit, IsActive: true},
		LatestRequest: &model.UpgradeRequest{ID: "r1", Status: model.RequestApproved, RequestedPlan: model.PlanPro},
		StudentType:   model.SchoolStudent,
		DailyUsage:    &model.DailyUsage{UsageDate: "2025-06-10", ChatsUsed: 4},
		Plan:          model.PlanPro,
		PlanLimits:    model.PlanPro.Entitlements(),
		StatusLabel:   "Active Pro",
		DaysRemaining: &days,
	}, nil)

	rec := h.do(http.MethodGet, "/subscription", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	sub := body["subscription"].(map[string]any)
	assert.Equal(t, "pro", sub["plan"])
	assert.EqualValues(t, model.ProTTSLimit-100, sub["ttsRemaining"])
	assert.Equal(t, "school_student", body["studentType"])
	assert.Equal(t, "Active Pro", body["statusLabel"])
	assert.EqualValues(t, 70, body["planLimits"].(map[string]any)["chatsPerDay"])
	assert.EqualValues(t, 4, body["dailyUsage"].(map[string]any)["chatsUsed"])
	assert.Equal(t, "r1", body["pendingRequest"].(map[string]any)["id"])
}

func TestRequestUpgradeMapsValidationErrors(t *testing.T) {
	h := newHandlerSet()
	h.upgrade.On("RequestUpgrade", mock.Anything, "stu-1", "pro").Return(nil, service.ErrPendingRequestExists)

	rec := h.do(http.MethodPost, "/upgrade-requests", `{"requestedPlan":"pro"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "You already have a pending upgrade request", body["error"])
}

func TestRequestUpgradeEmptyBodyMeansPro(t *testing.T) {
	h := newHandlerSet()
	h.upgrade.On("RequestUpgrade", mock.Anything, "stu-1", "").Return(&model.UpgradeRequest{ID: "r1"}, nil)

	rec := h.do(http.MethodPost, "/upgrade-requests", "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])
}

func TestIncrementTTS(t *testing.T) {
	h := newHandlerSet()
	h.subs.On("IncrementTTS", mock.Anything, "stu-1", 10).Return(&service.TTSDecision{
		UsePremium: false, Reason: service.ReasonLimitReached, TTSUsed: 89995, TTSLimit: 90000, TTSRemaining: 5,
	}, nil)

	rec := h.do(http.MethodPost, "/tts/increment", `{"characterCount":10}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["usePremiumTTS"])
	assert.Equal(t, "limit reached", body["reason"])

	rec = h.do(http.MethodPost, "/tts/increment", `{"characterCount":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInternalErrorsAreHidden(t *testing.T) {
	h := newHandlerSet()
	h.usage.On("GetDailyUsage", mock.Anything, "stu-1").Return(nil, errors.New("dial tcp: connection refused"))

	rec := h.do(http.MethodGet, "/usage", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode(t, rec)["error"])
}

func TestApproveRequest(t *testing.T) {
	h := newHandlerSet()
	inst := &model.Institution{ID: "cc-1", Kind: model.InstitutionCoaching, FeePaid: true}
	h.sessions.On("AuthorizeInstitution", mock.Anything, "tok", model.InstitutionCoaching, "cc-1").Return(inst, nil)
	h.upgrade.On("ApproveRequest", mock.Anything, inst, "req-1").Return("pro plan activated for 30 days", nil)

	rec := h.do(http.MethodPost, "/institutions/requests/approve",
		`{"sessionToken":"tok","institutionId":"cc-1","institutionType":"coaching","requestId":"req-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "pro plan activated for 30 days", body["message"])
}

func TestInstitutionAuthFailures(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid session", service.ErrInvalidSession, http.StatusUnauthorized},
		{"suspended", service.ErrInstitutionSuspended, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHandlerSet()
			h.sessions.On("AuthorizeInstitution", mock.Anything, "tok", model.InstitutionSchool, "sch-1").Return(nil, tc.err)

			rec := h.do(http.MethodPost, "/institutions/students/block", `{"sessionToken":"tok","institutionId":"sch-1","studentId":"s1"}`)
			assert.Equal(t, tc.status, rec.Code)
			h.upgrade.AssertNotCalled(t, "BlockStudent", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRejectAndOwnership(t *testing.T) {
	h := newHandlerSet()
	inst := &model.Institution{ID: "sch-1", Kind: model.InstitutionSchool}
	h.sessions.On("AuthorizeInstitution", mock.Anything, "tok", model.InstitutionSchool, "sch-1").Return(inst, nil)
	h.upgrade.On("RejectRequest", mock.Anything, inst, "req-9", "").Return(service.ErrNotOwner)

	rec := h.do(http.MethodPost, "/institutions/requests/reject", `{"sessionToken":"tok","institutionId":"sch-1","requestId":"req-9"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListRequests(t *testing.T) {
	h := newHandlerSet()
	inst := &model.Institution{ID: "sch-1", Kind: model.InstitutionSchool}
	st := model.Student{ID: "s1", FullName: "Asha", StudentType: model.SchoolStudent}
	pending := model.UpgradeRequest{ID: "r1", StudentID: "s1", RequestedPlan: model.PlanPro, Status: model.RequestPending}
	h.sessions.On("AuthorizeInstitution", mock.Anything, "tok", model.InstitutionSchool, "sch-1").Return(inst, nil)
	h.upgrade.On("ListRequests", mock.Anything, inst).Return(&service.InstitutionRoster{
		Students:        []model.StudentAccount{{Student: st, UpgradeRequests: []model.UpgradeRequest{pending}}},
		PendingRequests: []service.PendingRequest{{Request: pending, Student: st}},
	}, nil)

	rec := h.do(http.MethodPost, "/institutions/requests", `{"sessionToken":"tok","institutionId":"sch-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	students := body["students"].([]any)
	require.Len(t, students, 1)
	assert.Nil(t, students[0].(map[string]any)["subscription"])
	pend := body["pendingRequests"].([]any)
	require.Len(t, pend, 1)
	assert.Equal(t, "Asha", pend[0].(map[string]any)["studentName"])
}

func TestSweepExpired(t *testing.T) {
	h := newHandlerSet()
	h.expiry.On("SweepExpired", mock.Anything).Return(3, nil)

	rec := h.do(http.MethodPost, "/internal/subscriptions/sweep", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decode(t, rec)["expiredCount"])
}

func TestAdminStatsRequiresAdmin(t *testing.T) {
	h := newHandlerSet()
	h.sessions.On("AuthorizeAdmin", mock.Anything, "school-token").Return("", service.ErrInvalidSession)
	h.sessions.On("AuthorizeAdmin", mock.Anything, "admin-token").Return("root", nil)
	h.stats.On("InstitutionStats", mock.Anything).Return([]model.InstitutionStats{{ID: "sch-1", Name: "North", TotalStudents: 3}}, nil)

	rec := h.do(http.MethodPost, "/admin/stats", `{"sessionToken":"school-token"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/admin/stats", `{"sessionToken":"admin-token"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.EqualValues(t, 3, out[0]["totalStudents"])
}

func TestRecordDeadLetter(t *testing.T) {
	h := newHandlerSet()
	h.dead.On("Record", mock.Anything, mock.MatchedBy(func(req *dto.PubSubPushRequest) bool {
		return req.Message.MessageID == "m-1" && req.DeliveryAttempt == 5
	})).Return(nil).Once()

	rec := h.do(http.MethodPost, "/internal/events/dead-letter",
		`{"message":{"data":"e30=","messageId":"m-1"},"subscription":"projects/p/subscriptions/subscription-events-sub","deliveryAttempt":5}`)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	h.dead.AssertExpectations(t)
}

func TestRecordDeadLetterAcksOnSaveFailure(t *testing.T) {
	h := newHandlerSet()
	h.dead.On("Record", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	rec := h.do(http.MethodPost, "/internal/events/dead-letter",
		`{"message":{"data":"e30=","messageId":"m-2"},"subscription":"s"}`)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecordDeadLetterRejectsMissingMessageID(t *testing.T) {
	h := newHandlerSet()

	rec := h.do(http.MethodPost, "/internal/events/dead-letter", `{"message":{"data":"e30="},"subscription":"s"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	h.dead.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}
