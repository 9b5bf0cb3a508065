package handler

import (
	"net/http"

	"studybuddy/internal/api/v1/dto"
	"studybuddy/internal/middleware"
	"studybuddy/internal/model"
	"studybuddy/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// StudentHandler serves the endpoints a signed-in student calls.
type StudentHandler struct {
	subSvc     service.SubscriptionService
	usageSvc   service.UsageService
	upgradeSvc service.UpgradeService
	validate   *validator.Validate
	logger     zerolog.Logger
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(
	subSvc service.SubscriptionService,
	usageSvc service.UsageService,
	upgradeSvc service.UpgradeService,
	validate *validator.Validate,
	logger zerolog.Logger,
) *StudentHandler {
	return &StudentHandler{
		subSvc:     subSvc,
		usageSvc:   usageSvc,
		upgradeSvc: upgradeSvc,
		validate:   validate,
		logger:     logger.With().Str("handler", "StudentHandler").Logger(),
	}
}

// RegisterRoutes mounts student routes behind authMw.
func (h *StudentHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMw)
		r.Get("/subscription", h.getSubscription)
		r.Get("/usage", h.getDailyUsage)
		r.Post("/usage/check", h.checkUsage)
		r.Post("/upgrade-requests", h.requestUpgrade)
		r.Post("/tts/increment", h.incrementTTS)
	})
}

func (h *StudentHandler) studentID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Unauthorized: User ID not found in context")
	}
	return id, ok
}

// getSubscription returns the entitlement dashboard for the caller.
func (h *StudentHandler) getSubscription(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.studentID(w, r)
	if !ok {
		return
	}
	ov, err := h.subSvc.GetOverview(r.Context(), studentID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	resp := dto.SubscriptionResponseDTO{
		Subscription:    dto.ToSubscriptionDTO(ov.Subscription),
		PendingRequest:  dto.ToUpgradeRequestDTO(ov.LatestRequest),
		StudentType:     ov.StudentType,
		PlanLimits:      ov.PlanLimits,
		StatusLabel:     ov.StatusLabel,
		DaysRemaining:   ov.DaysRemaining,
		TTSUsagePercent: ov.TTSUsagePercent,
	}
	if ov.DailyUsage != nil {
		resp.DailyUsage = dto.DailyUsageDTO{
			UsageDate:  ov.DailyUsage.UsageDate,
			ChatsUsed:  ov.DailyUsage.ChatsUsed,
			ImagesUsed: ov.DailyUsage.ImagesUsed,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *StudentHandler) getDailyUsage(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.studentID(w, r)
	if !ok {
		return
	}
	sum, err := h.usageSvc.GetDailyUsage(r.Context(), studentID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// checkUsage consumes one chat or image unit. A denial is a 200 with
// allowed=false.
func (h *StudentHandler) checkUsage(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.studentID(w, r)
	if !ok {
		return
	}
	var req dto.UsageCheckRequestDTO
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	res, err := h.usageSvc.CheckAndIncrement(r.Context(), studentID, model.UsageType(req.UsageType))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *StudentHandler) requestUpgrade(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.studentID(w, r)
	if !ok {
		return
	}
	var req dto.UpgradeRequestCreateDTO
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	if _, err := h.upgradeSvc.RequestUpgrade(r.Context(), studentID, req.RequestedPlan); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.ActionResponseDTO{Success: true})
}

func (h *StudentHandler) incrementTTS(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.studentID(w, r)
	if !ok {
		return
	}
	var req dto.TTSIncrementRequestDTO
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	d, err := h.subSvc.IncrementTTS(r.Context(), studentID, req.CharacterCount)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
