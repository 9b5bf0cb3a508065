package handler

import (
	"net/http"

	"studybuddy/internal/api/v1/dto"
	"studybuddy/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// AdminHandler serves platform admin reports and the scheduler hook.
type AdminHandler struct {
	sessions  service.SessionService
	statsSvc  service.StatsService
	expirySvc service.ExpiryService
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(sessions service.SessionService, statsSvc service.StatsService, expirySvc service.ExpiryService, validate *validator.Validate, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		sessions:  sessions,
		statsSvc:  statsSvc,
		expirySvc: expirySvc,
		validate:  validate,
		logger:    logger.With().Str("handler", "AdminHandler").Logger(),
	}
}

// RegisterRoutes mounts admin routes; the sweep trigger sits behind cronMw.
func (h *AdminHandler) RegisterRoutes(r chi.Router, cronMw func(http.Handler) http.Handler) {
	r.Post("/admin/stats", h.institutionStats)
	r.With(cronMw).Post("/internal/subscriptions/sweep", h.sweepExpired)
}

func (h *AdminHandler) institutionStats(w http.ResponseWriter, r *http.Request) {
	var req dto.AdminAuthDTO
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	if _, err := h.sessions.AuthorizeAdmin(r.Context(), req.SessionToken); err != nil {
		writeError(w, h.logger, err)
		return
	}
	stats, err := h.statsSvc.InstitutionStats(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) sweepExpired(w http.ResponseWriter, r *http.Request) {
	n, err := h.expirySvc.SweepExpired(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SweepResponseDTO{ExpiredCount: n})
}
