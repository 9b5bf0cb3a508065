package handler

import (
	"context"
	"net/http"

	"studybuddy/internal/api/v1/dto"
	"studybuddy/internal/model"
	"studybuddy/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// InstitutionHandler serves school and coaching centre administration.
// Every request carries its own session token in the body.
type InstitutionHandler struct {
	sessions   service.SessionService
	upgradeSvc service.UpgradeService
	validate   *validator.Validate
	logger     zerolog.Logger
}

// NewInstitutionHandler creates a new InstitutionHandler.
func NewInstitutionHandler(sessions service.SessionService, upgradeSvc service.UpgradeService, validate *validator.Validate, logger zerolog.Logger) *InstitutionHandler {
	return &InstitutionHandler{
		sessions:   sessions,
		upgradeSvc: upgradeSvc,
		validate:   validate,
		logger:     logger.With().Str("handler", "InstitutionHandler").Logger(),
	}
}

// RegisterRoutes mounts institution routes.
func (h *InstitutionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/institutions", func(r chi.Router) {
		r.Post("/requests", h.listRequests)
		r.Post("/requests/approve", h.approveRequest)
		r.Post("/requests/reject", h.rejectRequest)
		r.Post("/students/block", h.blockStudent)
		r.Post("/students/cancel-pro", h.cancelPro)
	})
}

func (h *InstitutionHandler) authorize(ctx context.Context, a dto.InstitutionAuthDTO) (*model.Institution, error) {
	kind := model.InstitutionSchool
	if a.InstitutionType != "" {
		kind = model.InstitutionKind(a.InstitutionType)
	}
	return h.sessions.AuthorizeInstitution(ctx, a.SessionToken, kind, a.InstitutionID)
}

func (h *InstitutionHandler) listRequests(w http.ResponseWriter, r *http.Request) {
	var req dto.InstitutionAuthDTO
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	inst, err := h.authorize(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	roster, err := h.upgradeSvc.ListRequests(r.Context(), inst)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := dto.RosterResponseDTO{
		Students:        make([]dto.StudentDTO, 0, len(roster.Students)),
		PendingRequests: make([]dto.PendingRequestDTO, 0, len(roster.PendingRequests)),
	}
	for _, acct := range roster.Students {
		resp.Students = append(resp.Students, dto.ToStudentDTO(acct))
	}
	for _, p := range roster.PendingRequests {
		resp.PendingRequests = append(resp.PendingRequests, dto.PendingRequestDTO{
			UpgradeRequestDTO: *dto.ToUpgradeRequestDTO(&p.Request),
			StudentName:       p.Student.FullName,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *InstitutionHandler) approveRequest(w http.ResponseWriter, r *http.Request) {
	var req dto.RequestDecisionDTO
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	inst, err := h.authorize(r.Context(), req.InstitutionAuthDTO)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	msg, err := h.upgradeSvc.ApproveRequest(r.Context(), inst, req.RequestID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ActionResponseDTO{Success: true, Message: msg})
}

func (h *InstitutionHandler) rejectRequest(w http.ResponseWriter, r *http.Request) {
	var req dto.RequestDecisionDTO
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	inst, err := h.authorize(r.Context(), req.InstitutionAuthDTO)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.upgradeSvc.RejectRequest(r.Context(), inst, req.RequestID, req.Reason); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ActionResponseDTO{Success: true})
}

func (h *InstitutionHandler) blockStudent(w http.ResponseWriter, r *http.Request) {
	var req dto.StudentActionDTO
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	inst, err := h.authorize(r.Context(), req.InstitutionAuthDTO)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.upgradeSvc.BlockStudent(r.Context(), inst, req.StudentID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ActionResponseDTO{Success: true})
}

func (h *InstitutionHandler) cancelPro(w http.ResponseWriter, r *http.Request) {
	var req dto.StudentActionDTO
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	inst, err := h.authorize(r.Context(), req.InstitutionAuthDTO)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.upgradeSvc.CancelPro(r.Context(), inst, req.StudentID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ActionResponseDTO{Success: true})
}
