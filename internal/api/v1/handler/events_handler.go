package handler

import (
	"net/http"

	"studybuddy/internal/api/v1/dto"
	"studybuddy/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// EventsHandler receives subscription events Pub/Sub could not deliver.
type EventsHandler struct {
	deadLetters service.DeadLetterService
	validate    *validator.Validate
	logger      zerolog.Logger
}

func NewEventsHandler(deadLetters service.DeadLetterService, validate *validator.Validate, logger zerolog.Logger) *EventsHandler {
	return &EventsHandler{
		deadLetters: deadLetters,
		validate:    validate,
		logger:      logger.With().Str("handler", "EventsHandler").Logger(),
	}
}

// RegisterRoutes mounts the dead-letter push endpoint behind pushAuth.
func (h *EventsHandler) RegisterRoutes(r chi.Router, pushAuth func(http.Handler) http.Handler) {
	r.With(pushAuth).Post("/internal/events/dead-letter", h.recordDeadLetter)
}

// recordDeadLetter answers 204 even when saving fails, so Pub/Sub does not
// redeliver a message that is already dead-lettered. Failures are logged.
func (h *EventsHandler) recordDeadLetter(w http.ResponseWriter, r *http.Request) {
	var req dto.PubSubPushRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	if err := h.deadLetters.Record(r.Context(), &req); err != nil {
		h.logger.Error().Err(err).Str("message_id", req.Message.MessageID).Msg("Dropping dead-lettered event after save failure")
	}
	w.WriteHeader(http.StatusNoContent)
}
