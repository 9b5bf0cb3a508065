package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"studybuddy/internal/api/v1/dto"
	"studybuddy/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponseDTO{Success: false, Error: msg})
}

func statusFor(err error) int {
	switch service.KindOf(err) {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a service error to its status and user-facing message.
// Internal errors are logged and answered generically.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Msg("Request failed")
	}
	writeFailure(w, status, service.Message(err))
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the 400 response itself and reports whether the caller may go on.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON payload")
		return false
	}
	if err := v.Struct(dst); err != nil {
		writeFailure(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return false
	}
	return true
}
