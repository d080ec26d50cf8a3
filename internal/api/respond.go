// Package api provides authentication endpoints and shared JSON
// response helpers for the HTTP surface.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tutorloop/matchflow-go/internal/match"
)

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes the standard JSON error envelope.
func WriteError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":       code,
		"description": description,
	})
}

// WriteUnauthorized writes a 401 with the given reason code.
func WriteUnauthorized(w http.ResponseWriter, code, description string) {
	WriteError(w, http.StatusUnauthorized, code, description)
}

// WriteTooManyRequests writes a 429.
func WriteTooManyRequests(w http.ResponseWriter, description string) {
	WriteError(w, http.StatusTooManyRequests, "rate_limited", description)
}

// Reason codes for auth failures.
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonSessionExpired  = "session_expired"
)

// WriteEngineError maps the engine error taxonomy onto HTTP statuses:
// duplicate ids and invalid transitions are conflicts, unknown ids are
// 404s, range violations are bad requests.
func WriteEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, match.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, match.ErrDuplicateID):
		WriteError(w, http.StatusConflict, "duplicate_id", err.Error())
	case errors.Is(err, match.ErrInvalidTransition):
		WriteError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, match.ErrPercentRange):
		WriteError(w, http.StatusBadRequest, "percent_out_of_range", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
