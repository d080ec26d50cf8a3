package onboarding

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tutorloop/matchflow-go/internal/api"
)

// Handler exposes onboarding progress over HTTP.
type Handler struct {
	tracker *Tracker
}

// NewHandler creates a new onboarding handler.
func NewHandler(tracker *Tracker) *Handler {
	return &Handler{tracker: tracker}
}

// HandleGet handles GET /api/onboarding/{userID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	percent, err := h.tracker.Get(r.Context(), userID)
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, Record{UserID: userID, CompletionPercent: percent})
}

// HandleSet handles PUT /api/onboarding/{userID}.
func (h *Handler) HandleSet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CompletionPercent int `json:"completion_percent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	userID := chi.URLParam(r, "userID")
	if err := h.tracker.Set(r.Context(), userID, body.CompletionPercent); err != nil {
		api.WriteEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, Record{UserID: userID, CompletionPercent: body.CompletionPercent})
}
