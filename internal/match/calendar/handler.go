package calendar

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tutorloop/matchflow-go/internal/api"
	"github.com/tutorloop/matchflow-go/internal/match"
)

// Handler exposes calendar projections over HTTP.
type Handler struct {
	projector *Projector
	repo      Repo
}

// NewHandler creates a new calendar handler.
func NewHandler(projector *Projector, repo Repo) *Handler {
	return &Handler{projector: projector, repo: repo}
}

// HandleList handles GET /api/calendar/{role}/{ownerID}.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	role, ok := match.ParseRole(chi.URLParam(r, "role"))
	if !ok {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "unknown role")
		return
	}

	events, err := h.projector.EventsFor(r.Context(), role, chi.URLParam(r, "ownerID"))
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// HandleRecord handles POST /api/calendar.
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role     match.Role `json:"role"`
		OwnerID  string     `json:"owner_id"`
		Title    string     `json:"title,omitempty"`
		StartsAt time.Time  `json:"starts_at"`
		EndsAt   time.Time  `json:"ends_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if _, ok := match.ParseRole(string(body.Role)); !ok {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "unknown role")
		return
	}
	if body.OwnerID == "" {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "owner_id is required")
		return
	}

	ev := &Event{
		Role:     body.Role,
		OwnerID:  body.OwnerID,
		Title:    body.Title,
		StartsAt: body.StartsAt,
		EndsAt:   body.EndsAt,
	}
	if err := h.repo.RecordEvent(r.Context(), ev); err != nil {
		api.WriteEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, ev)
}
