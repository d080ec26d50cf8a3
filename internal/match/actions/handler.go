package actions

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tutorloop/matchflow-go/internal/api"
	"github.com/tutorloop/matchflow-go/internal/match"
)

// Handler exposes next-best-action lookups over HTTP.
type Handler struct {
	resolver *Resolver
	repo     Repo
}

// NewHandler creates a new action handler.
func NewHandler(resolver *Resolver, repo Repo) *Handler {
	return &Handler{resolver: resolver, repo: repo}
}

// HandleResolve handles GET /api/actions/{role}/{targetID}. An actor
// with no registered action gets an explicit null, not a 404.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	role, ok := match.ParseRole(chi.URLParam(r, "role"))
	if !ok {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "unknown role")
		return
	}

	action, err := h.resolver.Resolve(r.Context(), role, chi.URLParam(r, "targetID"))
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{"action": action})
}

// HandlePut handles PUT /api/actions/{role}/{targetID}.
func (h *Handler) HandlePut(w http.ResponseWriter, r *http.Request) {
	role, ok := match.ParseRole(chi.URLParam(r, "role"))
	if !ok {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "unknown role")
		return
	}

	var body struct {
		Kind    string          `json:"kind"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if body.Kind == "" {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "kind is required")
		return
	}

	action := &Action{
		Role:     role,
		TargetID: chi.URLParam(r, "targetID"),
		Kind:     body.Kind,
		Payload:  body.Payload,
	}
	if err := h.repo.PutAction(r.Context(), action); err != nil {
		api.WriteEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, action)
}
