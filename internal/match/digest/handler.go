package digest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tutorloop/matchflow-go/internal/api"
	"github.com/tutorloop/matchflow-go/internal/clock"
	"github.com/tutorloop/matchflow-go/internal/match"
)

// Handler exposes digests over HTTP.
type Handler struct {
	agg  *Aggregator
	repo Repo
	clk  clock.Clock
}

// NewHandler creates a new digest handler.
func NewHandler(agg *Aggregator, repo Repo, clk clock.Clock) *Handler {
	return &Handler{agg: agg, repo: repo, clk: clk}
}

// HandleLatest handles GET /api/digests/{role}/{targetID}/latest. A
// pair with no digests gets an explicit null, not a 404.
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	role, ok := match.ParseRole(chi.URLParam(r, "role"))
	if !ok {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "unknown role")
		return
	}

	latest, err := h.agg.LatestFor(r.Context(), role, chi.URLParam(r, "targetID"))
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{"digest": latest})
}

// HandleAppend handles POST /api/digests. A missing generated_at is
// stamped with the current time.
func (h *Handler) HandleAppend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role        match.Role      `json:"role"`
		TargetID    string          `json:"target_id"`
		GeneratedAt time.Time       `json:"generated_at"`
		Body        json.RawMessage `json:"body,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if _, ok := match.ParseRole(string(body.Role)); !ok {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "unknown role")
		return
	}
	if body.TargetID == "" {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "target_id is required")
		return
	}
	if body.GeneratedAt.IsZero() {
		body.GeneratedAt = h.clk.Now()
	}

	d := &Digest{
		Role:        body.Role,
		TargetID:    body.TargetID,
		GeneratedAt: body.GeneratedAt,
		Body:        body.Body,
	}
	if err := h.repo.AppendDigest(r.Context(), d); err != nil {
		api.WriteEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, d)
}
