package fallback

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tutorloop/matchflow-go/internal/api"
)

// Handler exposes fallback suggestions over HTTP.
type Handler struct {
	engine *Engine
}

// NewHandler creates a new fallback handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// HandleGet handles GET /api/requests/{requestID}/suggestions.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	candidates, err := h.engine.SuggestionsFor(r.Context(), requestID)
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, SuggestionSet{RequestID: requestID, Candidates: candidates})
}

// HandlePut handles PUT /api/requests/{requestID}/suggestions.
func (h *Handler) HandlePut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Candidates []Candidate `json:"candidates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	set := &SuggestionSet{
		RequestID:  chi.URLParam(r, "requestID"),
		Candidates: body.Candidates,
	}
	if err := h.engine.Store(r.Context(), set); err != nil {
		api.WriteEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, set)
}
