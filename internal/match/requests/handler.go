package requests

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tutorloop/matchflow-go/internal/api"
	"github.com/tutorloop/matchflow-go/internal/clock"
	"github.com/tutorloop/matchflow-go/internal/match"
	"github.com/tutorloop/matchflow-go/internal/platform/logutil"
)

// Handler exposes the request ledger over HTTP.
type Handler struct {
	ledger *Ledger
	clk    clock.Clock
	logger *slog.Logger
}

// NewHandler creates a new request handler.
func NewHandler(ledger *Ledger, clk clock.Clock, logger *slog.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		clk:    clk,
		logger: logutil.NoopIfNil(logger),
	}
}

// CreateRequestBody is the request body for POST /api/requests.
type CreateRequestBody struct {
	ID            string     `json:"id,omitempty"`
	RequesterID   string     `json:"requester_id"`
	TargetID      string     `json:"target_id"`
	TargetRole    match.Role `json:"target_role"`
	Subject       string     `json:"subject,omitempty"`
	ResponseDueAt time.Time  `json:"response_due_at"`
}

// HandleCreate handles POST /api/requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var body CreateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if body.RequesterID == "" || body.TargetID == "" || body.TargetRole == "" {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "requester_id, target_id and target_role are required")
		return
	}
	if body.ResponseDueAt.IsZero() {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "response_due_at is required")
		return
	}

	req := &Request{
		ID:            body.ID,
		RequesterID:   body.RequesterID,
		TargetID:      body.TargetID,
		TargetRole:    body.TargetRole,
		Subject:       body.Subject,
		ResponseDueAt: body.ResponseDueAt,
	}
	if err := h.ledger.Create(r.Context(), req); err != nil {
		api.WriteEngineError(w, err)
		return
	}

	api.WriteJSON(w, http.StatusCreated, req)
}

// HandleList handles GET /api/requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	all, err := h.ledger.List(r.Context())
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}

	if status := Status(r.URL.Query().Get("status")); status != "" {
		if !status.Valid() {
			api.WriteError(w, http.StatusBadRequest, "invalid_request", "unknown status filter")
			return
		}
		filtered := make([]*Request, 0, len(all))
		for _, req := range all {
			if req.Status == status {
				filtered = append(filtered, req)
			}
		}
		all = filtered
	}

	api.WriteJSON(w, http.StatusOK, map[string]interface{}{"requests": all})
}

// HandleGet handles GET /api/requests/{requestID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	req, err := h.ledger.Get(r.Context(), chi.URLParam(r, "requestID"))
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, req)
}

// HandleAccept handles POST /api/requests/{requestID}/accept.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "requestID")
	req, err := h.ledger.Accept(r.Context(), id)
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}

	h.logger.Info("request accepted", "request_id", id)
	api.WriteJSON(w, http.StatusOK, req)
}

// HandleDecline handles POST /api/requests/{requestID}/decline.
func (h *Handler) HandleDecline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "requestID")
	req, err := h.ledger.Decline(r.Context(), id)
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}

	h.logger.Info("request declined", "request_id", id)
	api.WriteJSON(w, http.StatusOK, req)
}

// HandleExpiring handles GET /api/requests/expiring.
// The optional horizon_minutes query parameter overrides the default
// warning horizon.
func (h *Handler) HandleExpiring(w http.ResponseWriter, r *http.Request) {
	var horizon time.Duration
	if raw := r.URL.Query().Get("horizon_minutes"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			api.WriteError(w, http.StatusBadRequest, "invalid_request", "horizon_minutes must be a positive integer")
			return
		}
		horizon = time.Duration(minutes) * time.Minute
	}

	soon, err := h.ledger.ExpiringSoon(r.Context(), h.clk.Now(), horizon)
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{"requests": soon})
}

// HandleSummary handles GET /api/requests/summary.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ledger.SummaryByStatus(r.Context())
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{"summary": summary})
}
