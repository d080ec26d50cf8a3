package onboarding_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tutorloop/matchflow-go/internal/match/onboarding"
)

func newTestRouter() *chi.Mux {
	handler := onboarding.NewHandler(onboarding.NewTracker(onboarding.NewMemoryRepo()))

	r := chi.NewRouter()
	r.Get("/api/onboarding/{userID}", handler.HandleGet)
	r.Put("/api/onboarding/{userID}", handler.HandleSet)
	return r
}

func TestHandleGet_UnknownUserIsZero(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/onboarding/new-user", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got onboarding.Record
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.CompletionPercent != 0 {
		t.Errorf("expected 0 for unknown user, got %d", got.CompletionPercent)
	}
}

func TestHandleSet_RoundTrip(t *testing.T) {
	router := newTestRouter()

	put := httptest.NewRequest(http.MethodPut, "/api/onboarding/u1", strings.NewReader(`{"completion_percent": 50}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, put)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	get := httptest.NewRequest(http.MethodGet, "/api/onboarding/u1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, get)

	var got onboarding.Record
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.CompletionPercent != 50 {
		t.Errorf("expected 50, got %d", got.CompletionPercent)
	}
}

func TestHandleSet_OutOfRange(t *testing.T) {
	router := newTestRouter()

	for _, body := range []string{`{"completion_percent": -1}`, `{"completion_percent": 101}`} {
		req := httptest.NewRequest(http.MethodPut, "/api/onboarding/u1", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}
