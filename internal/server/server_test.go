package server

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/tutorloop/matchflow-go/internal/config"
	"github.com/tutorloop/matchflow-go/internal/identity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNew_FailsWithNilDeps(t *testing.T) {
	_, err := New(config.DevConfig(), testLogger(), nil)
	if err == nil {
		t.Fatal("expected error for nil deps")
	}
}

func TestNew_FailsWithMissingPartyRepo(t *testing.T) {
	deps := &Deps{
		SessionRepo: identity.NewMemorySessionRepo(nil),
		UserAuth:    identity.NewUserAuthFast(),
	}
	_, err := New(config.DevConfig(), testLogger(), deps)
	if !errors.Is(err, ErrMissingDep) {
		t.Fatalf("expected ErrMissingDep, got %v", err)
	}
}

func TestNew_FailsWithMissingSessionRepo(t *testing.T) {
	deps := &Deps{
		PartyRepo: identity.NewMemoryPartyRepo(),
		UserAuth:  identity.NewUserAuthFast(),
	}
	_, err := New(config.DevConfig(), testLogger(), deps)
	if !errors.Is(err, ErrMissingDep) {
		t.Fatalf("expected ErrMissingDep, got %v", err)
	}
}

func TestNew_FailsWithMissingUserAuth(t *testing.T) {
	deps := &Deps{
		PartyRepo:   identity.NewMemoryPartyRepo(),
		SessionRepo: identity.NewMemorySessionRepo(nil),
	}
	_, err := New(config.DevConfig(), testLogger(), deps)
	if !errors.Is(err, ErrMissingDep) {
		t.Fatalf("expected ErrMissingDep, got %v", err)
	}
}

func TestNew_DefaultsOptionalRepos(t *testing.T) {
	deps := &Deps{
		PartyRepo:   identity.NewMemoryPartyRepo(),
		SessionRepo: identity.NewMemorySessionRepo(nil),
		UserAuth:    identity.NewUserAuthFast(),
	}
	s, err := New(config.DevConfig(), testLogger(), deps)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.Ledger() == nil {
		t.Error("expected a ledger to be constructed")
	}
	if deps.RequestRepo == nil || deps.OnboardingRepo == nil || deps.ActionRepo == nil ||
		deps.SuggestionRepo == nil || deps.CalendarRepo == nil || deps.DigestRepo == nil {
		t.Error("expected nil repos to be defaulted to in-memory implementations")
	}
}

func TestNew_UnknownInterceptorFails(t *testing.T) {
	cfg := config.DevConfig()
	cfg.Interceptors = map[string]map[string]any{"no-such-interceptor": {}}

	deps := &Deps{
		PartyRepo:   identity.NewMemoryPartyRepo(),
		SessionRepo: identity.NewMemorySessionRepo(nil),
		UserAuth:    identity.NewUserAuthFast(),
	}
	_, err := New(cfg, testLogger(), deps)
	if err == nil {
		t.Fatal("expected error for unknown interceptor name")
	}
}

func TestExtractHostname(t *testing.T) {
	tests := []struct {
		origin string
		want   string
	}{
		{"https://localhost:9400", "localhost"},
		{"https://matchflow.example.org", "matchflow.example.org"},
		{"http://matchflow.example.org:8080/", "matchflow.example.org"},
		{"https://[::1]:9400", "[::1]"},
	}
	for _, tt := range tests {
		if got := extractHostname(tt.origin); got != tt.want {
			t.Errorf("extractHostname(%q) = %q, want %q", tt.origin, got, tt.want)
		}
	}
}
