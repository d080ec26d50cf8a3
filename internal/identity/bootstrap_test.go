package identity_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/tutorloop/matchflow-go/internal/identity"
)

func TestBootstrap_Run(t *testing.T) {
	repo := identity.NewMemoryPartyRepo()
	auth := identity.NewUserAuthFast()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	bootstrap := identity.NewBootstrap(repo, auth, logger)
	ctx := context.Background()

	admin := identity.SeededUser{
		Username:    "admin",
		Password:    "adminpass",
		DisplayName: "Administrator",
	}

	seeded := []identity.SeededUser{
		{Username: "alice", Password: "alicepass", Role: identity.RoleGuardian, PartyID: "G1"},
		{Username: "bob", Password: "bobpass", Role: identity.RoleTutor, PartyID: "T1"},
	}

	// First run should create accounts
	count, err := bootstrap.Run(ctx, admin, seeded)
	if err != nil {
		t.Fatalf("Bootstrap.Run failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 accounts created, got %d", count)
	}

	// Admin role is defaulted when unset
	user, err := repo.GetByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("admin not found: %v", err)
	}
	if user.Role != identity.RoleAdmin {
		t.Errorf("expected role 'admin', got %q", user.Role)
	}

	tutor, err := repo.GetByUsername(ctx, "bob")
	if err != nil {
		t.Fatalf("tutor not found: %v", err)
	}
	if tutor.PartyID != "T1" {
		t.Errorf("expected party id 'T1', got %q", tutor.PartyID)
	}

	// Second run should be idempotent
	count, err = bootstrap.Run(ctx, admin, seeded)
	if err != nil {
		t.Fatalf("Bootstrap.Run (second) failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 accounts created on second run, got %d", count)
	}
}

func TestMemoryPartyRepo_LastAdminProtected(t *testing.T) {
	repo := identity.NewMemoryPartyRepo()
	ctx := context.Background()

	admin := &identity.User{Username: "admin", Role: identity.RoleAdmin}
	if err := repo.Create(ctx, admin); err != nil {
		t.Fatal(err)
	}

	if err := repo.Delete(ctx, admin.ID); err != identity.ErrAdminProtected {
		t.Errorf("expected ErrAdminProtected, got %v", err)
	}

	second := &identity.User{Username: "admin2", Role: identity.RoleAdmin}
	if err := repo.Create(ctx, second); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(ctx, admin.ID); err != nil {
		t.Errorf("expected delete to succeed with a second admin, got %v", err)
	}
}
