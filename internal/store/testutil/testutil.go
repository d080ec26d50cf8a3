// Package testutil provides the shared conformance suite for store
// driver tests.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/tutorloop/matchflow-go/internal/identity"
	"github.com/tutorloop/matchflow-go/internal/match"
	"github.com/tutorloop/matchflow-go/internal/match/actions"
	"github.com/tutorloop/matchflow-go/internal/match/calendar"
	"github.com/tutorloop/matchflow-go/internal/match/digest"
	"github.com/tutorloop/matchflow-go/internal/match/fallback"
	"github.com/tutorloop/matchflow-go/internal/match/onboarding"
	"github.com/tutorloop/matchflow-go/internal/match/requests"
	"github.com/tutorloop/matchflow-go/internal/store"
)

var baseTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// NewRequest builds a pending request with deterministic timestamps.
func NewRequest(id string) *requests.Request {
	return &requests.Request{
		ID:            id,
		RequesterID:   "guardian-1",
		TargetID:      "tutor-1",
		TargetRole:    match.RoleTutor,
		Subject:       "algebra",
		Status:        requests.StatusPending,
		ResponseDueAt: baseTime.Add(48 * time.Hour),
		CreatedAt:     baseTime,
		UpdatedAt:     baseTime,
	}
}

// RunDriverSuite runs the conformance suite against a single driver
// instance. Subtests use disjoint ids so they do not interfere.
func RunDriverSuite(t *testing.T, d store.Driver) {
	ctx := context.Background()

	t.Run("RequestLifecycle", func(t *testing.T) {
		req := NewRequest("req-lifecycle")
		if err := d.CreateRequest(ctx, req); err != nil {
			t.Fatalf("CreateRequest failed: %v", err)
		}

		got, err := d.GetRequest(ctx, "req-lifecycle")
		if err != nil {
			t.Fatalf("GetRequest failed: %v", err)
		}
		if got.Status != requests.StatusPending {
			t.Errorf("expected pending, got %s", got.Status)
		}
		if !got.ResponseDueAt.Equal(req.ResponseDueAt) {
			t.Errorf("ResponseDueAt = %v, want %v", got.ResponseDueAt, req.ResponseDueAt)
		}

		at := baseTime.Add(time.Hour)
		updated, err := d.TransitionRequest(ctx, "req-lifecycle", requests.StatusAccepted, at)
		if err != nil {
			t.Fatalf("TransitionRequest failed: %v", err)
		}
		if updated.Status != requests.StatusAccepted {
			t.Errorf("expected accepted, got %s", updated.Status)
		}
		if updated.RespondedAt == nil || !updated.RespondedAt.Equal(at) {
			t.Errorf("RespondedAt = %v, want %v", updated.RespondedAt, at)
		}
	})

	t.Run("RequestDuplicateID", func(t *testing.T) {
		if err := d.CreateRequest(ctx, NewRequest("req-dup")); err != nil {
			t.Fatalf("CreateRequest failed: %v", err)
		}
		err := d.CreateRequest(ctx, NewRequest("req-dup"))
		if !errors.Is(err, match.ErrDuplicateID) {
			t.Errorf("expected ErrDuplicateID, got %v", err)
		}
	})

	t.Run("RequestNotFound", func(t *testing.T) {
		_, err := d.GetRequest(ctx, "req-missing")
		if !errors.Is(err, match.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		_, err = d.TransitionRequest(ctx, "req-missing", requests.StatusDeclined, baseTime)
		if !errors.Is(err, match.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("RequestTerminalIsFinal", func(t *testing.T) {
		if err := d.CreateRequest(ctx, NewRequest("req-final")); err != nil {
			t.Fatalf("CreateRequest failed: %v", err)
		}
		if _, err := d.TransitionRequest(ctx, "req-final", requests.StatusDeclined, baseTime); err != nil {
			t.Fatalf("TransitionRequest failed: %v", err)
		}
		_, err := d.TransitionRequest(ctx, "req-final", requests.StatusAccepted, baseTime)
		if !errors.Is(err, match.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("RequestListInsertionOrder", func(t *testing.T) {
		for _, id := range []string{"req-order-c", "req-order-a", "req-order-b"} {
			if err := d.CreateRequest(ctx, NewRequest(id)); err != nil {
				t.Fatalf("CreateRequest %s failed: %v", id, err)
			}
		}
		all, err := d.ListRequests(ctx)
		if err != nil {
			t.Fatalf("ListRequests failed: %v", err)
		}
		var got []string
		for _, req := range all {
			switch req.ID {
			case "req-order-c", "req-order-a", "req-order-b":
				got = append(got, req.ID)
			}
		}
		want := []string{"req-order-c", "req-order-a", "req-order-b"}
		if len(got) != len(want) {
			t.Fatalf("expected %d requests, got %d", len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("position %d: got %s, want %s", i, got[i], want[i])
			}
		}
	})

	t.Run("Onboarding", func(t *testing.T) {
		_, err := d.GetOnboarding(ctx, "user-unknown")
		if !errors.Is(err, match.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		if err := d.SetOnboarding(ctx, &onboarding.Record{UserID: "user-1", CompletionPercent: 40}); err != nil {
			t.Fatalf("SetOnboarding failed: %v", err)
		}
		if err := d.SetOnboarding(ctx, &onboarding.Record{UserID: "user-1", CompletionPercent: 85}); err != nil {
			t.Fatalf("SetOnboarding overwrite failed: %v", err)
		}

		rec, err := d.GetOnboarding(ctx, "user-1")
		if err != nil {
			t.Fatalf("GetOnboarding failed: %v", err)
		}
		if rec.CompletionPercent != 85 {
			t.Errorf("CompletionPercent = %d, want 85", rec.CompletionPercent)
		}
	})

	t.Run("ActionsAppendOrder", func(t *testing.T) {
		for _, kind := range []string{"complete_profile", "confirm_slot"} {
			a := &actions.Action{
				Role:     match.RoleGuardian,
				TargetID: "guardian-7",
				Kind:     kind,
				Payload:  json.RawMessage(`{"step":1}`),
			}
			if err := d.PutAction(ctx, a); err != nil {
				t.Fatalf("PutAction failed: %v", err)
			}
		}

		list, err := d.ListActions(ctx, match.RoleGuardian, "guardian-7")
		if err != nil {
			t.Fatalf("ListActions failed: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 actions, got %d", len(list))
		}
		if list[0].Kind != "complete_profile" || list[1].Kind != "confirm_slot" {
			t.Errorf("unexpected order: %s, %s", list[0].Kind, list[1].Kind)
		}

		other, err := d.ListActions(ctx, match.RoleTutor, "guardian-7")
		if err != nil {
			t.Fatalf("ListActions failed: %v", err)
		}
		if len(other) != 0 {
			t.Errorf("expected no actions for other role, got %d", len(other))
		}
	})

	t.Run("SuggestionsReplace", func(t *testing.T) {
		set, err := d.GetSuggestions(ctx, "req-nosugg")
		if err != nil {
			t.Fatalf("GetSuggestions failed: %v", err)
		}
		if set != nil {
			t.Errorf("expected nil set for unknown request, got %+v", set)
		}

		first := &fallback.SuggestionSet{
			RequestID:  "req-sugg",
			Candidates: []fallback.Candidate{{ID: "tutor-2"}, {ID: "tutor-3"}},
		}
		if err := d.PutSuggestions(ctx, first); err != nil {
			t.Fatalf("PutSuggestions failed: %v", err)
		}

		second := &fallback.SuggestionSet{
			RequestID:  "req-sugg",
			Candidates: []fallback.Candidate{{ID: "tutor-9", DisplayName: "Ada"}},
		}
		if err := d.PutSuggestions(ctx, second); err != nil {
			t.Fatalf("PutSuggestions replace failed: %v", err)
		}

		got, err := d.GetSuggestions(ctx, "req-sugg")
		if err != nil {
			t.Fatalf("GetSuggestions failed: %v", err)
		}
		if got == nil || len(got.Candidates) != 1 {
			t.Fatalf("expected 1 candidate, got %+v", got)
		}
		if got.Candidates[0].ID != "tutor-9" || got.Candidates[0].DisplayName != "Ada" {
			t.Errorf("unexpected candidate: %+v", got.Candidates[0])
		}
	})

	t.Run("CalendarScopedByOwner", func(t *testing.T) {
		events := []*calendar.Event{
			{Role: match.RoleTutor, OwnerID: "tutor-5", Title: "session A", StartsAt: baseTime, EndsAt: baseTime.Add(time.Hour)},
			{Role: match.RoleTutor, OwnerID: "tutor-5", Title: "session B", StartsAt: baseTime.Add(2 * time.Hour), EndsAt: baseTime.Add(3 * time.Hour)},
			{Role: match.RoleGuardian, OwnerID: "tutor-5", Title: "other role", StartsAt: baseTime, EndsAt: baseTime.Add(time.Hour)},
		}
		for _, ev := range events {
			if err := d.RecordEvent(ctx, ev); err != nil {
				t.Fatalf("RecordEvent failed: %v", err)
			}
			if ev.ID == "" {
				t.Error("expected assigned event id")
			}
		}

		list, err := d.ListEvents(ctx, match.RoleTutor, "tutor-5")
		if err != nil {
			t.Fatalf("ListEvents failed: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 events, got %d", len(list))
		}
		if list[0].Title != "session A" || list[1].Title != "session B" {
			t.Errorf("unexpected order: %s, %s", list[0].Title, list[1].Title)
		}
	})

	t.Run("DigestsAppendOrder", func(t *testing.T) {
		for i, body := range []string{`{"week":1}`, `{"week":2}`} {
			dg := &digest.Digest{
				Role:        match.RoleGuardian,
				TargetID:    "guardian-3",
				GeneratedAt: baseTime.Add(time.Duration(i) * time.Hour),
				Body:        json.RawMessage(body),
			}
			if err := d.AppendDigest(ctx, dg); err != nil {
				t.Fatalf("AppendDigest failed: %v", err)
			}
			if dg.ID == "" {
				t.Error("expected assigned digest id")
			}
		}

		list, err := d.ListDigests(ctx, match.RoleGuardian, "guardian-3")
		if err != nil {
			t.Fatalf("ListDigests failed: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 digests, got %d", len(list))
		}
		if string(list[0].Body) != `{"week":1}` || string(list[1].Body) != `{"week":2}` {
			t.Errorf("unexpected order: %s, %s", list[0].Body, list[1].Body)
		}
	})

	t.Run("Accounts", func(t *testing.T) {
		user := &identity.User{
			Username:     "suite-alice",
			Email:        "alice@example.com",
			DisplayName:  "Alice",
			PasswordHash: "hashed",
			Role:         identity.RoleGuardian,
			PartyID:      "guardian-1",
		}
		if err := d.Create(ctx, user); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if user.ID == "" {
			t.Fatal("expected assigned user id")
		}

		dup := &identity.User{Username: "suite-alice", Role: identity.RoleGuardian}
		if err := d.Create(ctx, dup); !errors.Is(err, identity.ErrUserExists) {
			t.Errorf("expected ErrUserExists, got %v", err)
		}

		got, err := d.GetByUsername(ctx, "suite-alice")
		if err != nil {
			t.Fatalf("GetByUsername failed: %v", err)
		}
		if got.PasswordHash != "hashed" {
			t.Errorf("expected password hash to round-trip, got %q", got.PasswordHash)
		}
		if got.PartyID != "guardian-1" {
			t.Errorf("PartyID = %q, want guardian-1", got.PartyID)
		}

		got.DisplayName = "Alice B"
		if err := d.Update(ctx, got); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		again, err := d.Get(ctx, got.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if again.DisplayName != "Alice B" {
			t.Errorf("DisplayName = %q, want Alice B", again.DisplayName)
		}

		if err := d.Delete(ctx, got.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := d.Get(ctx, got.ID); !errors.Is(err, identity.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound after delete, got %v", err)
		}
	})

	t.Run("LastAdminProtected", func(t *testing.T) {
		admin := &identity.User{Username: "suite-admin", Role: identity.RoleAdmin}
		if err := d.Create(ctx, admin); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if err := d.Delete(ctx, admin.ID); !errors.Is(err, identity.ErrAdminProtected) {
			t.Errorf("expected ErrAdminProtected, got %v", err)
		}

		second := &identity.User{Username: "suite-admin-2", Role: identity.RoleAdmin}
		if err := d.Create(ctx, second); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if err := d.Delete(ctx, admin.ID); err != nil {
			t.Errorf("expected delete to succeed with two admins, got %v", err)
		}
	})
}
