package onboarding_test

import (
	"context"
	"errors"
	"testing"

	"github.com/tutorloop/matchflow-go/internal/match"
	"github.com/tutorloop/matchflow-go/internal/match/onboarding"
)

func TestGet_UnknownUserDefaultsToZero(t *testing.T) {
	tracker := onboarding.NewTracker(onboarding.NewMemoryRepo())

	percent, err := tracker.Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if percent != 0 {
		t.Errorf("expected 0 for unknown user, got %d", percent)
	}
}

func TestSet_ThenGet(t *testing.T) {
	tracker := onboarding.NewTracker(onboarding.NewMemoryRepo())
	ctx := context.Background()

	if err := tracker.Set(ctx, "u1", 50); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	percent, err := tracker.Get(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if percent != 50 {
		t.Errorf("expected 50, got %d", percent)
	}

	// Overwrite, including the boundary values.
	for _, p := range []int{0, 100} {
		if err := tracker.Set(ctx, "u1", p); err != nil {
			t.Fatalf("set %d failed: %v", p, err)
		}
		got, _ := tracker.Get(ctx, "u1")
		if got != p {
			t.Errorf("expected %d after overwrite, got %d", p, got)
		}
	}
}

func TestSet_OutOfRange(t *testing.T) {
	tracker := onboarding.NewTracker(onboarding.NewMemoryRepo())
	ctx := context.Background()

	for _, p := range []int{-1, 101, 150} {
		err := tracker.Set(ctx, "u1", p)
		if !errors.Is(err, match.ErrPercentRange) {
			t.Errorf("set %d: expected ErrPercentRange, got %v", p, err)
		}
	}

	// Failed writes must not have touched the store.
	percent, _ := tracker.Get(ctx, "u1")
	if percent != 0 {
		t.Errorf("expected store untouched after range errors, got %d", percent)
	}
}
