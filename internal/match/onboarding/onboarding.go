// Package onboarding tracks per-user onboarding completion. It is a
// plain keyed store: values are set whole, and absence reads as zero.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tutorloop/matchflow-go/internal/match"
)

// Record holds a user's onboarding completion percent.
type Record struct {
	UserID          string `json:"user_id"`
	CompletionPercent int  `json:"completion_percent"`
}

// Repo manages onboarding record storage.
type Repo interface {
	// GetOnboarding retrieves the record for a user. Returns
	// match.ErrNotFound when the user has never been written.
	GetOnboarding(ctx context.Context, userID string) (*Record, error)

	// SetOnboarding creates or overwrites the record for a user.
	SetOnboarding(ctx context.Context, rec *Record) error
}

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryRepo creates a new in-memory onboarding repository.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: make(map[string]*Record)}
}

func (r *MemoryRepo) GetOnboarding(ctx context.Context, userID string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[userID]
	if !ok {
		return nil, fmt.Errorf("onboarding for %s: %w", userID, match.ErrNotFound)
	}
	copied := *rec
	return &copied, nil
}

func (r *MemoryRepo) SetOnboarding(ctx context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *rec
	r.records[rec.UserID] = &copied
	return nil
}

var _ Repo = (*MemoryRepo)(nil)

// Tracker exposes the onboarding contract: reads default to 0 for
// unknown users, writes validate the range before touching the store.
type Tracker struct {
	repo Repo
}

// NewTracker creates a tracker backed by the given repository.
func NewTracker(repo Repo) *Tracker {
	return &Tracker{repo: repo}
}

// Get returns the completion percent for a user, defaulting to 0 when
// the user has never been written. Absence is not an error.
func (t *Tracker) Get(ctx context.Context, userID string) (int, error) {
	rec, err := t.repo.GetOnboarding(ctx, userID)
	if err != nil {
		if errors.Is(err, match.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return rec.CompletionPercent, nil
}

// Set writes the completion percent for a user. Values outside [0, 100]
// fail with match.ErrPercentRange and leave the store untouched.
func (t *Tracker) Set(ctx context.Context, userID string, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("percent %d: %w", percent, match.ErrPercentRange)
	}
	return t.repo.SetOnboarding(ctx, &Record{UserID: userID, CompletionPercent: percent})
}
