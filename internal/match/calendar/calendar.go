// Package calendar projects scheduled events for a role/owner pair.
// Events are written by the external scheduling collaborator and never
// mutated here; callers apply their own time-range filtering.
package calendar

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tutorloop/matchflow-go/internal/match"
)

// Event is an immutable scheduled entry owned by one party.
type Event struct {
	ID       string     `json:"id"`
	Role     match.Role `json:"role"`
	OwnerID  string     `json:"owner_id"`
	Title    string     `json:"title,omitempty"`
	StartsAt time.Time  `json:"starts_at"`
	EndsAt   time.Time  `json:"ends_at"`
}

// Repo manages calendar event storage.
type Repo interface {
	// RecordEvent stores a new event. An empty id is assigned.
	RecordEvent(ctx context.Context, ev *Event) error

	// ListEvents returns all events matching both role and owner
	// exactly, in the order they were recorded.
	ListEvents(ctx context.Context, role match.Role, ownerID string) ([]*Event, error)
}

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu     sync.RWMutex
	events []*Event
}

// NewMemoryRepo creates a new in-memory calendar repository.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func (r *MemoryRepo) RecordEvent(ctx context.Context, ev *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *ev
	if copied.ID == "" {
		copied.ID = newEventID()
		ev.ID = copied.ID
	}
	r.events = append(r.events, &copied)
	return nil
}

func (r *MemoryRepo) ListEvents(ctx context.Context, role match.Role, ownerID string) ([]*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Event, 0)
	for _, ev := range r.events {
		if ev.Role == role && ev.OwnerID == ownerID {
			copied := *ev
			result = append(result, &copied)
		}
	}
	return result, nil
}

var _ Repo = (*MemoryRepo)(nil)

// Projector answers calendar queries for a role/owner pair.
type Projector struct {
	repo Repo
}

// NewProjector creates a projector backed by the given repository.
func NewProjector(repo Repo) *Projector {
	return &Projector{repo: repo}
}

// EventsFor returns all events owned by the given role/owner pair, in
// recording order. No time filtering is applied.
func (p *Projector) EventsFor(ctx context.Context, role match.Role, ownerID string) ([]*Event, error) {
	return p.repo.ListEvents(ctx, role, ownerID)
}
