// Package actions serves next-best-action recommendations. Action
// payloads are computed by the external recommendation collaborator;
// this package only stores them and answers exact-key lookups.
package actions

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/tutorloop/matchflow-go/internal/match"
)

// Action is a recommended next step for an actor, keyed by the actor's
// role and target identity. Kind names the action for the client;
// Payload is opaque to the engine.
type Action struct {
	Role     match.Role      `json:"role"`
	TargetID string          `json:"target_id"`
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Repo manages next-best-action storage.
type Repo interface {
	// PutAction appends an action for its role/target pair. Duplicate
	// keys are tolerated; lookups resolve them deterministically.
	PutAction(ctx context.Context, a *Action) error

	// ListActions returns all actions for the exact role/target pair,
	// oldest first.
	ListActions(ctx context.Context, role match.Role, targetID string) ([]*Action, error)
}

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu      sync.RWMutex
	entries map[match.Key][]*Action
}

// NewMemoryRepo creates a new in-memory action repository.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{entries: make(map[match.Key][]*Action)}
}

func (r *MemoryRepo) PutAction(ctx context.Context, a *Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := match.Key{Role: a.Role, ID: a.TargetID}
	copied := *a
	r.entries[key] = append(r.entries[key], &copied)
	return nil
}

func (r *MemoryRepo) ListActions(ctx context.Context, role match.Role, targetID string) ([]*Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.entries[match.Key{Role: role, ID: targetID}]
	result := make([]*Action, 0, len(stored))
	for _, a := range stored {
		copied := *a
		result = append(result, &copied)
	}
	return result, nil
}

var _ Repo = (*MemoryRepo)(nil)

// Resolver answers next-best-action lookups.
type Resolver struct {
	repo Repo
}

// NewResolver creates a resolver backed by the given repository.
func NewResolver(repo Repo) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the action registered for the exact role/target pair,
// or nil when none exists. At most one action should exist per key; if
// upstream ever writes duplicates, the first-inserted one wins so the
// answer stays deterministic.
func (r *Resolver) Resolve(ctx context.Context, role match.Role, targetID string) (*Action, error) {
	stored, err := r.repo.ListActions(ctx, role, targetID)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, nil
	}
	return stored[0], nil
}
