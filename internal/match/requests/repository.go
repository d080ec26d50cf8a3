package requests

import (
	"context"
	"fmt"
	"sync"

	"time"

	"github.com/tutorloop/matchflow-go/internal/match"
)

// Repo manages matching-request storage. Implementations must make
// TransitionRequest atomic with respect to concurrent mutations of the
// same request: of two racing transitions, exactly one succeeds.
type Repo interface {
	// CreateRequest stores a new request. Returns match.ErrDuplicateID
	// if the id is already taken.
	CreateRequest(ctx context.Context, req *Request) error

	// GetRequest retrieves a request by id. Returns match.ErrNotFound
	// if the id is unknown.
	GetRequest(ctx context.Context, id string) (*Request, error)

	// ListRequests returns all requests. Ordering is stable for a given
	// snapshot (insertion order).
	ListRequests(ctx context.Context) ([]*Request, error)

	// TransitionRequest moves a pending request to the given terminal
	// status, stamping RespondedAt/UpdatedAt with at. Returns
	// match.ErrNotFound for unknown ids and match.ErrInvalidTransition
	// if the request is not pending.
	TransitionRequest(ctx context.Context, id string, to Status, at time.Time) (*Request, error)
}

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu       sync.RWMutex
	requests map[string]*Request
	order    []string // ids in insertion order, for stable listings
}

// NewMemoryRepo creates a new in-memory request repository.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		requests: make(map[string]*Request),
	}
}

func (r *MemoryRepo) CreateRequest(ctx context.Context, req *Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.requests[req.ID]; exists {
		return fmt.Errorf("request %s: %w", req.ID, match.ErrDuplicateID)
	}

	r.requests[req.ID] = req.Clone()
	r.order = append(r.order, req.ID)
	return nil
}

func (r *MemoryRepo) GetRequest(ctx context.Context, id string) (*Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, exists := r.requests[id]
	if !exists {
		return nil, fmt.Errorf("request %s: %w", id, match.ErrNotFound)
	}
	return req.Clone(), nil
}

func (r *MemoryRepo) ListRequests(ctx context.Context) ([]*Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Request, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.requests[id].Clone())
	}
	return result, nil
}

func (r *MemoryRepo) TransitionRequest(ctx context.Context, id string, to Status, at time.Time) (*Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, exists := r.requests[id]
	if !exists {
		return nil, fmt.Errorf("request %s: %w", id, match.ErrNotFound)
	}
	if req.Status != StatusPending {
		return nil, fmt.Errorf("request %s is %s: %w", id, req.Status, match.ErrInvalidTransition)
	}
	if !to.Terminal() {
		return nil, fmt.Errorf("cannot transition to %s: %w", to, match.ErrInvalidTransition)
	}

	req.Status = to
	responded := at
	req.RespondedAt = &responded
	req.UpdatedAt = at

	return req.Clone(), nil
}

var _ Repo = (*MemoryRepo)(nil)
