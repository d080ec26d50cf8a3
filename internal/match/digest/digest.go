// Package digest serves periodic summary digests per role/target pair.
// Digests are generated by the external digest collaborator and
// appended here; only the most recent one is normally relevant.
package digest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tutorloop/matchflow-go/internal/match"
)

// Digest is one generated summary payload for a role/target pair.
// Multiple digests may exist per pair across time.
type Digest struct {
	ID          string          `json:"id"`
	Role        match.Role      `json:"role"`
	TargetID    string          `json:"target_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// Repo manages append-only digest storage. Implementations must
// preserve append order within a role/target pair; the aggregator's
// tie-break depends on it.
type Repo interface {
	// AppendDigest stores a new digest. An empty id is assigned.
	AppendDigest(ctx context.Context, d *Digest) error

	// ListDigests returns all digests matching both role and target
	// exactly, in append order.
	ListDigests(ctx context.Context, role match.Role, targetID string) ([]*Digest, error)
}

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu      sync.RWMutex
	digests []*Digest
}

// NewMemoryRepo creates a new in-memory digest repository.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func newDigestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func (r *MemoryRepo) AppendDigest(ctx context.Context, d *Digest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *d
	if copied.ID == "" {
		copied.ID = newDigestID()
		d.ID = copied.ID
	}
	r.digests = append(r.digests, &copied)
	return nil
}

func (r *MemoryRepo) ListDigests(ctx context.Context, role match.Role, targetID string) ([]*Digest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Digest, 0)
	for _, d := range r.digests {
		if d.Role == role && d.TargetID == targetID {
			copied := *d
			result = append(result, &copied)
		}
	}
	return result, nil
}

var _ Repo = (*MemoryRepo)(nil)

// Aggregator answers latest-digest queries.
type Aggregator struct {
	repo Repo
}

// NewAggregator creates an aggregator backed by the given repository.
func NewAggregator(repo Repo) *Aggregator {
	return &Aggregator{repo: repo}
}

// LatestFor returns the digest with the maximum GeneratedAt among those
// matching the role/target pair, or nil when none match. When two
// digests share the exact same GeneratedAt, the one appended last wins,
// so the answer is deterministic.
func (a *Aggregator) LatestFor(ctx context.Context, role match.Role, targetID string) (*Digest, error) {
	all, err := a.repo.ListDigests(ctx, role, targetID)
	if err != nil {
		return nil, err
	}

	var latest *Digest
	for _, d := range all {
		// >= so a timestamp tie resolves to the later append.
		if latest == nil || !d.GeneratedAt.Before(latest.GeneratedAt) {
			latest = d
		}
	}
	return latest, nil
}
