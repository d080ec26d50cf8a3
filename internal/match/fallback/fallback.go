// Package fallback stores and serves fallback candidate suggestions
// for requests that stalled, were declined, or expired. Ranking is
// computed by the external matching collaborator; this package only
// preserves the order it was given.
package fallback

import (
	"context"
	"sync"
)

// Candidate is one alternative party proposed for a stalled request.
type Candidate struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
}

// SuggestionSet is the ranked candidate list for one request.
// Candidates[0] is the best alternative.
type SuggestionSet struct {
	RequestID  string      `json:"request_id"`
	Candidates []Candidate `json:"candidates"`
}

// Repo manages suggestion set storage.
type Repo interface {
	// PutSuggestions stores the ranked candidate list for a request,
	// replacing any previous set.
	PutSuggestions(ctx context.Context, set *SuggestionSet) error

	// GetSuggestions retrieves the set for a request, or nil when no
	// suggestions were computed.
	GetSuggestions(ctx context.Context, requestID string) (*SuggestionSet, error)
}

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	sets map[string]*SuggestionSet
}

// NewMemoryRepo creates a new in-memory suggestion repository.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{sets: make(map[string]*SuggestionSet)}
}

func (r *MemoryRepo) PutSuggestions(ctx context.Context, set *SuggestionSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := SuggestionSet{
		RequestID:  set.RequestID,
		Candidates: append([]Candidate(nil), set.Candidates...),
	}
	r.sets[set.RequestID] = &copied
	return nil
}

func (r *MemoryRepo) GetSuggestions(ctx context.Context, requestID string) (*SuggestionSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.sets[requestID]
	if !ok {
		return nil, nil
	}
	copied := SuggestionSet{
		RequestID:  set.RequestID,
		Candidates: append([]Candidate(nil), set.Candidates...),
	}
	return &copied, nil
}

var _ Repo = (*MemoryRepo)(nil)

// Engine serves fallback suggestions.
type Engine struct {
	repo Repo
}

// NewEngine creates an engine backed by the given repository.
func NewEngine(repo Repo) *Engine {
	return &Engine{repo: repo}
}

// Store records the ranked candidate list for a request.
func (e *Engine) Store(ctx context.Context, set *SuggestionSet) error {
	return e.repo.PutSuggestions(ctx, set)
}

// SuggestionsFor returns the ranked candidates for a request, best
// first, in the order they were stored. A request with no computed set
// yields an empty slice, not an error.
func (e *Engine) SuggestionsFor(ctx context.Context, requestID string) ([]Candidate, error) {
	set, err := e.repo.GetSuggestions(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return []Candidate{}, nil
	}
	return set.Candidates, nil
}
