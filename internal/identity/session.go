package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/tutorloop/matchflow-go/internal/clock"
)

// DefaultSessionTTL is the session lifetime used when the config does
// not supply one.
const DefaultSessionTTL = 24 * time.Hour

// Session is an active login session.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionRepo provides session storage operations.
type SessionRepo interface {
	// Create creates a new session for the user.
	Create(ctx context.Context, userID string, ttl time.Duration) (*Session, error)

	// Get retrieves a live session by token. Returns ErrSessionNotFound
	// for unknown tokens and ErrSessionExpired for expired ones.
	Get(ctx context.Context, token string) (*Session, error)

	// Delete removes a session (logout).
	Delete(ctx context.Context, token string) error

	// DeleteByUser removes all sessions for a user.
	DeleteByUser(ctx context.Context, userID string) error

	// DeleteExpired removes all expired sessions.
	DeleteExpired(ctx context.Context) (int, error)
}

// GenerateToken creates a cryptographically secure random token.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// MemorySessionRepo is an in-memory implementation of SessionRepo.
// Expiry is judged against the injected clock so tests can advance
// time without sleeping.
type MemorySessionRepo struct {
	mu       sync.RWMutex
	clk      clock.Clock
	sessions map[string]*Session // by token
	byUser   map[string][]string // userID -> tokens
}

// NewMemorySessionRepo creates a new in-memory session repository.
func NewMemorySessionRepo(clk clock.Clock) *MemorySessionRepo {
	if clk == nil {
		clk = clock.System{}
	}
	return &MemorySessionRepo{
		clk:      clk,
		sessions: make(map[string]*Session),
		byUser:   make(map[string][]string),
	}
}

func (r *MemorySessionRepo) Create(ctx context.Context, userID string, ttl time.Duration) (*Session, error) {
	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	now := r.clk.Now()
	session := &Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[token] = session
	r.byUser[userID] = append(r.byUser[userID], token)

	return session, nil
}

func (r *MemorySessionRepo) Get(ctx context.Context, token string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}

	if r.clk.Now().After(session.ExpiresAt) {
		return nil, ErrSessionExpired
	}

	s := *session
	return &s, nil
}

func (r *MemorySessionRepo) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[token]
	if !ok {
		return nil
	}

	r.dropUserTokenLocked(session.UserID, token)
	delete(r.sessions, token)
	return nil
}

func (r *MemorySessionRepo) DeleteByUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, token := range r.byUser[userID] {
		delete(r.sessions, token)
	}
	delete(r.byUser, userID)

	return nil
}

func (r *MemorySessionRepo) DeleteExpired(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int
	now := r.clk.Now()

	for token, session := range r.sessions {
		if now.After(session.ExpiresAt) {
			r.dropUserTokenLocked(session.UserID, token)
			delete(r.sessions, token)
			count++
		}
	}

	return count, nil
}

func (r *MemorySessionRepo) dropUserTokenLocked(userID, token string) {
	tokens := r.byUser[userID]
	for i, t := range tokens {
		if t == token {
			r.byUser[userID] = append(tokens[:i], tokens[i+1:]...)
			return
		}
	}
}
