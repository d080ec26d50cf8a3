// Package identity provides account management, authentication, and
// session handling for guardians, tutors, and operators.
package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tutorloop/matchflow-go/internal/match"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrInvalidPassword = errors.New("invalid password")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionNotFound = errors.New("session not found")
	ErrAdminProtected  = errors.New("last admin cannot be deleted")
)

// Account role constants. Guardian and tutor accounts map onto the
// matching roles; admin accounts operate the service.
const (
	RoleGuardian = "guardian"
	RoleTutor    = "tutor"
	RoleAdmin    = "admin"
)

// User is an authenticated account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	// PartyID is the identity this account acts as in matching
	// operations. Empty for admin accounts.
	PartyID   string    `json:"party_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAdmin returns true if the user operates the service.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// MatchRole maps the account role onto the matching-side role, if any.
func (u *User) MatchRole() (match.Role, bool) {
	switch u.Role {
	case RoleGuardian:
		return match.RoleGuardian, true
	case RoleTutor:
		return match.RoleTutor, true
	}
	return "", false
}

// PartyRepo provides account storage operations.
type PartyRepo interface {
	// Create creates a new account. Returns ErrUserExists if the
	// username is taken.
	Create(ctx context.Context, user *User) error

	// Get retrieves an account by ID. Returns ErrUserNotFound if not found.
	Get(ctx context.Context, id string) (*User, error)

	// GetByUsername retrieves an account by username. Returns
	// ErrUserNotFound if not found.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Update updates an existing account.
	Update(ctx context.Context, user *User) error

	// Delete removes an account by ID.
	Delete(ctx context.Context, id string) error

	// List returns all accounts, optionally filtered by role.
	List(ctx context.Context, role string) ([]*User, error)
}

// NewUserID generates a UUIDv7 (time-ordered) account id.
func NewUserID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// MemoryPartyRepo is an in-memory implementation of PartyRepo.
type MemoryPartyRepo struct {
	mu         sync.RWMutex
	users      map[string]*User  // by ID
	byUsername map[string]string // username -> ID
}

// NewMemoryPartyRepo creates a new in-memory party repository.
func NewMemoryPartyRepo() *MemoryPartyRepo {
	return &MemoryPartyRepo{
		users:      make(map[string]*User),
		byUsername: make(map[string]string),
	}
}

func (r *MemoryPartyRepo) Create(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[user.Username]; exists {
		return ErrUserExists
	}

	if user.ID == "" {
		user.ID = NewUserID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	u := *user
	r.users[user.ID] = &u
	r.byUsername[user.Username] = user.ID

	return nil
}

func (r *MemoryPartyRepo) Get(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	u := *user
	return &u, nil
}

func (r *MemoryPartyRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return nil, ErrUserNotFound
	}

	user := r.users[id]
	u := *user
	return &u, nil
}

func (r *MemoryPartyRepo) Update(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}

	if existing.Username != user.Username {
		delete(r.byUsername, existing.Username)
		r.byUsername[user.Username] = user.ID
	}

	u := *user
	r.users[user.ID] = &u
	return nil
}

func (r *MemoryPartyRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}

	// Keep at least one admin so the service stays operable.
	if user.Role == RoleAdmin && r.adminCountLocked() == 1 {
		return ErrAdminProtected
	}

	delete(r.byUsername, user.Username)
	delete(r.users, id)
	return nil
}

func (r *MemoryPartyRepo) adminCountLocked() int {
	var n int
	for _, u := range r.users {
		if u.Role == RoleAdmin {
			n++
		}
	}
	return n
}

func (r *MemoryPartyRepo) List(ctx context.Context, role string) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*User
	for _, user := range r.users {
		if role == "" || user.Role == role {
			u := *user
			result = append(result, &u)
		}
	}
	return result, nil
}
