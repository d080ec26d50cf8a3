package identity

import (
	"context"

	"golang.org/x/crypto/bcrypt"
)

// UserAuth handles password hashing and verification.
type UserAuth struct {
	cost int
}

// NewUserAuth creates a new UserAuth with the given bcrypt cost.
// Cost should be at least 10 for production.
func NewUserAuth(cost int) *UserAuth {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &UserAuth{cost: cost}
}

// NewUserAuthFast creates a UserAuth with the minimum bcrypt cost.
// For tests only.
func NewUserAuthFast() *UserAuth {
	return &UserAuth{cost: bcrypt.MinCost}
}

// HashPassword creates a bcrypt hash of the password.
func (a *UserAuth) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks if the password matches the hash.
// Returns ErrInvalidPassword if the password doesn't match.
func (a *UserAuth) VerifyPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}

// Authenticate verifies an account's credentials and returns the
// account when they are valid.
func (a *UserAuth) Authenticate(ctx context.Context, repo PartyRepo, username, password string) (*User, error) {
	user, err := repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if err := a.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, err
	}

	return user, nil
}
