package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// SeededUser defines an account to be created at startup.
type SeededUser struct {
	Username    string
	Password    string
	Email       string
	DisplayName string
	Role        string
	PartyID     string
}

// Bootstrap creates the admin account and seeded accounts idempotently.
type Bootstrap struct {
	repo PartyRepo
	auth *UserAuth
	log  *slog.Logger
}

// NewBootstrap creates a new bootstrap handler.
func NewBootstrap(repo PartyRepo, auth *UserAuth, log *slog.Logger) *Bootstrap {
	return &Bootstrap{
		repo: repo,
		auth: auth,
		log:  log,
	}
}

// Run creates the admin account and any seeded accounts.
// Returns the number of accounts created (0 if all already exist).
func (b *Bootstrap) Run(ctx context.Context, admin SeededUser, seeded []SeededUser) (int, error) {
	var created int

	if admin.Username != "" {
		if admin.Role == "" {
			admin.Role = RoleAdmin
		}
		n, err := b.ensureUser(ctx, admin)
		if err != nil {
			return created, err
		}
		created += n
	}

	for _, s := range seeded {
		n, err := b.ensureUser(ctx, s)
		if err != nil {
			return created, err
		}
		created += n
	}

	return created, nil
}

func (b *Bootstrap) ensureUser(ctx context.Context, s SeededUser) (int, error) {
	_, err := b.repo.GetByUsername(ctx, s.Username)
	if err == nil {
		b.log.Debug("account already exists", "username", s.Username)
		return 0, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return 0, err
	}

	hash, err := b.auth.HashPassword(s.Password)
	if err != nil {
		return 0, err
	}

	role := s.Role
	if role == "" {
		role = RoleGuardian
	}

	user := &User{
		ID:           NewUserID(),
		Username:     s.Username,
		Email:        s.Email,
		DisplayName:  s.DisplayName,
		PasswordHash: hash,
		Role:         role,
		PartyID:      s.PartyID,
		CreatedAt:    time.Now(),
	}

	if err := b.repo.Create(ctx, user); err != nil {
		return 0, err
	}

	b.log.Info("created account", "username", s.Username, "role", role)
	return 1, nil
}
