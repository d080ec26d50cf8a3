// Package store aggregates the engine repositories behind pluggable
// persistence drivers.
package store

import (
	"context"
	"errors"

	"github.com/tutorloop/matchflow-go/internal/identity"
	"github.com/tutorloop/matchflow-go/internal/match/actions"
	"github.com/tutorloop/matchflow-go/internal/match/calendar"
	"github.com/tutorloop/matchflow-go/internal/match/digest"
	"github.com/tutorloop/matchflow-go/internal/match/fallback"
	"github.com/tutorloop/matchflow-go/internal/match/onboarding"
	"github.com/tutorloop/matchflow-go/internal/match/requests"
)

// ErrClosed is returned by operations on a closed driver.
var ErrClosed = errors.New("store closed")

// Driver is a persistence backend. It carries every repository the
// engines need, so one driver instance backs the whole service.
// Implementations must be safe for concurrent use and must honor the
// error contracts of the embedded repository interfaces.
type Driver interface {
	// Init prepares the backend (create tables, load data files).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (memory, sqlite, json).
	Name() string

	requests.Repo
	onboarding.Repo
	actions.Repo
	fallback.Repo
	calendar.Repo
	digest.Repo
	identity.PartyRepo
}
