// Package memory implements the in-process store driver. It composes
// the engines' memory repositories, so behavior matches what the unit
// tests of each engine already pin down.
package memory

import (
	"context"
	"log/slog"

	"github.com/tutorloop/matchflow-go/internal/identity"
	"github.com/tutorloop/matchflow-go/internal/match/actions"
	"github.com/tutorloop/matchflow-go/internal/match/calendar"
	"github.com/tutorloop/matchflow-go/internal/match/digest"
	"github.com/tutorloop/matchflow-go/internal/match/fallback"
	"github.com/tutorloop/matchflow-go/internal/match/onboarding"
	"github.com/tutorloop/matchflow-go/internal/match/requests"
	"github.com/tutorloop/matchflow-go/internal/store"
)

func init() {
	store.Register("memory", NewDriver)
}

// Aliases give each embedded repository a distinct field name.
type (
	requestRepo    = requests.MemoryRepo
	onboardingRepo = onboarding.MemoryRepo
	actionRepo     = actions.MemoryRepo
	suggestionRepo = fallback.MemoryRepo
	calendarRepo   = calendar.MemoryRepo
	digestRepo     = digest.MemoryRepo
)

// Driver implements store.Driver entirely in memory. Data does not
// survive a restart.
type Driver struct {
	*requestRepo
	*onboardingRepo
	*actionRepo
	*suggestionRepo
	*calendarRepo
	*digestRepo
	*identity.MemoryPartyRepo
}

// NewDriver is the registry factory. The memory driver takes no
// configuration.
func NewDriver(_ map[string]any, _ *slog.Logger) (store.Driver, error) {
	return New(), nil
}

// New creates a memory driver with empty repositories.
func New() *Driver {
	return &Driver{
		requestRepo:     requests.NewMemoryRepo(),
		onboardingRepo:  onboarding.NewMemoryRepo(),
		actionRepo:      actions.NewMemoryRepo(),
		suggestionRepo:  fallback.NewMemoryRepo(),
		calendarRepo:    calendar.NewMemoryRepo(),
		digestRepo:      digest.NewMemoryRepo(),
		MemoryPartyRepo: identity.NewMemoryPartyRepo(),
	}
}

// Name returns the driver name.
func (d *Driver) Name() string { return "memory" }

// Init is a no-op for the memory driver.
func (d *Driver) Init(ctx context.Context) error { return nil }

// Close is a no-op for the memory driver.
func (d *Driver) Close() error { return nil }

var _ store.Driver = (*Driver)(nil)
