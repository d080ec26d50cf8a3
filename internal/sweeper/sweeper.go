// Package sweeper runs the periodic expiry sweep over pending requests.
// The ledger itself holds no timer; this package is the only component
// that turns wall-clock time into expiry transitions.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/tutorloop/matchflow-go/internal/clock"
	"github.com/tutorloop/matchflow-go/internal/platform/logutil"
)

// Ledger is the slice of the request ledger the sweeper needs.
type Ledger interface {
	SweepExpired(ctx context.Context, now time.Time) ([]string, error)
}

// Sweeper periodically expires overdue pending requests.
type Sweeper struct {
	ledger   Ledger
	clk      clock.Clock
	interval time.Duration
	logger   *slog.Logger
}

// New creates a sweeper. A non-positive interval disables it: Run
// returns immediately.
func New(ledger Ledger, clk clock.Clock, interval time.Duration, logger *slog.Logger) *Sweeper {
	if clk == nil {
		clk = clock.System{}
	}
	return &Sweeper{
		ledger:   ledger,
		clk:      clk,
		interval: interval,
		logger:   logutil.NoopIfNil(logger),
	}
}

// Run sweeps once immediately, then on every tick until ctx is
// cancelled. Sweep errors are logged and the loop keeps going; a
// transient store failure must not stop future sweeps.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("expiry sweeper disabled")
		return
	}

	s.logger.Info("expiry sweeper started", "interval", s.interval)
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	expired, err := s.ledger.SweepExpired(ctx, s.clk.Now())
	if err != nil {
		s.logger.Error("expiry sweep failed", "error", err)
		return
	}
	if len(expired) > 0 {
		s.logger.Info("expiry sweep completed", "expired", len(expired))
	}
}
