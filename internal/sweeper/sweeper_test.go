package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/tutorloop/matchflow-go/internal/clock"
)

type recordingLedger struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
	done  chan struct{}
	once  sync.Once
}

func (r *recordingLedger) SweepExpired(ctx context.Context, now time.Time) ([]string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, now)
	n := len(r.calls)
	r.mu.Unlock()
	if n >= 2 && r.done != nil {
		r.once.Do(func() { close(r.done) })
	}
	if r.err != nil {
		return nil, r.err
	}
	return []string{"req-1"}, nil
}

func (r *recordingLedger) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_DisabledWhenIntervalZero(t *testing.T) {
	ledger := &recordingLedger{}
	s := New(ledger, clock.System{}, 0, testLogger())

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately when interval is zero")
	}
	if ledger.callCount() != 0 {
		t.Errorf("expected no sweeps, got %d", ledger.callCount())
	}
}

func TestRun_SweepsImmediatelyAndOnTick(t *testing.T) {
	ledger := &recordingLedger{done: make(chan struct{})}
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s := New(ledger, clock.NewFake(base), 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case <-ledger.done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected at least two sweeps")
	}
	cancel()

	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	if len(ledger.calls) < 2 {
		t.Fatalf("expected >= 2 sweeps, got %d", len(ledger.calls))
	}
	if !ledger.calls[0].Equal(base) {
		t.Errorf("first sweep used %v, want clock instant %v", ledger.calls[0], base)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ledger := &recordingLedger{}
	s := New(ledger, clock.System{}, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancel")
	}
	// Only the immediate sweep should have happened.
	if ledger.callCount() != 1 {
		t.Errorf("expected 1 sweep, got %d", ledger.callCount())
	}
}

func TestRun_ContinuesAfterSweepError(t *testing.T) {
	ledger := &recordingLedger{err: errors.New("store down"), done: make(chan struct{})}
	s := New(ledger, clock.System{}, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case <-ledger.done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper should keep sweeping after an error")
	}
}
