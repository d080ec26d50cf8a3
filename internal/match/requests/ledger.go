package requests

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tutorloop/matchflow-go/internal/clock"
	"github.com/tutorloop/matchflow-go/internal/platform/logutil"
)

// DefaultWarningHorizon is the expiring-soon window used when a caller
// does not supply one.
const DefaultWarningHorizon = 2 * time.Hour

// NotificationSender delivers lifecycle notifications to the opposite
// party. Delivery failures are logged, never surfaced: the transition
// has already happened locally.
type NotificationSender interface {
	SendRequestAccepted(ctx context.Context, req *Request) error
	SendRequestDeclined(ctx context.Context, req *Request) error
	SendRequestExpired(ctx context.Context, req *Request) error
}

// Ledger owns request lifecycle transitions and the projections derived
// from them. It holds no timer: time-based expiry happens only when a
// caller hands SweepExpired an instant.
type Ledger struct {
	repo     Repo
	clk      clock.Clock
	notifier NotificationSender
	logger   *slog.Logger
	horizon  time.Duration
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithNotifier sets the lifecycle notification sender.
func WithNotifier(n NotificationSender) Option {
	return func(l *Ledger) { l.notifier = n }
}

// WithWarningHorizon overrides the default expiring-soon horizon.
func WithWarningHorizon(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.horizon = d
		}
	}
}

// NewLedger creates a request ledger backed by the given repository.
func NewLedger(repo Repo, clk clock.Clock, logger *slog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		repo:    repo,
		clk:     clk,
		logger:  logutil.NoopIfNil(logger),
		horizon: DefaultWarningHorizon,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// newRequestID generates a UUIDv7 (time-ordered) request id.
func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fall back to V4 if V7 fails
		return uuid.New().String()
	}
	return id.String()
}

// Create inserts a new request in pending status. An empty id is
// assigned; a caller-supplied id that already exists fails with
// match.ErrDuplicateID.
func (l *Ledger) Create(ctx context.Context, req *Request) error {
	if req.ID == "" {
		req.ID = newRequestID()
	}

	now := l.clk.Now()
	req.Status = StatusPending
	req.CreatedAt = now
	req.UpdatedAt = now
	req.RespondedAt = nil

	if err := l.repo.CreateRequest(ctx, req); err != nil {
		return err
	}

	l.logger.Info("request created",
		"request_id", req.ID,
		"target_role", req.TargetRole,
		"response_due_at", req.ResponseDueAt)
	return nil
}

// Get retrieves a request by id.
func (l *Ledger) Get(ctx context.Context, id string) (*Request, error) {
	return l.repo.GetRequest(ctx, id)
}

// List returns all requests in insertion order.
func (l *Ledger) List(ctx context.Context) ([]*Request, error) {
	return l.repo.ListRequests(ctx)
}

// Accept transitions a pending request to accepted. An explicit actor
// decision always beats time-based expiry: a still-pending request is
// acceptable even past its deadline, as long as no sweep has expired it
// first.
func (l *Ledger) Accept(ctx context.Context, id string) (*Request, error) {
	req, err := l.repo.TransitionRequest(ctx, id, StatusAccepted, l.clk.Now())
	if err != nil {
		return nil, err
	}
	l.notify(ctx, req)
	return req, nil
}

// Decline transitions a pending request to declined.
func (l *Ledger) Decline(ctx context.Context, id string) (*Request, error) {
	req, err := l.repo.TransitionRequest(ctx, id, StatusDeclined, l.clk.Now())
	if err != nil {
		return nil, err
	}
	l.notify(ctx, req)
	return req, nil
}

// SweepExpired transitions every pending request whose deadline has
// passed (ResponseDueAt <= now) to expired and returns the ids that
// were transitioned. A request accepted or declined between the listing
// and the transition loses the race cleanly: the conditional transition
// fails and the sweep skips it. Calling the sweep twice with the same
// instant transitions nothing the second time.
func (l *Ledger) SweepExpired(ctx context.Context, now time.Time) ([]string, error) {
	all, err := l.repo.ListRequests(ctx)
	if err != nil {
		return nil, err
	}

	var expired []string
	for _, req := range all {
		if req.Status != StatusPending || req.ResponseDueAt.After(now) {
			continue
		}
		transitioned, err := l.repo.TransitionRequest(ctx, req.ID, StatusExpired, now)
		if err != nil {
			// Lost the race against an explicit accept/decline.
			continue
		}
		expired = append(expired, transitioned.ID)
		l.notify(ctx, transitioned)
	}

	if len(expired) > 0 {
		l.logger.Info("expired requests swept", "count", len(expired), "now", now)
	}
	return expired, nil
}

// ExpiringSoon returns every pending request whose deadline falls
// strictly within (now, now+horizon]. Requests already overdue belong
// to SweepExpired, not this warning view. A non-positive horizon uses
// the ledger default. Results are ordered by deadline, then id.
func (l *Ledger) ExpiringSoon(ctx context.Context, now time.Time, horizon time.Duration) ([]*Request, error) {
	if horizon <= 0 {
		horizon = l.horizon
	}

	all, err := l.repo.ListRequests(ctx)
	if err != nil {
		return nil, err
	}

	var soon []*Request
	for _, req := range all {
		if req.Status != StatusPending {
			continue
		}
		remaining := req.ResponseDueAt.Sub(now)
		if remaining > 0 && remaining <= horizon {
			soon = append(soon, req)
		}
	}

	sort.Slice(soon, func(i, j int) bool {
		if !soon[i].ResponseDueAt.Equal(soon[j].ResponseDueAt) {
			return soon[i].ResponseDueAt.Before(soon[j].ResponseDueAt)
		}
		return soon[i].ID < soon[j].ID
	})
	return soon, nil
}

// SummaryByStatus counts requests per status. The summary covers
// exactly the four status values; statuses with no requests report 0.
func (l *Ledger) SummaryByStatus(ctx context.Context) (Summary, error) {
	all, err := l.repo.ListRequests(ctx)
	if err != nil {
		return nil, err
	}

	summary := make(Summary, len(AllStatuses))
	for _, s := range AllStatuses {
		summary[s] = 0
	}
	for _, req := range all {
		summary[req.Status]++
	}
	return summary, nil
}

// notify fans a terminal transition out to the opposite party.
func (l *Ledger) notify(ctx context.Context, req *Request) {
	if l.notifier == nil {
		return
	}

	var err error
	switch req.Status {
	case StatusAccepted:
		err = l.notifier.SendRequestAccepted(ctx, req)
	case StatusDeclined:
		err = l.notifier.SendRequestDeclined(ctx, req)
	case StatusExpired:
		err = l.notifier.SendRequestExpired(ctx, req)
	default:
		return
	}

	if err != nil {
		// Log but don't fail - the transition is already recorded.
		l.logger.Warn("failed to send request notification",
			"request_id", req.ID,
			"status", req.Status,
			"error", err)
	}
}
