package requests_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tutorloop/matchflow-go/internal/clock"
	"github.com/tutorloop/matchflow-go/internal/match"
	"github.com/tutorloop/matchflow-go/internal/match/requests"
)

var baseTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newLedger(t *testing.T, opts ...requests.Option) (*requests.Ledger, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(baseTime)
	return requests.NewLedger(requests.NewMemoryRepo(), clk, nil, opts...), clk
}

func pendingRequest(id string, due time.Time) *requests.Request {
	return &requests.Request{
		ID:            id,
		RequesterID:   "guardian-1",
		TargetID:      "tutor-1",
		TargetRole:    match.RoleTutor,
		Subject:       "algebra",
		ResponseDueAt: due,
	}
}

func TestCreate_AssignsIDAndPendingStatus(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	req := pendingRequest("", baseTime.Add(time.Hour))
	if err := ledger.Create(ctx, req); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if req.ID == "" {
		t.Error("expected generated id")
	}

	stored, err := ledger.Get(ctx, req.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Status != requests.StatusPending {
		t.Errorf("expected pending, got %s", stored.Status)
	}
	if !stored.CreatedAt.Equal(baseTime) {
		t.Errorf("expected created_at %v, got %v", baseTime, stored.CreatedAt)
	}
}

func TestCreate_DuplicateID(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	if err := ledger.Create(ctx, pendingRequest("r1", baseTime.Add(time.Hour))); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	err := ledger.Create(ctx, pendingRequest("r1", baseTime.Add(2*time.Hour)))
	if !errors.Is(err, match.ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

func TestAccept_TransitionsOnce(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	if err := ledger.Create(ctx, pendingRequest("r1", baseTime.Add(time.Hour))); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	req, err := ledger.Accept(ctx, "r1")
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if req.Status != requests.StatusAccepted {
		t.Errorf("expected accepted, got %s", req.Status)
	}
	if req.RespondedAt == nil || !req.RespondedAt.Equal(baseTime) {
		t.Errorf("expected responded_at %v, got %v", baseTime, req.RespondedAt)
	}

	// Second accept must surface double-processing, not succeed silently.
	if _, err := ledger.Accept(ctx, "r1"); !errors.Is(err, match.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition on second accept, got %v", err)
	}
	// Decline on an accepted request is equally invalid.
	if _, err := ledger.Decline(ctx, "r1"); !errors.Is(err, match.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for decline-after-accept, got %v", err)
	}
}

func TestAccept_UnknownID(t *testing.T) {
	ledger, _ := newLedger(t)

	if _, err := ledger.Accept(context.Background(), "missing"); !errors.Is(err, match.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDecline_Transitions(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	if err := ledger.Create(ctx, pendingRequest("r1", baseTime.Add(time.Hour))); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	req, err := ledger.Decline(ctx, "r1")
	if err != nil {
		t.Fatalf("decline failed: %v", err)
	}
	if req.Status != requests.StatusDeclined {
		t.Errorf("expected declined, got %s", req.Status)
	}
}

func TestSweepExpired_TransitionsOverdueOnly(t *testing.T) {
	ledger, clk := newLedger(t)
	ctx := context.Background()

	if err := ledger.Create(ctx, pendingRequest("due", baseTime.Add(30*time.Minute))); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Create(ctx, pendingRequest("later", baseTime.Add(3*time.Hour))); err != nil {
		t.Fatal(err)
	}

	now := clk.Advance(time.Hour)
	expired, err := ledger.SweepExpired(ctx, now)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(expired) != 1 || expired[0] != "due" {
		t.Errorf("expected [due], got %v", expired)
	}

	stored, _ := ledger.Get(ctx, "due")
	if stored.Status != requests.StatusExpired {
		t.Errorf("expected expired, got %s", stored.Status)
	}
	remaining, _ := ledger.Get(ctx, "later")
	if remaining.Status != requests.StatusPending {
		t.Errorf("expected later to stay pending, got %s", remaining.Status)
	}
}

func TestSweepExpired_Idempotent(t *testing.T) {
	ledger, clk := newLedger(t)
	ctx := context.Background()

	if err := ledger.Create(ctx, pendingRequest("r1", baseTime.Add(time.Minute))); err != nil {
		t.Fatal(err)
	}

	now := clk.Advance(time.Hour)
	first, err := ledger.SweepExpired(ctx, now)
	if err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 expired, got %d", len(first))
	}

	second, err := ledger.SweepExpired(ctx, now)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("expected idempotent sweep, got %v", second)
	}
}

func TestSweepExpired_DeadlineBoundaryInclusive(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	// Due exactly at the sweep instant counts as overdue.
	if err := ledger.Create(ctx, pendingRequest("r1", baseTime)); err != nil {
		t.Fatal(err)
	}

	expired, err := ledger.SweepExpired(ctx, baseTime)
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 1 {
		t.Errorf("expected request due at now to expire, got %v", expired)
	}
}

func TestAcceptBeatsExpiry_BeforeSweep(t *testing.T) {
	ledger, clk := newLedger(t)
	ctx := context.Background()

	if err := ledger.Create(ctx, pendingRequest("r1", baseTime.Add(time.Minute))); err != nil {
		t.Fatal(err)
	}

	// Deadline passes but no sweep has run; the explicit decision wins.
	clk.Advance(time.Hour)
	if _, err := ledger.Accept(ctx, "r1"); err != nil {
		t.Fatalf("accept before sweep failed: %v", err)
	}

	expired, err := ledger.SweepExpired(ctx, clk.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 0 {
		t.Errorf("accepted request must not expire, got %v", expired)
	}
}

func TestAcceptAfterSweep_IsError(t *testing.T) {
	ledger, clk := newLedger(t)
	ctx := context.Background()

	if err := ledger.Create(ctx, pendingRequest("r1", baseTime.Add(time.Minute))); err != nil {
		t.Fatal(err)
	}

	if _, err := ledger.SweepExpired(ctx, clk.Advance(time.Hour)); err != nil {
		t.Fatal(err)
	}

	// Policy: acting on an expired request is a hard error, not a no-op.
	if _, err := ledger.Accept(ctx, "r1"); !errors.Is(err, match.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition after expiry, got %v", err)
	}
}

func TestExpiringSoon_HorizonBoundaries(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	if err := ledger.Create(ctx, pendingRequest("r1", baseTime.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}

	// Within a 2h horizon.
	soon, err := ledger.ExpiringSoon(ctx, baseTime, 2*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(soon) != 1 || soon[0].ID != "r1" {
		t.Errorf("expected r1 within 2h horizon, got %v", ids(soon))
	}

	// Outside a 30m horizon.
	soon, err = ledger.ExpiringSoon(ctx, baseTime, 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(soon) != 0 {
		t.Errorf("expected nothing within 30m horizon, got %v", ids(soon))
	}

	// Exactly at the horizon edge is included.
	soon, err = ledger.ExpiringSoon(ctx, baseTime, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(soon) != 1 {
		t.Errorf("expected inclusion at horizon boundary, got %v", ids(soon))
	}
}

func TestExpiringSoon_ExcludesOverdue(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	if err := ledger.Create(ctx, pendingRequest("overdue", baseTime.Add(-time.Minute))); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Create(ctx, pendingRequest("at-now", baseTime)); err != nil {
		t.Fatal(err)
	}

	soon, err := ledger.ExpiringSoon(ctx, baseTime, 2*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(soon) != 0 {
		t.Errorf("overdue requests belong to the sweep, not the warning view, got %v", ids(soon))
	}
}

func TestExpiringSoon_ExcludesAfterExpiry(t *testing.T) {
	ledger, clk := newLedger(t)
	ctx := context.Background()

	if err := ledger.Create(ctx, pendingRequest("r1", baseTime.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}

	now := clk.Advance(2 * time.Hour)
	if _, err := ledger.SweepExpired(ctx, now); err != nil {
		t.Fatal(err)
	}

	soon, err := ledger.ExpiringSoon(ctx, now, 2*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(soon) != 0 {
		t.Errorf("expired request must leave the warning view, got %v", ids(soon))
	}
}

func TestExpiringSoon_DefaultHorizonAndOrdering(t *testing.T) {
	ledger, _ := newLedger(t, requests.WithWarningHorizon(4*time.Hour))
	ctx := context.Background()

	if err := ledger.Create(ctx, pendingRequest("b", baseTime.Add(3*time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Create(ctx, pendingRequest("a", baseTime.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}

	// Horizon <= 0 falls back to the configured default.
	soon, err := ledger.ExpiringSoon(ctx, baseTime, 0)
	if err != nil {
		t.Fatal(err)
	}
	got := ids(soon)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected [a b] ordered by deadline, got %v", got)
	}
}

func TestSummaryByStatus_CoversAllStatuses(t *testing.T) {
	ledger, clk := newLedger(t)
	ctx := context.Background()

	summary, err := ledger.SummaryByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary) != 4 {
		t.Fatalf("expected 4 status buckets, got %d", len(summary))
	}
	for _, s := range requests.AllStatuses {
		if summary[s] != 0 {
			t.Errorf("expected zero count for %s, got %d", s, summary[s])
		}
	}

	if err := ledger.Create(ctx, pendingRequest("r1", baseTime.Add(time.Minute))); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Create(ctx, pendingRequest("r2", baseTime.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Create(ctx, pendingRequest("r3", baseTime.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}
	if _, err := ledger.Accept(ctx, "r2"); err != nil {
		t.Fatal(err)
	}
	if _, err := ledger.SweepExpired(ctx, clk.Advance(30*time.Minute)); err != nil {
		t.Fatal(err)
	}

	summary, err = ledger.SummaryByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Total() != 3 {
		t.Errorf("counts must sum to requests created, got %d", summary.Total())
	}
	if summary[requests.StatusPending] != 1 ||
		summary[requests.StatusAccepted] != 1 ||
		summary[requests.StatusExpired] != 1 ||
		summary[requests.StatusDeclined] != 0 {
		t.Errorf("unexpected summary: %v", summary)
	}
}

// recordingNotifier records terminal transition notifications.
type recordingNotifier struct {
	accepted []string
	declined []string
	expired  []string
	fail     error
}

func (n *recordingNotifier) SendRequestAccepted(ctx context.Context, req *requests.Request) error {
	n.accepted = append(n.accepted, req.ID)
	return n.fail
}

func (n *recordingNotifier) SendRequestDeclined(ctx context.Context, req *requests.Request) error {
	n.declined = append(n.declined, req.ID)
	return n.fail
}

func (n *recordingNotifier) SendRequestExpired(ctx context.Context, req *requests.Request) error {
	n.expired = append(n.expired, req.ID)
	return n.fail
}

func TestNotifications_FanOutOnTerminalTransitions(t *testing.T) {
	notifier := &recordingNotifier{}
	clk := clock.NewFake(baseTime)
	ledger := requests.NewLedger(requests.NewMemoryRepo(), clk, nil, requests.WithNotifier(notifier))
	ctx := context.Background()

	for _, id := range []string{"a", "d", "e"} {
		if err := ledger.Create(ctx, pendingRequest(id, baseTime.Add(time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := ledger.Accept(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := ledger.Decline(ctx, "d"); err != nil {
		t.Fatal(err)
	}
	if _, err := ledger.SweepExpired(ctx, clk.Advance(time.Hour)); err != nil {
		t.Fatal(err)
	}

	if len(notifier.accepted) != 1 || notifier.accepted[0] != "a" {
		t.Errorf("expected accept notification for a, got %v", notifier.accepted)
	}
	if len(notifier.declined) != 1 || notifier.declined[0] != "d" {
		t.Errorf("expected decline notification for d, got %v", notifier.declined)
	}
	if len(notifier.expired) != 1 || notifier.expired[0] != "e" {
		t.Errorf("expected expiry notification for e, got %v", notifier.expired)
	}
}

func TestNotifications_FailureDoesNotBlockTransition(t *testing.T) {
	notifier := &recordingNotifier{fail: errors.New("push gateway down")}
	clk := clock.NewFake(baseTime)
	ledger := requests.NewLedger(requests.NewMemoryRepo(), clk, nil, requests.WithNotifier(notifier))
	ctx := context.Background()

	if err := ledger.Create(ctx, pendingRequest("r1", baseTime.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}

	req, err := ledger.Accept(ctx, "r1")
	if err != nil {
		t.Fatalf("accept must not fail on notification error: %v", err)
	}
	if req.Status != requests.StatusAccepted {
		t.Errorf("expected accepted, got %s", req.Status)
	}
}

func ids(reqs []*requests.Request) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.ID)
	}
	return out
}
