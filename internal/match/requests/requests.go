// Package requests implements the matching-request ledger: the
// authoritative state machine for proposals between a guardian and a
// provider, plus the time-relative projections derived from it.
package requests

import (
	"time"

	"github.com/tutorloop/matchflow-go/internal/match"
)

// Status is the lifecycle state of a matching request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
	StatusExpired  Status = "expired"
)

// AllStatuses lists every status value, in lifecycle order. Status
// summaries must cover exactly this set, including zero counts.
var AllStatuses = []Status{StatusPending, StatusAccepted, StatusDeclined, StatusExpired}

// Terminal reports whether the status is final. Requests never leave a
// terminal status.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusDeclined || s == StatusExpired
}

// Valid reports whether s is one of the four known status values.
func (s Status) Valid() bool {
	return s == StatusPending || s.Terminal()
}

// Request is a time-bounded matching proposal between two parties.
// Requester and target identities are opaque to the ledger; only the
// status and the response deadline drive its decisions.
type Request struct {
	ID            string     `json:"id"`
	RequesterID   string     `json:"requester_id"`
	TargetID      string     `json:"target_id"`
	TargetRole    match.Role `json:"target_role"`
	Subject       string     `json:"subject,omitempty"`
	Status        Status     `json:"status"`
	ResponseDueAt time.Time  `json:"response_due_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// RespondedAt is set once, when the request reaches a terminal
	// status (including expiry).
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	c := *r
	if r.RespondedAt != nil {
		t := *r.RespondedAt
		c.RespondedAt = &t
	}
	return &c
}

// Summary is a count of requests per status. All four statuses are
// always present.
type Summary map[Status]int

// Total returns the number of requests covered by the summary.
func (s Summary) Total() int {
	var n int
	for _, c := range s {
		n += c
	}
	return n
}
