// Package match holds the shared vocabulary of the coordination core:
// actor roles and the error taxonomy surfaced by the engine packages.
package match

import "errors"

// Role identifies which side of a match an actor is on.
// The engine treats roles as opaque keys; the constants below are the
// values the mobile clients send today.
type Role string

const (
	RoleGuardian Role = "guardian"
	RoleTutor    Role = "tutor"
)

// Errors returned by the engine packages. All mutating operations are
// all-or-nothing: when one of these is returned, no state was changed.
// Callers match with errors.Is.
var (
	// ErrDuplicateID is returned when creating a record whose id already exists.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrNotFound is returned when operating on an unknown id or key.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when a lifecycle transition is
	// attempted on a request that is not pending. Re-applying accept or
	// decline is an error on purpose, so callers can detect double
	// processing instead of silently absorbing it.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrPercentRange is returned when an onboarding completion percent
	// is outside [0, 100].
	ErrPercentRange = errors.New("percent out of range")
)

// ParseRole validates a wire-level role value.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleGuardian, RoleTutor:
		return Role(s), true
	}
	return "", false
}

// Key is a composite role + identity lookup key. Equality covers both
// fields; role-scoped stores must never collide across roles that share
// an identity value.
type Key struct {
	Role Role
	ID   string
}
