package offer

import (
	"errors"
	"fmt"
)

// ─── Sentinel errors ─────────────────────────────────────────────────────────

// ErrNotFound is returned when no offer carries the given token.
var ErrNotFound = errors.New("offer not found")

// ErrAlreadyProcessedOrInvalid is returned when a conditional transition
// matched no row: the token never existed, was consumed, or the offer is
// already resolved.
var ErrAlreadyProcessedOrInvalid = errors.New("offer already processed or token invalid")

// ErrUnauthorized is returned when an HR-only operation has no actor.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNotificationUnavailable is returned by Resend when the letter could
// not be handed to the delivery pipeline.
var ErrNotificationUnavailable = errors.New("offer notification unavailable")

// ValidationError wraps a user-facing validation message.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// PersistenceError reports that the store could not complete an operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsInvalidLink reports whether err should be shown to a candidate as a dead
// link. Not-found and already-processed look the same to the caller.
func IsInvalidLink(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyProcessedOrInvalid)
}
