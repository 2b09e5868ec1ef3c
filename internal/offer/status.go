// Package offer defines the offer lifecycle state machine.
//
// Valid status graph:
//
//	PENDING ──► ACCEPTED
//	   │
//	   └──────► REJECTED
//
// ACCEPTED and REJECTED are terminal states.
package offer

import "fmt"

// Status values mirror the offer_status enum in PostgreSQL.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Status][]Status{
	StatusPending: {StatusAccepted, StatusRejected},
	// ACCEPTED and REJECTED are terminal: no outgoing transitions
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusPending, StatusAccepted, StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown offer status %q", s)
}

// ParseDecision converts a candidate's choice to its target Status.
// Only the two terminal states are decisions; PENDING is not.
func ParseDecision(s string) (Status, error) {
	st, err := ParseStatus(s)
	if err != nil {
		return "", err
	}
	if !IsTransitionAllowed(StatusPending, st) {
		return "", fmt.Errorf("%q is not a decision", s)
	}
	return st, nil
}

// IsTransitionAllowed returns true when moving from → to is permitted by the
// state machine.
func IsTransitionAllowed(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state: no outgoing transitions
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s Status) bool {
	_, ok := validTransitions[s]
	return !ok
}
