// Package registry manages the subscriber lifecycle.
//
// Valid status graph:
//
//	pending ──► active ──► expired
//	               │
//	               └─────► unsubscribed
//
// expired and unsubscribed are terminal states; rows in pending or a
// terminal state are hard-deleted (purged) after a grace window.
// Re-subscription always starts a brand-new pending row.
package registry

import "fmt"

// Status values mirror the subscriber_status enum in PostgreSQL.
type Status string

const (
	StatusPending      Status = "pending"
	StatusActive       Status = "active"
	StatusExpired      Status = "expired"
	StatusUnsubscribed Status = "unsubscribed"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Status][]Status{
	StatusPending: {StatusActive},
	StatusActive:  {StatusExpired, StatusUnsubscribed},
	// expired and unsubscribed are terminal — no outgoing transitions
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusPending, StatusActive, StatusExpired, StatusUnsubscribed:
		return st, nil
	}
	return "", fmt.Errorf("unknown subscriber status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by the
// state machine.
func IsTransitionAllowed(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state — no outgoing transitions
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true for states that can only leave the table via purge.
func IsTerminal(s Status) bool {
	return s == StatusExpired || s == StatusUnsubscribed
}
