package triage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers both missing records and records owned by another user
	ErrNotFound = errors.New("not found")
	// ErrNoRows is returned when an upload carries no rows at all
	ErrNoRows = errors.New("no rows to process")
	// ErrNoConversations is returned when none of the requested ids resolve
	ErrNoConversations = errors.New("no conversations found")
	// ErrMailAccountNotLinked means the caller has no mailbox to send from
	ErrMailAccountNotLinked = errors.New("mail account not connected; link a mailbox before sending")
	// ErrInvalidInput wraps request validation failures
	ErrInvalidInput = errors.New("invalid input")
)

// RuleError reports a response rule that cannot be compiled
type RuleError struct {
	RuleID string
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("invalid response rule %q: %s", e.RuleID, e.Reason)
}
