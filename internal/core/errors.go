package core

import (
	"errors"
	"fmt"
)

// ErrNotLinked is returned when a sync is requested for an account with
// no provider credential. Callers surface it to the user; it is never
// retried.
var ErrNotLinked = errors.New("account is not linked to a provider")

// ErrNotFound is the store-level sentinel for missing rows.
var ErrNotFound = errors.New("not found")

// InvariantViolationError reports a broken storage invariant, e.g. more
// than one classification row for a transaction. It indicates a bug and
// is never silently repaired.
type InvariantViolationError struct {
	Invariant string
	Detail    string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violated: %s: %s", e.Invariant, e.Detail)
}
