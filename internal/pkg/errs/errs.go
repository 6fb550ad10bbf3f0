// Package errs defines the error kinds shared by the service and
// repository layers. Handlers map them to HTTP status codes; callers match
// with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a missing order, driver, user or payment.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidTransition marks a status change the lifecycle table forbids.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidState marks an operation precondition violation other than
	// the transition table (e.g. accepting an order that already has a driver).
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict marks a lost race on a conditional update.
	ErrConflict = errors.New("conflict")

	// ErrDriverUnavailable marks an accept attempt by a driver that is not
	// AVAILABLE.
	ErrDriverUnavailable = errors.New("driver unavailable")

	// ErrExternalService wraps store, broker or gateway failures.
	ErrExternalService = errors.New("external service error")
)

func NotFound(kind string, id any) error {
	return fmt.Errorf("%s #%v: %w", kind, id, ErrNotFound)
}

func InvalidTransition(from, to string) error {
	return fmt.Errorf("cannot transition from %s to %s: %w", from, to, ErrInvalidTransition)
}

func InvalidState(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrInvalidState)
}

func Conflict(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrConflict)
}

func External(op string, cause error) error {
	return fmt.Errorf("%s: %v: %w", op, cause, ErrExternalService)
}
