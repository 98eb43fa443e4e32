package services

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the service layer. Handlers map these to
// HTTP status codes.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates the caller is not allowed to perform the action
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidTransition indicates a disallowed status change
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConflict indicates the operation conflicts with current state
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates invalid input
	ErrValidation = errors.New("validation failed")
)

// NotFoundError wraps ErrNotFound with resource context
func NotFoundError(resource, id string) error {
	return fmt.Errorf("%s %s: %w", resource, id, ErrNotFound)
}

// TransitionError wraps ErrInvalidTransition with the attempted transition
func TransitionError(from, to string) error {
	return fmt.Errorf("cannot transition from %s to %s: %w", from, to, ErrInvalidTransition)
}
