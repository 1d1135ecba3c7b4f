/*
errors.go - Error types for the action-item lifecycle

ERROR CATEGORIES:
  1. Not found      - item or study does not exist
  2. Validation     - malformed input (title length, unknown enum, ...)
  3. Transition     - move not allowed by the state machine
  4. Conflict       - uniqueness violated or a concurrent write won

USAGE:
  The API layer maps categories to status codes with errors.Is:

    switch {
    case actionitem.IsNotFound(err):    // 404
    case actionitem.IsClientError(err): // 400
    case actionitem.IsConflict(err):    // 409
    }
*/
package actionitem

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrNotFound      = errors.New("action item not found")
	ErrStudyNotFound = errors.New("study not found")

	// ErrValidation wraps every input validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when the state machine forbids a move.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConflict is returned when a write collides with existing state:
	// a duplicate id or a stale optimistic update.
	ErrConflict = errors.New("conflict")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InvalidTransitionError names the rejected move.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrStudyNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidTransition)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
