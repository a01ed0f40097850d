package types

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned for malformed input; nothing was changed.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is a validation error for a status edge the
	// state machine does not allow.
	ErrInvalidTransition = fmt.Errorf("%w: status transition not allowed", ErrValidation)

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a record changed underneath a guarded write.
	ErrConflict = errors.New("conflict")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with the kind and id of the missing record.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
