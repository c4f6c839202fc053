package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a workflow is missing or archived.
	ErrNotFound = errors.New("workflow not found")

	// ErrValidation marks a request the store refuses before writing.
	// Wrapped errors carry the detail.
	ErrValidation = errors.New("invalid workflow")
)

// VersionConflictError is returned when an update names a version other
// than the stored one.
type VersionConflictError struct {
	Current int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict: current version is %d", e.Current)
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
