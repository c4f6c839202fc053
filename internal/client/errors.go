package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned when the target workflow is absent or archived.
var ErrNotFound = errors.New("not found")

// VersionConflictError is returned when an update named a stale version.
type VersionConflictError struct {
	Current int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict: server is at version %d", e.Current)
}

// APIError is any other non-success response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// IsValidation reports whether the server rejected the request as invalid.
func (e *APIError) IsValidation() bool {
	return e.Status == http.StatusBadRequest
}
