// Package apperr defines the error taxonomy shared by services and handlers.
// Services return these values; the HTTP layer maps them to status codes so
// core code never decides HTTP semantics itself.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("resource not found")
	ErrConflict      = errors.New("resource conflict")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrProviderEmpty = errors.New("provider returned an empty response")
)

// ProviderError reports a failed completion-provider call, carrying the
// provider's status so handlers and logs can distinguish quota, auth, and
// availability failures.
type ProviderError struct {
	Status  int
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider error (status %d): %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("provider error (status %d): %s", e.Status, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderError reports whether err is a ProviderError anywhere in its chain.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
