// Package errors holds the error vocabulary shared by the bot, the LIFF API
// and the LINE token verifier. Callers match with the standard errors.Is and
// errors.As.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// ValidationError rejects one request field. Detail is safe to show the
// client as is.
type ValidationError struct {
	Field  string
	Detail string
}

func NewValidationError(field, detail string) *ValidationError {
	return &ValidationError{Field: field, Detail: detail}
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Detail
}

// Is matches ErrInvalidInput.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// UpstreamError is a failed call to LINE or object storage. A zero Status
// means the service was never reached, which also matches
// ErrUpstreamUnavailable.
type UpstreamError struct {
	Service string
	Status  int
	Err     error
}

func NewUpstreamError(service string, status int, err error) *UpstreamError {
	return &UpstreamError{Service: service, Status: status, Err: err}
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s unreachable: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s returned %d: %v", e.Service, e.Status, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool {
	return e.Status == 0 && target == ErrUpstreamUnavailable
}
