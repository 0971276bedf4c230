// Package errors provides domain-specific error types and sentinel errors
// shared by the calendar, rate limiting, routing and provider packages.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrNotParseable indicates user arguments could not be turned into a request.
	ErrNotParseable = errors.New("arguments not parseable")

	// ErrRateLimited indicates the sender is currently flooding or banned.
	ErrRateLimited = errors.New("rate limited")

	// ErrQuotaExceeded indicates a per-user quota (e.g. AI messages) is used up.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrNotFound indicates a requested resource (city, date, price item) was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrUpstream indicates an external provider failed.
	ErrUpstream = errors.New("upstream failure")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsNotParseable reports whether err is or wraps ErrNotParseable.
func IsNotParseable(err error) bool { return errors.Is(err, ErrNotParseable) }

// IsRateLimited reports whether err is or wraps ErrRateLimited.
func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

// IsQuotaExceeded reports whether err is or wraps ErrQuotaExceeded.
func IsQuotaExceeded(err error) bool { return errors.Is(err, ErrQuotaExceeded) }

// IsUpstream reports whether err is or wraps ErrUpstream.
func IsUpstream(err error) bool { return errors.Is(err, ErrUpstream) }

// UpstreamError describes a failed call to an external provider.
// It matches ErrUpstream with errors.Is as well as the underlying cause.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream error (provider=%s, status=%d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream error (provider=%s): %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	return []error{ErrUpstream, e.Err}
}

// NewUpstreamError creates a new upstream error.
func NewUpstreamError(provider string, statusCode int, err error) *UpstreamError {
	return &UpstreamError{
		Provider:   provider,
		StatusCode: statusCode,
		Err:        err,
	}
}
