package shared

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure. The same error covers
	// unknown accounts and wrong passwords so callers cannot enumerate
	// accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionExpired indicates the session passed its expiry instant.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionRefreshFailed indicates the identity provider rejected a
	// refresh token; the caller must treat the user as signed out.
	ErrSessionRefreshFailed = errors.New("session refresh failed")
	// ErrProfileNotFound indicates the profile store has no record for an
	// authenticated user.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrUpstreamUnavailable indicates an identity-provider or
	// profile-store I/O failure, including timeouts. Retryable.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// ValidationError aggregates human-readable validation messages so a
// single round trip can report every problem with the input.
type ValidationError struct {
	Messages []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil || len(e.Messages) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// NewValidationError builds a ValidationError from messages.
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Messages: messages}
}

// AsValidationError unwraps err into a *ValidationError when possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
