package domain

import (
	"fmt"
	"time"
)

// UnknownServerError is returned when a call names an upstream the registry
// has never heard of. Available carries the configured names for the
// error's data payload.
type UnknownServerError struct {
	Server    string
	Available []string
}

func (e *UnknownServerError) Error() string {
	return fmt.Sprintf("unknown server %q (available: %v)", e.Server, e.Available)
}

// BreakerOpenError is returned when the circuit guarding an upstream
// rejects the call without invoking the adapter.
type BreakerOpenError struct {
	Server     string
	RetryAfter time.Duration
}

func (e *BreakerOpenError) Error() string {
	return fmt.Sprintf("circuit open for %s, retry in %v", e.Server, e.RetryAfter)
}

// TransportError is an adapter-level failure: timeout, crashed subprocess,
// unparseable response, or non-2xx HTTP. These are the only failures the
// breaker counts.
type TransportError struct {
	Err     error
	Server  string
	Op      string
	Timeout bool
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s timed out for %s: %v", e.Op, e.Server, e.Err)
	}
	return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Server, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RestartExhaustedError marks a stdio upstream whose subprocess died more
// times than its restart cap allows. The condition is permanent until an
// explicit restart resets the counter.
type RestartExhaustedError struct {
	Server   string
	Restarts int
}

func (e *RestartExhaustedError) Error() string {
	return fmt.Sprintf("%s exceeded %d restarts, not respawning", e.Server, e.Restarts)
}

// SessionNotFoundError is returned for message posts against a session id
// that never existed or already closed.
type SessionNotFoundError struct {
	ID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("unknown session %q", e.ID)
}

// SessionLimitError is returned when opening a stream would exceed the
// configured session cap.
type SessionLimitError struct {
	Limit int
}

func (e *SessionLimitError) Error() string {
	return fmt.Sprintf("session limit of %d reached", e.Limit)
}

type ConfigValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s=%v: %s", e.Field, e.Value, e.Reason)
}

func NewTransportError(server, op string, timeout bool, err error) *TransportError {
	return &TransportError{
		Server:  server,
		Op:      op,
		Timeout: timeout,
		Err:     err,
	}
}
