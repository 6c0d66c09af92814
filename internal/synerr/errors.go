// Package synerr defines the structured error kinds shared across the
// tri-memory engine. Every externally visible failure wraps one of these
// kinds so callers can distinguish retryable conditions from permanent ones
// without parsing message text.
package synerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure the way the tool surface reports it.
type Kind string

const (
	InvalidInput     Kind = "invalid_input"
	NotFound         Kind = "not_found"
	Conflict         Kind = "conflict"
	Dedup            Kind = "dedup"
	ExternalTimeout  Kind = "external_timeout"
	ExternalFailure  Kind = "external_failure"
	Corruption       Kind = "corruption"
	Exhausted        Kind = "exhausted"
)

// retryable reports whether a Kind is safe to retry without operator
// intervention.
var retryable = map[Kind]bool{
	InvalidInput:    false,
	NotFound:        false,
	Conflict:        false,
	Dedup:           false,
	ExternalTimeout: true,
	ExternalFailure: false,
	Corruption:      false,
	Exhausted:       true,
}

// Error is the structured error returned across the tool surface. It never
// carries a stack trace; TraceID is the only correlation handle exposed to
// callers.
type Error struct {
	Kind      Kind
	Message   string
	TraceID   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a structured error of the given kind.
func New(kind Kind, traceID, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), TraceID: traceID, Retryable: retryable[kind]}
}

// Wrap builds a structured error of the given kind around an underlying
// cause, preserving it for errors.Unwrap/errors.Is chains.
func Wrap(kind Kind, traceID string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), TraceID: traceID, Retryable: retryable[kind], Err: err}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to ExternalFailure for
// errors that never passed through Wrap/New (i.e. bugs in internal code).
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ExternalFailure
}
