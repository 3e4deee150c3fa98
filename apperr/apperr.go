// Package apperr defines the error categories the HTTP boundary maps to
// status codes. Inner packages return these instead of raw transport errors
// so handlers never have to inspect driver-specific failures.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP boundary.
type Kind int

const (
	// Unauthenticated means the request carried no valid session token.
	Unauthenticated Kind = iota
	// Forbidden means the caller is known but may not touch the resource.
	Forbidden
	// InvalidInput means the request payload failed validation.
	InvalidInput
	// NotFound means the resource does not exist for this tenant.
	NotFound
	// StoreUnavailable means the application-state backing store cannot
	// serve the request right now (e.g. schema not provisioned).
	StoreUnavailable
	// UpstreamQueryFailed means a tenant warehouse query failed.
	UpstreamQueryFailed
)

// Error carries a classification plus a caller-safe message. The wrapped
// cause is for logs only and must never reach a response body.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error with a caller-safe message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a classified error with a formatted caller-safe message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a classified error. The cause is preserved for
// logging but excluded from the caller-safe message.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the classification from an error chain. Unclassified
// errors report UpstreamQueryFailed so they map to a 500-class status.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return UpstreamQueryFailed
}

// Message returns the caller-safe message for an error chain. Unclassified
// errors get a generic message so internals never leak to clients.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Msg
	}
	return "internal error"
}

// HTTPStatus maps a classification to its response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case InvalidInput:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case StoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
