// Package apperr maps the dispatcher's internal error kinds to HTTP status
// codes at the webhook and operator API boundary, the same kind-to-status
// shape middlewares/errors.go uses for PanicError/TimeoutError.
package apperr

import (
	"errors"
	"net/http"
)

// Kind discriminates the handled error classes at the HTTP boundary.
type Kind int

const (
	// KindUnauthorized covers a bad webhook token, bad HMAC, or bad bearer key.
	KindUnauthorized Kind = iota
	// KindBadRequest covers malformed JSON, an absent required field, or an
	// unknown project mapping.
	KindBadRequest
	// KindUpstream covers a non-2xx response from an upstream API.
	KindUpstream
	// KindStore covers a queue or secret-store failure.
	KindStore
)

// Error is a structured error carrying an HTTP-mappable Kind alongside a
// message safe to return to the caller.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Unauthorized builds a KindUnauthorized error.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// BadRequest builds a KindBadRequest error.
func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

// Upstream builds a KindUpstream error wrapping the failing call.
func Upstream(message string, cause error) *Error {
	return &Error{Kind: KindUpstream, Message: message, cause: cause}
}

// Store builds a KindStore error wrapping the failing call.
func Store(message string, cause error) *Error {
	return &Error{Kind: KindStore, Message: message, cause: cause}
}

// StatusCode returns the HTTP status code for err, defaulting to 500 for
// any error that isn't an *Error (or doesn't wrap one).
func StatusCode(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUpstream, KindStore:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ClientMessage returns the message safe to surface to an HTTP caller: the
// error's own message for client-facing kinds, a generic message otherwise
// (upstream/store failure detail stays in the logs, not the response body).
func ClientMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal server error"
	}
	switch e.Kind {
	case KindUnauthorized, KindBadRequest:
		return e.Message
	default:
		return "internal server error"
	}
}
