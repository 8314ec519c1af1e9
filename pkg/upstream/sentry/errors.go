package sentry

import "errors"

var (
	// ErrRequestFailed wraps transport errors or non-2xx responses.
	ErrRequestFailed = errors.New("sentry: request failed")

	// ErrDecodeFailed is returned when a response body fails to decode.
	ErrDecodeFailed = errors.New("sentry: failed to decode response")
)
