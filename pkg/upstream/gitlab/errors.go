package gitlab

import "errors"

var (
	// ErrNotFound is returned for 404 responses (branch, MR, etc.).
	ErrNotFound = errors.New("gitlab: not found")

	// ErrRequestFailed is returned for transport errors or non-2xx responses.
	ErrRequestFailed = errors.New("gitlab: request failed")

	// ErrDecodeFailed is returned when a response body fails to decode.
	ErrDecodeFailed = errors.New("gitlab: failed to decode response")
)
