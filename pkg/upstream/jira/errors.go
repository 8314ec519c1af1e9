package jira

import "errors"

var (
	// ErrNotConfigured is returned when no token manager is available.
	ErrNotConfigured = errors.New("jira: token manager not configured")

	// ErrRequestFailed wraps transport errors or non-2xx responses.
	ErrRequestFailed = errors.New("jira: request failed")

	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("jira: not found")

	// ErrDecodeFailed is returned when a response body fails to decode.
	ErrDecodeFailed = errors.New("jira: failed to decode response")
)
