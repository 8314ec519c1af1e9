package github

import "errors"

var (
	// ErrInvalidRepo is returned when a repo string isn't "owner/name".
	ErrInvalidRepo = errors.New("github: repo must be in owner/name form")

	// ErrRequestFailed wraps any go-github API call failure.
	ErrRequestFailed = errors.New("github: request failed")
)
