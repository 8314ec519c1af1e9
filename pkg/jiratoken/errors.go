package jiratoken

import "errors"

var (
	// ErrMissingClientID is returned when no OAuth client id is configured.
	ErrMissingClientID = errors.New("jiratoken: missing client id")

	// ErrMissingClientSecret is returned when no OAuth client secret is configured.
	ErrMissingClientSecret = errors.New("jiratoken: missing client secret")

	// ErrMissingStore is returned when no SecretStore is provided.
	ErrMissingStore = errors.New("jiratoken: missing secret store")

	// ErrNoRefreshToken is returned when neither a persisted nor a
	// bootstrap refresh token is available.
	ErrNoRefreshToken = errors.New("jiratoken: no refresh token available")

	// ErrExchangeFailed is returned when the token exchange request itself fails.
	ErrExchangeFailed = errors.New("jiratoken: token exchange request failed")

	// ErrOAuthRejected is returned when Atlassian rejects the refresh exchange.
	ErrOAuthRejected = errors.New("jiratoken: oauth server rejected refresh")

	// ErrDecodeFailed is returned when the token response body fails to decode.
	ErrDecodeFailed = errors.New("jiratoken: failed to decode token response")

	// ErrPersistFailed is returned when the new token pair could not be persisted.
	ErrPersistFailed = errors.New("jiratoken: failed to persist refreshed tokens")
)
