// Package httplog wraps an http.RoundTripper to log outbound requests to
// GitLab, GitHub, Sentry, and Jira, the same context-decorator idiom
// pkg/logger applies to slog.Handler but for the transport layer instead.
package httplog

import (
	"log/slog"
	"net/http"
	"time"
)

// Transport logs method, URL, status, and duration for every request it
// carries. It never logs headers or bodies: every one of this
// dispatcher's upstream calls carries a bearer token or HMAC secret in a
// header, and request/response bodies can carry webhook payload content
// that shouldn't end up duplicated into log storage.
type Transport struct {
	next   http.RoundTripper
	logger *slog.Logger
}

// NewTransport wraps next (http.DefaultTransport if nil) with request
// logging at logger.
func NewTransport(next http.RoundTripper, logger *slog.Logger) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{next: next, logger: logger}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	elapsed := time.Since(start)

	if err != nil {
		t.logger.WarnContext(req.Context(), "upstream request failed",
			"method", req.Method, "host", req.URL.Host, "path", req.URL.Path,
			"elapsed_ms", elapsed.Milliseconds(), "error", err)
		return resp, err
	}

	t.logger.DebugContext(req.Context(), "upstream request",
		"method", req.Method, "host", req.URL.Host, "path", req.URL.Path,
		"status", resp.StatusCode, "elapsed_ms", elapsed.Milliseconds())
	return resp, nil
}

// Client builds an *http.Client whose Transport logs through logger.
func Client(logger *slog.Logger) *http.Client {
	return &http.Client{Transport: NewTransport(nil, logger)}
}
