// Package sentry is a thin HTTPS/JSON client for the Sentry Web API: issue
// and event lookups for the sentry-fix job path, and organization listing
// for the operator token-check probe. Requests retry transient network
// failures with exponential backoff and are wrapped in a circuit breaker
// so a sustained Sentry outage fails fast instead of stalling webhook
// handler goroutines behind repeated timeouts.
package sentry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/globalcomix/claude-agent/internal/hmacsig"
)

const (
	maxRetries     = 3
	initialBackoff = time.Second
	requestTimeout = 30 * time.Second
)

// Client talks to the Sentry API.
type Client struct {
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// New creates a Client authenticated with a Sentry auth token. It builds
// its own timeout around httpClient's transport rather than mutating
// httpClient directly, since callers share one *http.Client across every
// upstream package and a Sentry-specific deadline shouldn't leak into
// GitLab/GitHub/Jira calls made with the same client.
func New(token string, httpClient *http.Client) *Client {
	transport := http.DefaultTransport
	if httpClient != nil {
		transport = httpClient.Transport
	}
	timed := &http.Client{Transport: transport, Timeout: requestTimeout}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sentry-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{token: token, httpClient: timed, breaker: cb}
}

// VerifySignature checks the Sentry-Hook-Signature header against body.
func VerifySignature(secret string, body []byte, signature string) bool {
	return hmacsig.Verify(secret, body, signature)
}

// Organization is the subset of a Sentry organization this dispatcher uses.
type Organization struct {
	Slug string `json:"slug"`
}

// Issue is the subset of a Sentry issue object this dispatcher uses, fetched
// when an operator manually enqueues a fix job by issue id rather than via
// a webhook delivery that already carries the issue body.
type Issue struct {
	ID            string `json:"id"`
	ShortID       string `json:"shortId"`
	Title         string `json:"title"`
	Culprit       string `json:"culprit"`
	Platform      string `json:"platform"`
	IssueType     string `json:"type,omitempty"`
	IssueCategory string `json:"issueCategory,omitempty"`
	WebURL        string `json:"permalink,omitempty"`
	Project       struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
	} `json:"project"`
}

// Event is the subset of a Sentry event object this dispatcher uses to
// build a sentry-fix job's stacktrace appendix.
type Event struct {
	Entries []EventEntry `json:"entries"`
	Tags    []EventTag   `json:"tags"`
	Message string       `json:"message"`
	Title   string       `json:"title"`
}

// EventEntry is one entry of a Sentry event's "entries" list. Only
// "exception" entries carry stacktrace data.
type EventEntry struct {
	Type string `json:"type"`
	Data struct {
		Values []EventException `json:"values"`
	} `json:"data"`
}

// EventException is one exception value within an "exception" entry.
type EventException struct {
	Type       string `json:"type"`
	Value      string `json:"value"`
	Stacktrace struct {
		Frames []EventFrame `json:"frames"`
	} `json:"stacktrace"`
}

// EventFrame is one stack frame.
type EventFrame struct {
	Filename string          `json:"filename"`
	Function string          `json:"function"`
	LineNo   int             `json:"lineNo"`
	Context  []EventCodeLine `json:"context"`
}

// EventCodeLine is a (line number, source line) pair as Sentry encodes
// frame context: a 2-element JSON array rather than an object.
type EventCodeLine struct {
	LineNo int
	Code   string
}

// UnmarshalJSON decodes a ["lineno", "code"] tuple.
func (l *EventCodeLine) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[0], &l.LineNo); err != nil {
		return err
	}
	return json.Unmarshal(tuple[1], &l.Code)
}

// EventTag is a single key/value tag attached to an event.
type EventTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FetchIssue fetches a single issue by its numeric id or short id.
func (c *Client) FetchIssue(ctx context.Context, issueID string) (*Issue, error) {
	var issue Issue
	if err := c.getJSON(ctx, "https://sentry.io/api/0/issues/"+issueID+"/", &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// FetchLatestEvent fetches the most recent event recorded against an
// issue, used to populate a sentry-fix job's stacktrace appendix with the
// actual exception rather than only the issue's summary metadata.
func (c *Client) FetchLatestEvent(ctx context.Context, issueID string) (*Event, error) {
	var event Event
	if err := c.getJSON(ctx, "https://sentry.io/api/0/issues/"+issueID+"/events/latest/", &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// ListOrganizations fetches the organizations the configured token can see,
// used by the operator token-check probe.
func (c *Client) ListOrganizations(ctx context.Context) ([]Organization, error) {
	var orgs []Organization
	if err := c.getJSON(ctx, "https://sentry.io/api/0/organizations/", &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.doWithRetry(req)
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ErrRequestFailed
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Join(ErrDecodeFailed, err)
	}
	return nil
}

// doWithRetry sends req through the circuit breaker, retrying up to
// maxRetries times with exponential backoff (1s, 2s, 4s) when the
// failure looks transient: a timeout or connection-level error (any dial,
// read, or write failure, DNS lookup failures included) rather than a
// permanent one like TLS verification failure.
func (c *Client) doWithRetry(req *http.Request) (*http.Response, error) {
	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err := c.breaker.Execute(func() (any, error) {
			return c.httpClient.Do(req)
		})
		if err == nil {
			return result.(*http.Response), nil
		}
		lastErr = err

		if attempt == maxRetries || !isRetryable(err) {
			return nil, err
		}

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

// isRetryable reports whether err looks like a transient timeout or
// connection failure worth retrying, as opposed to a permanent error
// like TLS verification failure. A DNS resolution failure surfaces as a
// dial error and is retried.
func isRetryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial" || opErr.Op == "read" || opErr.Op == "write"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset")
}

// FormatStacktrace renders an event's exception stacktrace(s) as Markdown,
// falling back to the event's plain message or title when it carries no
// exception entry.
func FormatStacktrace(event *Event) string {
	var b strings.Builder

	for _, entry := range event.Entries {
		if entry.Type != "exception" {
			continue
		}
		for _, exc := range entry.Data.Values {
			excType := exc.Type
			if excType == "" {
				excType = "Exception"
			}
			fmt.Fprintf(&b, "## %s : %s\n\n", excType, exc.Value)

			frames := exc.Stacktrace.Frames
			if len(frames) == 0 {
				continue
			}
			b.WriteString("### Stacktrace (most recent last)\n\n")
			for _, frame := range frames {
				filename := frame.Filename
				if filename == "" {
					filename = "?"
				}
				function := frame.Function
				if function == "" {
					function = "?"
				}
				fmt.Fprintf(&b, "  %s in %s:%d\n", function, filename, frame.LineNo)

				for _, line := range frame.Context {
					marker := " "
					if line.LineNo == frame.LineNo {
						marker = ">"
					}
					fmt.Fprintf(&b, "    %s %4d | %s\n", marker, line.LineNo, line.Code)
				}
				b.WriteByte('\n')
			}
		}
	}

	if b.Len() == 0 {
		switch {
		case event.Message != "":
			fmt.Fprintf(&b, "## Message\n\n%s\n", event.Message)
		case event.Title != "":
			fmt.Fprintf(&b, "## Error\n\n%s\n", event.Title)
		}
	}

	return b.String()
}

// ExtractTags returns an event's tags.
func ExtractTags(event *Event) []EventTag {
	return event.Tags
}
