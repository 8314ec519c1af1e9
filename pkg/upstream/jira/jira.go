// Package jira provides the signature-verification and token-probe
// surface for Jira/Atlassian webhooks. Event parsing, mention detection,
// and Atlassian Document Format text extraction live in pkg/normalize,
// since they are pure functions over an already-decoded event rather than
// API calls.
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/globalcomix/claude-agent/internal/hmacsig"
	"github.com/globalcomix/claude-agent/pkg/jiratoken"
)

// VerifySignature checks a Jira webhook signature. Jira sends this under
// either X-Hub-Signature or X-Atlassian-Webhook-Signature depending on
// the integration type; the caller is responsible for picking whichever
// header is present.
func VerifySignature(secret string, body []byte, signature string) bool {
	return hmacsig.Verify(secret, body, signature)
}

// CheckToken asks the token manager for an access token. While the cached
// token is still valid it is returned without contacting Jira; otherwise a
// refresh runs, which confirms the OAuth credentials and refresh token.
func CheckToken(ctx context.Context, manager *jiratoken.Manager) error {
	if manager == nil {
		return ErrNotConfigured
	}
	_, err := manager.AccessToken(ctx)
	return err
}

// Issue is the JSON shape this dispatcher reads from the Jira REST API v3
// issue-fetch endpoint, used when an operator manually enqueues a fix job
// by issue key rather than via a webhook delivery that already carries the
// issue body.
type Issue struct {
	ID      string `json:"id"`
	Key     string `json:"key"`
	SelfURL string `json:"self"`
	Fields  struct {
		Summary     string          `json:"summary"`
		Description json.RawMessage `json:"description,omitempty"`
		IssueType   *struct {
			Name string `json:"name"`
		} `json:"issuetype,omitempty"`
		Priority *struct {
			Name string `json:"name"`
		} `json:"priority,omitempty"`
		Status *struct {
			Name string `json:"name"`
		} `json:"status,omitempty"`
		Labels []string `json:"labels,omitempty"`
	} `json:"fields"`
}

// Client fetches issues from the Jira REST API v3 using tokens minted by a
// jiratoken.Manager.
type Client struct {
	baseURL    string
	manager    *jiratoken.Manager
	httpClient *http.Client
}

// New creates a Client. baseURL is the Jira Cloud site root, e.g.
// "https://globalcomix.atlassian.net".
func New(baseURL string, manager *jiratoken.Manager, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		manager:    manager,
		httpClient: httpClient,
	}
}

// FetchIssue fetches a single issue by its key (e.g. "PRJ-123").
func (c *Client) FetchIssue(ctx context.Context, key string) (*Issue, error) {
	token, err := c.manager.AccessToken(ctx)
	if err != nil {
		return nil, errors.Join(ErrRequestFailed, err)
	}

	endpoint := c.baseURL + "/rest/api/3/issue/" + key
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Join(ErrRequestFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Join(ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, ErrRequestFailed
	}

	var issue Issue
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		return nil, errors.Join(ErrDecodeFailed, err)
	}
	return &issue, nil
}
