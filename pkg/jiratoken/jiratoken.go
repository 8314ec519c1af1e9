// Package jiratoken manages Jira/Atlassian OAuth access tokens backed by
// a rotating refresh token. Atlassian invalidates the previous refresh
// token on every exchange, so the new one must be durably persisted
// before the in-memory cache is updated — losing a refresh token after
// the cache advances but before persistence would strand the
// integration with no way to mint another access token.
package jiratoken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// expiryBuffer is subtracted from a cached token's expiry so a refresh is
// triggered before the upstream actually rejects the token.
const expiryBuffer = 5 * time.Minute

const tokenURL = "https://auth.atlassian.com/oauth/token"

// SecretStore persists the rotating refresh/access token pair and
// supplies the bootstrap refresh token used on first run. Implementations
// back this with a Kubernetes Secret (see pkg/orchestrator); the manager
// itself has no cluster dependency, which keeps it unit-testable.
type SecretStore interface {
	// ReadRefreshToken returns the current refresh token, or
	// ErrNoRefreshToken if none has ever been persisted and no
	// bootstrap token is configured.
	ReadRefreshToken(ctx context.Context) (string, error)

	// PersistTokens durably stores the latest access/refresh token pair.
	// Must succeed before the caller updates its in-memory cache.
	PersistTokens(ctx context.Context, accessToken, refreshToken string) error
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// Manager mints and refreshes Jira access tokens.
type Manager struct {
	store        SecretStore
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string

	mu     sync.Mutex
	cached *cachedToken
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient overrides the client used for the token exchange.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

// WithTokenURL overrides the Atlassian token endpoint. Intended for tests.
func WithTokenURL(u string) Option {
	return func(m *Manager) { m.tokenURL = u }
}

// New creates a Manager. clientID and clientSecret are the Atlassian
// OAuth app credentials; store persists the rotating refresh token.
func New(store SecretStore, clientID, clientSecret string, opts ...Option) (*Manager, error) {
	if clientID == "" {
		return nil, ErrMissingClientID
	}
	if clientSecret == "" {
		return nil, ErrMissingClientSecret
	}
	if store == nil {
		return nil, ErrMissingStore
	}

	m := &Manager{
		store:        store,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   http.DefaultClient,
		tokenURL:     tokenURL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// AccessToken returns a valid access token, refreshing if the cached
// token is absent or within expiryBuffer of expiring.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil && time.Now().Add(expiryBuffer).Before(m.cached.expiresAt) {
		return m.cached.token, nil
	}
	return m.refreshLocked(ctx)
}

// AccessTokenWithExpiry returns a valid access token plus how long it
// remains valid for, used by the operator token-check probe.
func (m *Manager) AccessTokenWithExpiry(ctx context.Context) (string, time.Duration, error) {
	token, err := m.AccessToken(ctx)
	if err != nil {
		return "", 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached == nil {
		return token, 0, nil
	}
	return token, time.Until(m.cached.expiresAt), nil
}

// ForceRefresh discards the cached token and refreshes immediately. Call
// this when an upstream request returns 401 despite a cached token that
// looked valid.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cached = nil
	return m.refreshLocked(ctx)
}

// refreshLocked must be called with m.mu held.
func (m *Manager) refreshLocked(ctx context.Context) (string, error) {
	refreshToken, err := m.store.ReadRefreshToken(ctx)
	if err != nil {
		return "", err
	}

	access, newRefresh, expiresIn, err := m.exchange(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	// Persist before updating the cache: if the process dies between
	// these two steps, the next start reads the durable (newer) token
	// rather than an orphaned one the cache alone would have remembered.
	if err := m.store.PersistTokens(ctx, access, newRefresh); err != nil {
		return "", errors.Join(ErrPersistFailed, err)
	}

	m.cached = &cachedToken{
		token:     access,
		expiresAt: time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
	return access, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type oauthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (m *Manager) exchange(ctx context.Context, refreshToken string) (access, newRefresh string, expiresIn int64, err error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {m.clientID},
		"client_secret": {m.clientSecret},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", 0, errors.Join(ErrExchangeFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", "", 0, errors.Join(ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	var body tokenResponse
	dec := json.NewDecoder(resp.Body)

	if resp.StatusCode != http.StatusOK {
		var oauthErr oauthErrorResponse
		_ = dec.Decode(&oauthErr)
		return "", "", 0, fmt.Errorf("%w: %s: %s", ErrOAuthRejected, oauthErr.Error, oauthErr.ErrorDescription)
	}

	if err := dec.Decode(&body); err != nil {
		return "", "", 0, errors.Join(ErrDecodeFailed, err)
	}

	return body.AccessToken, body.RefreshToken, body.ExpiresIn, nil
}
