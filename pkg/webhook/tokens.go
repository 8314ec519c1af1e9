package webhook

import (
	"context"
	"net/http"
)

// tokenStatus mirrors the original's per-platform token health probe used
// by the operator CLI's doctor command.
type tokenStatus struct {
	Configured bool   `json:"configured"`
	Valid      bool   `json:"valid"`
	Info       string `json:"info,omitempty"`
	Error      string `json:"error,omitempty"`
}

func notConfigured() tokenStatus {
	return tokenStatus{Configured: false}
}

func validToken(info string) tokenStatus {
	return tokenStatus{Configured: true, Valid: true, Info: info}
}

func invalidToken(err error) tokenStatus {
	return tokenStatus{Configured: true, Valid: false, Error: err.Error()}
}

// handleCheckTokens probes every configured upstream credential and
// reports whether each still authenticates, so operators can catch an
// expired token before it silently starts failing webhook deliveries.
func (d *Deps) handleCheckTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result := map[string]tokenStatus{
		"gitlab": d.checkGitLabToken(ctx),
		"github": d.checkGitHubToken(ctx),
		"sentry": d.checkSentryToken(ctx),
		"jira":   d.checkJiraToken(ctx),
		"claude": d.checkClaudeToken(),
	}

	writeJSON(w, http.StatusOK, result)
}

func (d *Deps) checkGitLabToken(ctx context.Context) tokenStatus {
	if d.GitLab == nil {
		return notConfigured()
	}
	if err := d.GitLab.CheckToken(ctx); err != nil {
		return invalidToken(err)
	}
	return validToken("token accepted")
}

func (d *Deps) checkGitHubToken(ctx context.Context) tokenStatus {
	if d.GitHub == nil {
		return notConfigured()
	}
	if err := d.GitHub.CheckToken(ctx); err != nil {
		return invalidToken(err)
	}
	return validToken("token accepted")
}

func (d *Deps) checkSentryToken(ctx context.Context) tokenStatus {
	if d.Sentry == nil {
		return notConfigured()
	}
	orgs, err := d.Sentry.ListOrganizations(ctx)
	if err != nil {
		return invalidToken(err)
	}
	if len(orgs) == 0 {
		return validToken("token accepted, no organizations visible")
	}
	return validToken(orgs[0].Slug)
}

func (d *Deps) checkJiraToken(ctx context.Context) tokenStatus {
	if d.JiraTokenManager == nil {
		return notConfigured()
	}
	_, ttl, err := d.JiraTokenManager.AccessTokenWithExpiry(ctx)
	if err != nil {
		return invalidToken(err)
	}
	return validToken("expires in " + ttl.Round(0).String())
}

// checkClaudeToken only checks the credential's shape, not its validity:
// the control plane never holds the worker's Anthropic API key, which is
// injected into the Kubernetes Job from its own Secret mount rather than
// the dispatcher's environment. Real validation happens when a worker
// actually starts the agent process.
func (d *Deps) checkClaudeToken() tokenStatus {
	return tokenStatus{
		Configured: false,
		Info:       "not held by the control plane; verified by the worker at job start",
	}
}
