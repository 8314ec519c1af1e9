package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/globalcomix/claude-agent/internal/apperr"
	"github.com/globalcomix/claude-agent/pkg/normalize"
	"github.com/globalcomix/claude-agent/pkg/upstream/sentry"
)

// handleSentryWebhook handles Sentry issue alert deliveries.
func (d *Deps) handleSentryWebhook(w http.ResponseWriter, r *http.Request) {
	if d.Config.SentryWebhookSecret == "" {
		writeError(w, apperr.Store("Sentry webhook not configured", nil))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperr.BadRequest("failed to read request body"))
		return
	}

	if !sentry.VerifySignature(d.Config.SentryWebhookSecret, body, r.Header.Get("Sentry-Hook-Signature")) {
		d.Logger.WarnContext(r.Context(), "invalid sentry webhook signature")
		writeError(w, apperr.Unauthorized("invalid webhook signature"))
		return
	}

	var event normalize.SentryWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, apperr.BadRequest("invalid JSON: "+err.Error()))
		return
	}

	d.Logger.InfoContext(r.Context(), "received sentry webhook",
		"action", event.Action,
		"issue_id", event.Data.Issue.ShortID,
		"project", event.Data.Issue.Project.Slug)

	if !event.ShouldFix() {
		ignored(w, "Event does not require fixing")
		return
	}

	mapping, ok := d.Config.FindSentryMapping(event.Data.Issue.Project.Slug)
	if !ok {
		d.Logger.WarnContext(r.Context(), "no project mapping for sentry project", "project", event.Data.Issue.Project.Slug)
		writeError(w, apperr.BadRequest("No project mapping for Sentry project: "+event.Data.Issue.Project.Slug))
		return
	}
	if d.Config.SentryOrganization == "" {
		writeError(w, apperr.Store("SENTRY_ORGANIZATION not configured", nil))
		return
	}

	branchName := "sentry-fix/" + strings.ToLower(event.Data.Issue.ShortID)
	exists, err := d.branchExistsOnPlatform(r.Context(), mapping.VCSPlatform, mapping.VCSProject, branchName)
	if err != nil {
		writeError(w, err)
		return
	}
	if exists {
		d.Logger.InfoContext(r.Context(), "fix branch already exists, skipping", "branch", branchName, "issue", event.Data.Issue.ShortID)
		skipped(w, "Branch "+branchName+" already exists")
		return
	}

	env := normalize.BuildSentryFix(&event, d.Config.SentryOrganization, mapping)
	jobID, err := d.Queue.Push(r.Context(), env)
	if err != nil {
		writeError(w, apperr.Store("failed to enqueue sentry fix job", err))
		return
	}
	d.Logger.InfoContext(r.Context(), "queued sentry fix job", "job_id", jobID, "issue", event.Data.Issue.ShortID)
	queued(w, jobID)
}
