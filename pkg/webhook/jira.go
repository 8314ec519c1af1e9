package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/globalcomix/claude-agent/internal/apperr"
	"github.com/globalcomix/claude-agent/pkg/normalize"
	"github.com/globalcomix/claude-agent/pkg/upstream/jira"
)

// handleJiraWebhook handles Jira Cloud comment-event deliveries. Signature
// verification only runs when a webhook secret is configured — Jira's
// generic webhook feature doesn't sign requests by default.
func (d *Deps) handleJiraWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperr.BadRequest("failed to read request body"))
		return
	}

	if d.Config.JiraWebhookSecret != "" {
		signature := r.Header.Get("X-Hub-Signature")
		if signature == "" {
			signature = r.Header.Get("X-Atlassian-Webhook-Signature")
		}
		if !jira.VerifySignature(d.Config.JiraWebhookSecret, body, signature) {
			d.Logger.WarnContext(r.Context(), "invalid jira webhook signature")
			writeError(w, apperr.Unauthorized("invalid webhook signature"))
			return
		}
	}

	var event normalize.JiraWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, apperr.BadRequest("invalid JSON: "+err.Error()))
		return
	}

	d.Logger.InfoContext(r.Context(), "received jira webhook",
		"webhook_event", event.WebhookEvent,
		"issue_key", event.Issue.Key)

	if !event.ShouldTrigger(normalize.DefaultBotMention, d.Config.JiraBotAccountID) {
		ignored(w, "No @claude-agent mention found")
		return
	}

	projectKey := ""
	if event.Issue.Fields.Project != nil {
		projectKey = event.Issue.Fields.Project.Key
	}
	mapping, ok := d.Config.FindJiraMapping(projectKey)
	if !ok {
		d.Logger.WarnContext(r.Context(), "no project mapping for jira project", "project", projectKey)
		writeError(w, apperr.BadRequest("No project mapping for Jira project: "+projectKey))
		return
	}

	branchName := "jira-fix/" + strings.ToLower(event.Issue.Key)
	exists, err := d.branchExistsOnPlatform(r.Context(), mapping.VCSPlatform, mapping.VCSProject, branchName)
	if err != nil {
		writeError(w, err)
		return
	}
	if exists {
		d.Logger.InfoContext(r.Context(), "fix branch already exists, skipping", "branch", branchName, "issue", event.Issue.Key)
		skipped(w, "Branch "+branchName+" already exists")
		return
	}

	jobID, err := d.Queue.Push(r.Context(), normalize.BuildJiraTicket(&event, mapping))
	if err != nil {
		writeError(w, apperr.Store("failed to enqueue jira ticket job", err))
		return
	}
	d.Logger.InfoContext(r.Context(), "queued jira ticket job", "job_id", jobID, "issue", event.Issue.Key)
	queued(w, jobID)
}
