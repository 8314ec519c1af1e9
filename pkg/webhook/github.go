package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/globalcomix/claude-agent/internal/apperr"
	"github.com/globalcomix/claude-agent/pkg/normalize"
	"github.com/globalcomix/claude-agent/pkg/upstream/github"
)

// handleGitHubWebhook handles pull_request deliveries; every other event
// type is acknowledged and ignored.
func (d *Deps) handleGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperr.BadRequest("failed to read request body"))
		return
	}

	if !github.VerifySignature(d.Config.WebhookSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		d.Logger.WarnContext(r.Context(), "invalid github webhook signature")
		writeError(w, apperr.Unauthorized("invalid webhook signature"))
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	if eventType != "pull_request" {
		ignored(w, "Unsupported event type: "+eventType)
		return
	}

	var event normalize.GitHubPullRequestEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, apperr.BadRequest("invalid JSON: "+err.Error()))
		return
	}

	d.Logger.InfoContext(r.Context(), "received github webhook",
		"repo", event.Repository.FullName,
		"pr", event.Number,
		"action", event.Action)

	if !event.ShouldReview() {
		ignored(w, "Event does not require review")
		return
	}

	jobID, err := d.Queue.Push(r.Context(), normalize.BuildReviewFromGitHub(&event))
	if err != nil {
		writeError(w, apperr.Store("failed to enqueue review job", err))
		return
	}
	d.Logger.InfoContext(r.Context(), "queued github review job", "job_id", jobID)
	queued(w, jobID)
}
