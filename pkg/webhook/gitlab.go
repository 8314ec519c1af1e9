package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/globalcomix/claude-agent/internal/apperr"
	"github.com/globalcomix/claude-agent/pkg/normalize"
	"github.com/globalcomix/claude-agent/pkg/upstream/gitlab"
)

// botMentionTrigger is the text GitLab comment ("note") events are
// scanned for to trigger a comment-driven job.
const botMentionTrigger = "@claude-agent"

type gitlabEventKind struct {
	ObjectKind string `json:"object_kind"`
}

// handleGitLabWebhook dispatches a GitLab webhook delivery by its
// object_kind: merge_request, pipeline, or note.
func (d *Deps) handleGitLabWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperr.BadRequest("failed to read request body"))
		return
	}

	if !gitlab.VerifyToken(d.Config.WebhookSecret, r.Header.Get("X-Gitlab-Token")) {
		d.Logger.WarnContext(r.Context(), "invalid gitlab webhook token")
		writeError(w, apperr.Unauthorized("invalid webhook token"))
		return
	}

	var kind gitlabEventKind
	if err := json.Unmarshal(body, &kind); err != nil {
		writeError(w, apperr.BadRequest("invalid JSON: "+err.Error()))
		return
	}

	switch kind.ObjectKind {
	case "merge_request":
		d.handleGitLabMergeRequest(w, r, body)
	case "pipeline":
		d.handleGitLabPipeline(w, r, body)
	case "note":
		d.handleGitLabNote(w, r, body)
	default:
		d.Logger.DebugContext(r.Context(), "ignoring unsupported gitlab event", "object_kind", kind.ObjectKind)
		ignored(w, "Unsupported event type: "+kind.ObjectKind)
	}
}

func (d *Deps) handleGitLabMergeRequest(w http.ResponseWriter, r *http.Request, body []byte) {
	var event normalize.GitLabMergeRequestEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, apperr.BadRequest("invalid merge request JSON: "+err.Error()))
		return
	}

	d.Logger.InfoContext(r.Context(), "received gitlab merge request webhook",
		"project", event.Project.PathWithNamespace,
		"mr_iid", event.ObjectAttributes.IID,
		"action", event.ObjectAttributes.Action)

	if !event.ShouldReview() {
		ignored(w, "Event does not require review")
		return
	}
	if event.HasLabel("skip-review") {
		skipped(w, "MR has skip-review label")
		return
	}

	jobID, err := d.Queue.Push(r.Context(), normalize.BuildReviewFromGitLab(&event))
	if err != nil {
		writeError(w, apperr.Store("failed to enqueue review job", err))
		return
	}
	d.Logger.InfoContext(r.Context(), "queued review job", "job_id", jobID)
	queued(w, jobID)
}

func (d *Deps) handleGitLabPipeline(w http.ResponseWriter, r *http.Request, body []byte) {
	var event normalize.GitLabPipelineEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, apperr.BadRequest("invalid pipeline JSON: "+err.Error()))
		return
	}

	d.Logger.InfoContext(r.Context(), "received gitlab pipeline webhook",
		"project", event.Project.PathWithNamespace,
		"pipeline_id", event.ObjectAttributes.ID,
		"status", event.ObjectAttributes.Status,
		"ref", event.ObjectAttributes.RefName,
		"has_mr", event.MergeRequest != nil)

	if event.ObjectAttributes.Status != "failed" {
		ignored(w, "Pipeline status is '"+event.ObjectAttributes.Status+"', not 'failed'")
		return
	}
	if !d.Config.IsAuthorAllowed(event.User.Username) {
		ignored(w, "Author '"+event.User.Username+"' not in allowed list")
		return
	}

	if event.MergeRequest != nil {
		jobID, err := d.Queue.Push(r.Context(), normalize.BuildReviewFromPipeline(&event))
		if err != nil {
			writeError(w, apperr.Store("failed to enqueue lint-fix job", err))
			return
		}
		d.Logger.InfoContext(r.Context(), "queued lint-fix job", "job_id", jobID)
		queuedWithMessage(w, jobID, "Lint-fix job queued")
		return
	}

	// Pipeline webhooks for non-MR branches carry no merge request block;
	// look one up by source branch so a failing default-branch pipeline
	// can still trigger a lint-fix against its open MR, if any.
	mr, err := d.GitLab.FindOpenMergeRequestBySourceBranch(r.Context(), event.Project.PathWithNamespace, event.ObjectAttributes.RefName)
	if err != nil {
		ignored(w, "No open MR found for branch '"+event.ObjectAttributes.RefName+"'")
		return
	}

	review := normalize.GitLabMergeRequestEvent{
		ObjectKind: "merge_request",
		User:       event.User,
		Project:    event.Project,
		ObjectAttributes: normalize.GitLabMergeRequestAttrs{
			IID:          mr.IID,
			Title:        mr.Title,
			Description:  mr.Description,
			SourceBranch: mr.SourceBranch,
			TargetBranch: mr.TargetBranch,
			State:        mr.State,
			Action:       "lint_fix",
		},
	}
	jobID, err := d.Queue.Push(r.Context(), normalize.BuildReviewFromGitLab(&review))
	if err != nil {
		writeError(w, apperr.Store("failed to enqueue lint-fix job", err))
		return
	}
	d.Logger.InfoContext(r.Context(), "queued lint-fix job", "job_id", jobID)
	queuedWithMessage(w, jobID, "Lint-fix job queued")
}

func (d *Deps) handleGitLabNote(w http.ResponseWriter, r *http.Request, body []byte) {
	var event normalize.GitLabNoteEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, apperr.BadRequest("invalid note JSON: "+err.Error()))
		return
	}

	d.Logger.InfoContext(r.Context(), "received gitlab note webhook",
		"project", event.Project.PathWithNamespace,
		"noteable_type", event.ObjectAttributes.NoteableType,
		"user", event.User.Username)

	if strings.Contains(event.User.Username, "_bot_") {
		ignored(w, "Note from bot user")
		return
	}
	if !event.IsMergeRequestNote() {
		ignored(w, "Not a merge request note")
		return
	}
	if !event.MentionsBot(botMentionTrigger) {
		ignored(w, "No @claude-agent mention")
		return
	}
	mr := event.MergeRequest
	if mr.IID == 0 {
		ignored(w, "Not a merge request note")
		return
	}
	if mr.State != "opened" && mr.State != "reopened" {
		ignored(w, "MR state is '"+mr.State+"', not open")
		return
	}

	fetched, err := d.GitLab.FetchMergeRequest(r.Context(), event.Project.PathWithNamespace, mr.IID)
	if err != nil {
		writeError(w, apperr.Upstream("failed to fetch MR details", err))
		return
	}

	instruction := event.Instruction(botMentionTrigger)
	if instruction == "" {
		instruction = "review this"
	}

	review := normalize.GitLabMergeRequestEvent{
		ObjectKind: "merge_request",
		User:       event.User,
		Project:    event.Project,
		ObjectAttributes: normalize.GitLabMergeRequestAttrs{
			IID:          fetched.IID,
			Title:        fetched.Title,
			Description:  fetched.Description,
			SourceBranch: fetched.SourceBranch,
			TargetBranch: fetched.TargetBranch,
			State:        fetched.State,
			Action:       "comment",
		},
	}
	env := normalize.BuildReviewFromGitLab(&review)
	env.Review.TriggerComment = instruction

	jobID, err := d.Queue.Push(r.Context(), env)
	if err != nil {
		writeError(w, apperr.Store("failed to enqueue comment-triggered job", err))
		return
	}
	d.Logger.InfoContext(r.Context(), "queued comment-triggered job", "job_id", jobID, "mr_iid", mr.IID, "instruction", instruction)
	queuedWithMessage(w, jobID, "Comment-triggered job queued")
}
