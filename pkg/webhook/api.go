package webhook

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/globalcomix/claude-agent/internal/apperr"
	"github.com/globalcomix/claude-agent/pkg/envelope"
	"github.com/globalcomix/claude-agent/pkg/normalize"
)

func (d *Deps) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	pending, err := d.Queue.Len(r.Context())
	if err != nil {
		writeError(w, apperr.Store("failed to read queue length", err))
		return
	}
	processing, err := d.Queue.ProcessingCount(r.Context())
	if err != nil {
		writeError(w, apperr.Store("failed to read processing count", err))
		return
	}
	failed, err := d.Queue.FailedCount(r.Context())
	if err != nil {
		writeError(w, apperr.Store("failed to read failed count", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{
		"pending":    pending,
		"processing": processing,
		"failed":     failed,
	})
}

func (d *Deps) handleListFailed(w http.ResponseWriter, r *http.Request) {
	items, err := d.Queue.ListFailed(r.Context(), 100)
	if err != nil {
		writeError(w, apperr.Store("failed to list failed jobs", err))
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (d *Deps) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := d.Queue.RetryFailed(r.Context(), id)
	if err != nil {
		writeError(w, apperr.Store("failed to retry job", err))
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "not_found", "id": id})
		return
	}
	d.Logger.InfoContext(r.Context(), "retried failed job", "id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "retried", "id": id})
}

// queueReviewRequest is the body of POST /api/review: a manual GitLab MR
// review enqueue by project path and MR iid.
type queueReviewRequest struct {
	Project   string `json:"project"`
	MRIID     int64  `json:"mr_iid"`
	GitLabURL string `json:"gitlab_url"`
	Action    string `json:"action"`
}

func (d *Deps) handleQueueReview(w http.ResponseWriter, r *http.Request) {
	var req queueReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.BadRequest("invalid JSON: "+err.Error()))
		return
	}
	if req.GitLabURL == "" {
		req.GitLabURL = "https://gitlab.com"
	}

	mr, err := d.GitLab.FetchMergeRequest(r.Context(), req.Project, req.MRIID)
	if err != nil {
		writeError(w, apperr.Upstream("failed to fetch MR from GitLab", err))
		return
	}
	project, err := d.GitLab.FetchProject(r.Context(), req.Project)
	if err != nil {
		writeError(w, apperr.Upstream("failed to fetch project from GitLab", err))
		return
	}

	action := req.Action
	if action == "" {
		action = "open"
	}

	env := envelope.NewReview(envelope.Review{
		BaseURL:      req.GitLabURL,
		Project:      req.Project,
		MRIID:        strconv.FormatInt(mr.IID, 10),
		CloneURL:     project.CloneURL(),
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		Title:        mr.Title,
		Description:  mr.Description,
		Author:       mr.Author.Username,
		Action:       action,
		Platform:     "gitlab",
	})

	jobID, err := d.Queue.Push(r.Context(), env)
	if err != nil {
		writeError(w, apperr.Store("failed to enqueue review job", err))
		return
	}
	d.Logger.InfoContext(r.Context(), "queued review via API", "job_id", jobID, "project", req.Project, "mr_iid", req.MRIID)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "job_id": jobID})
}

// queueGitHubReviewRequest is the body of POST /api/review/github.
type queueGitHubReviewRequest struct {
	Repo   string `json:"repo"`
	PR     int    `json:"pr"`
	Action string `json:"action"`
}

func (d *Deps) handleQueueGitHubReview(w http.ResponseWriter, r *http.Request) {
	if d.GitHub == nil {
		writeError(w, apperr.Store("GitHub token not configured", nil))
		return
	}

	var req queueGitHubReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.BadRequest("invalid JSON: "+err.Error()))
		return
	}

	pr, err := d.GitHub.FetchPullRequest(r.Context(), req.Repo, req.PR)
	if err != nil {
		writeError(w, apperr.Upstream("failed to fetch PR from GitHub", err))
		return
	}

	action := req.Action
	if action == "" {
		action = "open"
	}

	env := envelope.NewReview(envelope.Review{
		Project:      req.Repo,
		MRIID:        strconv.Itoa(pr.Number),
		CloneURL:     pr.CloneURL,
		SourceBranch: pr.SourceBranch,
		TargetBranch: pr.TargetBranch,
		Title:        pr.Title,
		Description:  pr.Body,
		Author:       pr.Author,
		Action:       action,
		Platform:     "github",
	})

	jobID, err := d.Queue.Push(r.Context(), env)
	if err != nil {
		writeError(w, apperr.Store("failed to enqueue review job", err))
		return
	}
	d.Logger.InfoContext(r.Context(), "queued github review via API", "job_id", jobID, "repo", req.Repo, "pr", req.PR)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "job_id": jobID})
}

// queueSentryFixRequest is the body of POST /api/sentry-fix.
type queueSentryFixRequest struct {
	Organization string `json:"organization"`
	Project      string `json:"project"`
	IssueID      string `json:"issue_id"`
}

func (d *Deps) handleQueueSentryFix(w http.ResponseWriter, r *http.Request) {
	if d.Sentry == nil {
		writeError(w, apperr.Store("SENTRY_AUTH_TOKEN not configured", nil))
		return
	}

	var req queueSentryFixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.BadRequest("invalid JSON: "+err.Error()))
		return
	}

	mapping, ok := d.Config.FindSentryMapping(req.Project)
	if !ok {
		writeError(w, apperr.BadRequest("No project mapping for Sentry project: "+req.Project))
		return
	}

	issue, err := d.Sentry.FetchIssue(r.Context(), req.IssueID)
	if err != nil {
		writeError(w, apperr.Upstream("failed to fetch Sentry issue", err))
		return
	}
	shortID := issue.ShortID
	if shortID == "" {
		shortID = req.IssueID
	}

	branchName := "sentry-fix/" + strings.ToLower(shortID)
	exists, err := d.branchExistsOnPlatform(r.Context(), mapping.VCSPlatform, mapping.VCSProject, branchName)
	if err != nil {
		writeError(w, err)
		return
	}
	if exists {
		writeJSON(w, http.StatusOK, map[string]string{"status": "skipped", "message": "Branch " + branchName + " already exists"})
		return
	}

	issueType := issue.IssueType
	if issueType == "" {
		issueType = "error"
	}
	issueCategory := issue.IssueCategory
	if issueCategory == "" {
		issueCategory = "error"
	}
	webURL := issue.WebURL
	if webURL == "" {
		webURL = "https://sentry.io/organizations/" + req.Organization + "/issues/" + req.IssueID + "/"
	}

	env := envelope.NewSentryFix(envelope.SentryFix{
		IssueID:       req.IssueID,
		ShortID:       shortID,
		Title:         issue.Title,
		Culprit:       issue.Culprit,
		Platform:      issue.Platform,
		IssueType:     issueType,
		IssueCategory: issueCategory,
		WebURL:        webURL,
		ProjectSlug:   req.Project,
		Organization:  req.Organization,
		CloneURL:      mapping.CloneURL,
		TargetBranch:  mapping.TargetBranch,
		VCSPlatform:   mapping.VCSPlatform,
		VCSProject:    mapping.VCSProject,
	})

	jobID, err := d.Queue.Push(r.Context(), env)
	if err != nil {
		writeError(w, apperr.Store("failed to enqueue sentry fix job", err))
		return
	}
	d.Logger.InfoContext(r.Context(), "queued sentry fix via API", "job_id", jobID, "org", req.Organization, "project", req.Project, "issue", shortID)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "job_id": jobID})
}

// queueJiraFixRequest is the body of POST /api/jira-fix.
type queueJiraFixRequest struct {
	IssueKey string `json:"issue_key"`
	JiraURL  string `json:"jira_url"`
}

func (d *Deps) handleQueueJiraFix(w http.ResponseWriter, r *http.Request) {
	if d.Jira == nil {
		writeError(w, apperr.Store("Jira integration not configured", nil))
		return
	}

	var req queueJiraFixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.BadRequest("invalid JSON: "+err.Error()))
		return
	}
	if req.JiraURL == "" {
		req.JiraURL = "https://globalcomix.atlassian.net"
	}

	projectKey, _, ok := strings.Cut(req.IssueKey, "-")
	if !ok || projectKey == "" {
		writeError(w, apperr.BadRequest("Invalid issue key format"))
		return
	}
	mapping, ok := d.Config.FindJiraMapping(projectKey)
	if !ok {
		writeError(w, apperr.BadRequest("No project mapping for Jira project: "+projectKey))
		return
	}

	branchName := "jira-fix/" + strings.ToLower(req.IssueKey)
	exists, err := d.branchExistsOnPlatform(r.Context(), mapping.VCSPlatform, mapping.VCSProject, branchName)
	if err != nil {
		writeError(w, err)
		return
	}
	if exists {
		writeJSON(w, http.StatusOK, map[string]string{"status": "skipped", "message": "Branch " + branchName + " already exists"})
		return
	}

	issue, err := d.Jira.FetchIssue(r.Context(), req.IssueKey)
	if err != nil {
		writeError(w, apperr.Upstream("failed to fetch Jira issue", err))
		return
	}

	var description string
	if len(issue.Fields.Description) > 0 {
		var v any
		if err := json.Unmarshal(issue.Fields.Description, &v); err == nil {
			description = normalize.ExtractTextFromADF(v)
		}
	}

	issueType := "Unknown"
	if issue.Fields.IssueType != nil {
		issueType = issue.Fields.IssueType.Name
	}
	status := "Unknown"
	if issue.Fields.Status != nil {
		status = issue.Fields.Status.Name
	}
	var priority string
	if issue.Fields.Priority != nil {
		priority = issue.Fields.Priority.Name
	}

	env := envelope.NewJiraTicket(envelope.JiraTicket{
		IssueKey:       req.IssueKey,
		IssueID:        issue.ID,
		Summary:        issue.Fields.Summary,
		Description:    description,
		IssueType:      issueType,
		Priority:       priority,
		Status:         status,
		Labels:         issue.Fields.Labels,
		WebURL:         strings.TrimRight(req.JiraURL, "/") + "/browse/" + req.IssueKey,
		JiraBaseURL:    req.JiraURL,
		TriggerComment: "Triggered via API",
		CloneURL:       mapping.CloneURL,
		TargetBranch:   mapping.TargetBranch,
		VCSPlatform:    mapping.VCSPlatform,
		VCSProject:     mapping.VCSProject,
	})

	jobID, err := d.Queue.Push(r.Context(), env)
	if err != nil {
		writeError(w, apperr.Store("failed to enqueue jira fix job", err))
		return
	}
	d.Logger.InfoContext(r.Context(), "queued jira fix via API", "job_id", jobID, "issue", req.IssueKey)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "job_id": jobID})
}
