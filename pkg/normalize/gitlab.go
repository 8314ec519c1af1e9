package normalize

import (
	"strings"

	"github.com/globalcomix/claude-agent/pkg/envelope"
)

// GitLabMergeRequestEvent is a GitLab Merge Request Hook payload.
type GitLabMergeRequestEvent struct {
	ObjectKind        string                    `json:"object_kind"`
	EventType         string                    `json:"event_type,omitempty"`
	User              GitLabUser                `json:"user"`
	Project           GitLabProject             `json:"project"`
	ObjectAttributes  GitLabMergeRequestAttrs   `json:"object_attributes"`
	Labels            []GitLabLabel             `json:"labels,omitempty"`
}

// GitLabUser is the subset of a GitLab user object this dispatcher uses.
type GitLabUser struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// GitLabProject is the subset of a GitLab project object this dispatcher uses.
type GitLabProject struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	PathWithNamespace  string `json:"path_with_namespace"`
	WebURL             string `json:"web_url"`
	GitHTTPURL         string `json:"git_http_url,omitempty"`
	GitSSHURL          string `json:"git_ssh_url,omitempty"`
	DefaultBranch      string `json:"default_branch,omitempty"`
}

// GitLabMergeRequestAttrs is the object_attributes block of a Merge Request Hook.
type GitLabMergeRequestAttrs struct {
	IID             int64  `json:"iid"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	SourceBranch    string `json:"source_branch"`
	TargetBranch    string `json:"target_branch"`
	State           string `json:"state"`
	Action          string `json:"action,omitempty"`
	Draft           bool   `json:"draft,omitempty"`
	WorkInProgress  bool   `json:"work_in_progress,omitempty"`
	URL             string `json:"url"`
}

// GitLabLabel is a GitLab label reference.
type GitLabLabel struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// ShouldReview reports whether a GitLab Merge Request Hook should trigger a review.
func (e *GitLabMergeRequestEvent) ShouldReview() bool {
	if e.ObjectKind != "merge_request" {
		return false
	}

	attrs := e.ObjectAttributes
	if attrs.State != "opened" && attrs.State != "reopened" {
		return false
	}
	if attrs.Draft || attrs.WorkInProgress {
		return false
	}

	switch attrs.Action {
	case "open", "update", "reopen":
		return true
	default:
		return false
	}
}

// HasLabel reports whether the event's labels include the given title.
func (e *GitLabMergeRequestEvent) HasLabel(title string) bool {
	for _, l := range e.Labels {
		if l.Title == title {
			return true
		}
	}
	return false
}

// CloneURL picks the HTTP clone URL, falling back to SSH.
func (e *GitLabMergeRequestEvent) CloneURL() string {
	if e.Project.GitHTTPURL != "" {
		return e.Project.GitHTTPURL
	}
	return e.Project.GitSSHURL
}

// gitlabInstanceURL derives the scheme+host of a GitLab instance from a
// project's web URL (e.g. "https://gitlab.com/group/project" -> "https://gitlab.com").
func gitlabInstanceURL(webURL string) string {
	parts := strings.Split(webURL, "/")
	if len(parts) < 3 {
		return webURL
	}
	return strings.Join(parts[:3], "/")
}

// GitLabPipelineEvent is a GitLab Pipeline Hook payload.
type GitLabPipelineEvent struct {
	ObjectKind       string                     `json:"object_kind"`
	User             GitLabUser                 `json:"user"`
	Project          GitLabProject               `json:"project"`
	ObjectAttributes GitLabPipelineAttrs         `json:"object_attributes"`
	MergeRequest     *GitLabPipelineMergeRequest `json:"merge_request,omitempty"`
}

// GitLabPipelineAttrs is the object_attributes block of a Pipeline Hook.
type GitLabPipelineAttrs struct {
	ID      int64  `json:"id"`
	Status  string `json:"status"`
	RefName string `json:"ref"`
}

// GitLabPipelineMergeRequest is the merge_request block of a Pipeline Hook,
// present only when the pipeline ran for an open merge request.
type GitLabPipelineMergeRequest struct {
	IID          int64  `json:"iid"`
	Title        string `json:"title"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
	State        string `json:"state,omitempty"`
}

// GitLabNoteEvent is a GitLab Comment (Note) Hook payload.
type GitLabNoteEvent struct {
	ObjectKind       string                     `json:"object_kind"`
	User             GitLabUser                 `json:"user"`
	Project          GitLabProject               `json:"project"`
	ObjectAttributes GitLabNoteAttrs             `json:"object_attributes"`
	MergeRequest     *GitLabPipelineMergeRequest `json:"merge_request,omitempty"`
}

// GitLabNoteAttrs is the object_attributes block of a Note Hook.
type GitLabNoteAttrs struct {
	Note         string `json:"note"`
	NoteableType string `json:"noteable_type"`
}

// IsMergeRequestNote reports whether the note was left on a merge request.
func (e *GitLabNoteEvent) IsMergeRequestNote() bool {
	return e.ObjectAttributes.NoteableType == "MergeRequest" && e.MergeRequest != nil
}

// MentionsBot reports whether the note text mentions the bot trigger.
func (e *GitLabNoteEvent) MentionsBot(mention string) bool {
	return mention != "" && strings.Contains(strings.ToLower(e.ObjectAttributes.Note), strings.ToLower(mention))
}

// Instruction returns the note text with the bot mention stripped, trimmed
// of surrounding whitespace.
func (e *GitLabNoteEvent) Instruction(mention string) string {
	text := e.ObjectAttributes.Note
	if mention != "" {
		text = strings.ReplaceAll(text, mention, "")
	}
	return strings.TrimSpace(text)
}

// InstanceURL derives the scheme+host of the GitLab instance this project lives on.
func (e *GitLabPipelineEvent) InstanceURL() string { return gitlabInstanceURL(e.Project.WebURL) }

// BuildReviewFromPipeline converts a Pipeline Hook event (which already
// carries merge request context) into a lint-fix Review envelope.
func BuildReviewFromPipeline(e *GitLabPipelineEvent) envelope.Envelope {
	mr := e.MergeRequest
	r := envelope.Review{
		BaseURL:      e.InstanceURL(),
		Project:      e.Project.PathWithNamespace,
		MRIID:        itoa(mr.IID),
		CloneURL:     e.CloneURL(),
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		Title:        mr.Title,
		Author:       e.User.Username,
		Action:       "lint_fix",
		Platform:     "gitlab",
	}
	return envelope.NewReview(r)
}

// CloneURL picks the HTTP clone URL, falling back to SSH.
func (e *GitLabPipelineEvent) CloneURL() string {
	if e.Project.GitHTTPURL != "" {
		return e.Project.GitHTTPURL
	}
	return e.Project.GitSSHURL
}

// BuildReviewFromGitLab converts a GitLab Merge Request Hook event into a Review envelope.
func BuildReviewFromGitLab(e *GitLabMergeRequestEvent) envelope.Envelope {
	r := envelope.Review{
		BaseURL:      gitlabInstanceURL(e.Project.WebURL),
		Project:      e.Project.PathWithNamespace,
		MRIID:        itoa(e.ObjectAttributes.IID),
		CloneURL:     e.CloneURL(),
		SourceBranch: e.ObjectAttributes.SourceBranch,
		TargetBranch: e.ObjectAttributes.TargetBranch,
		Title:        e.ObjectAttributes.Title,
		Description:  e.ObjectAttributes.Description,
		Author:       e.User.Username,
		Action:       e.ObjectAttributes.Action,
		Platform:     "gitlab",
	}
	return envelope.NewReview(r)
}
