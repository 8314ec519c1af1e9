package normalize

import "github.com/globalcomix/claude-agent/pkg/envelope"

// GitHubPullRequestEvent is a GitHub pull_request webhook payload.
type GitHubPullRequestEvent struct {
	Action      string            `json:"action"`
	Number      int64             `json:"number"`
	PullRequest GitHubPullRequest `json:"pull_request"`
	Repository  GitHubRepository  `json:"repository"`
}

// GitHubPullRequest is the subset of a GitHub pull request object this dispatcher uses.
type GitHubPullRequest struct {
	Number int64        `json:"number"`
	Title  string       `json:"title"`
	Body   string       `json:"body,omitempty"`
	State  string       `json:"state"`
	Draft  bool         `json:"draft,omitempty"`
	User   GitHubUser   `json:"user"`
	Head   GitHubGitRef `json:"head"`
	Base   GitHubGitRef `json:"base"`
}

// GitHubGitRef is a branch reference embedded in a pull request event.
type GitHubGitRef struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// GitHubRepository is the subset of a GitHub repository object this dispatcher uses.
type GitHubRepository struct {
	FullName      string `json:"full_name"`
	CloneURL      string `json:"clone_url"`
	DefaultBranch string `json:"default_branch,omitempty"`
}

// GitHubUser is the subset of a GitHub user object this dispatcher uses.
type GitHubUser struct {
	Login string `json:"login"`
}

// ShouldReview reports whether a GitHub pull_request event should trigger a review.
func (e *GitHubPullRequestEvent) ShouldReview() bool {
	switch e.Action {
	case "opened", "synchronize", "reopened":
	default:
		return false
	}
	return !e.PullRequest.Draft
}

// reviewAction maps a GitHub pull_request action to the envelope's internal action name.
func (e *GitHubPullRequestEvent) reviewAction() string {
	switch e.Action {
	case "opened":
		return "open"
	case "reopened":
		return "reopen"
	case "synchronize":
		return "update"
	default:
		return e.Action
	}
}

// BuildReviewFromGitHub converts a GitHub pull_request event into a Review envelope.
func BuildReviewFromGitHub(e *GitHubPullRequestEvent) envelope.Envelope {
	r := envelope.Review{
		Project:      e.Repository.FullName,
		MRIID:        itoa(e.Number),
		CloneURL:     e.Repository.CloneURL,
		SourceBranch: e.PullRequest.Head.Ref,
		TargetBranch: e.PullRequest.Base.Ref,
		Title:        e.PullRequest.Title,
		Description:  e.PullRequest.Body,
		Author:       e.PullRequest.User.Login,
		Action:       e.reviewAction(),
		Platform:     "github",
	}
	return envelope.NewReview(r)
}
