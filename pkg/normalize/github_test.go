package normalize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/globalcomix/claude-agent/pkg/normalize"
)

func makeGitHubEvent(action string, draft bool) *normalize.GitHubPullRequestEvent {
	return &normalize.GitHubPullRequestEvent{
		Action: action,
		Number: 42,
		PullRequest: normalize.GitHubPullRequest{
			Number: 42,
			Title:  "Test PR",
			Body:   "Description",
			Draft:  draft,
			User:   normalize.GitHubUser{Login: "testuser"},
			Head:   normalize.GitHubGitRef{Ref: "feature-branch"},
			Base:   normalize.GitHubGitRef{Ref: "main"},
		},
		Repository: normalize.GitHubRepository{
			FullName: "owner/repo",
			CloneURL: "https://github.com/owner/repo.git",
		},
	}
}

func TestGitHubShouldReview(t *testing.T) {
	t.Parallel()
	assert.True(t, makeGitHubEvent("opened", false).ShouldReview())
	assert.True(t, makeGitHubEvent("synchronize", false).ShouldReview())
	assert.True(t, makeGitHubEvent("reopened", false).ShouldReview())
	assert.False(t, makeGitHubEvent("closed", false).ShouldReview())
	assert.False(t, makeGitHubEvent("opened", true).ShouldReview())
}

func TestGitHubBuildReview(t *testing.T) {
	t.Parallel()

	env := normalize.BuildReviewFromGitHub(makeGitHubEvent("opened", false))
	assert.Equal(t, "owner/repo", env.Review.Project)
	assert.Equal(t, "42", env.Review.MRIID)
	assert.Equal(t, "github", env.Review.Platform)
	assert.Equal(t, "open", env.Review.Action)

	update := normalize.BuildReviewFromGitHub(makeGitHubEvent("synchronize", false))
	assert.Equal(t, "update", update.Review.Action)
}
