// Package github wraps the GitHub v3 REST API for the subset of
// operations this dispatcher needs: fetching a pull request by number
// and checking branch existence, via google/go-github rather than a
// hand-rolled client.
package github

import (
	"context"
	"errors"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v68/github"

	"github.com/globalcomix/claude-agent/internal/hmacsig"
)

// Client wraps a go-github client scoped to a single installation token.
type Client struct {
	inner *gh.Client
}

// New creates a Client authenticated with a personal access or
// installation token.
func New(token string, httpClient *http.Client) *Client {
	c := gh.NewClient(httpClient).WithAuthToken(token)
	return &Client{inner: c}
}

// VerifySignature checks the X-Hub-Signature-256 header against body.
func VerifySignature(secret string, body []byte, signature string) bool {
	return hmacsig.Verify(secret, body, signature)
}

// InjectCredentials rewrites an HTTPS clone URL to embed the token as an
// x-access-token user, GitHub's convention for installation tokens.
func InjectCredentials(cloneURL, token string) string {
	if !strings.HasPrefix(cloneURL, "https://") {
		return cloneURL
	}
	rest := strings.TrimPrefix(cloneURL, "https://")
	return "https://x-access-token:" + token + "@" + rest
}

// PullRequest is the subset of a GitHub PR this dispatcher uses.
type PullRequest struct {
	Number       int
	Title        string
	Body         string
	SourceBranch string
	TargetBranch string
	Author       string
	CloneURL     string
	HeadRepoFull string
}

// FetchPullRequest fetches PR #number from owner/repo.
func (c *Client) FetchPullRequest(ctx context.Context, ownerRepo string, number int) (*PullRequest, error) {
	owner, repo, ok := strings.Cut(ownerRepo, "/")
	if !ok {
		return nil, ErrInvalidRepo
	}

	pr, _, err := c.inner.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, errors.Join(ErrRequestFailed, err)
	}

	out := &PullRequest{
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		Body:         pr.GetBody(),
		SourceBranch: pr.GetHead().GetRef(),
		TargetBranch: pr.GetBase().GetRef(),
		Author:       pr.GetUser().GetLogin(),
	}
	if pr.GetHead().GetRepo() != nil {
		out.CloneURL = pr.GetHead().GetRepo().GetCloneURL()
		out.HeadRepoFull = pr.GetHead().GetRepo().GetFullName()
	}
	return out, nil
}

// ReviewComment is a prior review comment on a pull request, used to
// assemble the "update" review appendix.
type ReviewComment struct {
	Path   string
	Body   string
	Author string
}

// FetchReviewComments fetches every review comment left on a pull
// request so far.
func (c *Client) FetchReviewComments(ctx context.Context, ownerRepo string, number int) ([]ReviewComment, error) {
	owner, repo, ok := strings.Cut(ownerRepo, "/")
	if !ok {
		return nil, ErrInvalidRepo
	}

	comments, _, err := c.inner.PullRequests.ListComments(ctx, owner, repo, number, nil)
	if err != nil {
		return nil, errors.Join(ErrRequestFailed, err)
	}

	out := make([]ReviewComment, 0, len(comments))
	for _, cm := range comments {
		out = append(out, ReviewComment{
			Path:   cm.GetPath(),
			Body:   cm.GetBody(),
			Author: cm.GetUser().GetLogin(),
		})
	}
	return out, nil
}

// BranchExists reports whether branch exists in owner/repo. Matching the
// GitLab client's idempotency-check convention, a transport/API error is
// treated as "does not exist" rather than surfaced as a failure.
func (c *Client) BranchExists(ctx context.Context, ownerRepo, branch string) bool {
	owner, repo, ok := strings.Cut(ownerRepo, "/")
	if !ok {
		return false
	}
	_, _, err := c.inner.Repositories.GetBranch(ctx, owner, repo, branch, false)
	return err == nil
}

// CheckToken verifies the configured token is accepted by hitting /user.
func (c *Client) CheckToken(ctx context.Context) error {
	_, _, err := c.inner.Users.Get(ctx, "")
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}
	return nil
}
