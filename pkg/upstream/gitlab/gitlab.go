// Package gitlab is a thin HTTPS/JSON client for the subset of the GitLab
// API this dispatcher needs: fetching a merge request by iid, checking
// branch existence, and shaping credentials for clone URLs and API
// requests. GitLab has no official first-party Go SDK in active use
// across the reference corpus, so this follows the original
// implementation's own raw-HTTP approach rather than adopting a
// third-party wrapper.
package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/globalcomix/claude-agent/pkg/cache"
)

// projectCacheTTL bounds how long a resolved clone URL is trusted before
// the next manual-review enqueue re-fetches it from GitLab.
const projectCacheTTL = 5 * time.Minute

// Client talks to a GitLab instance's REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client

	// projects caches FetchProject results. The operator API's manual
	// review endpoint is the only caller, and it's commonly re-triggered
	// for the same project path within minutes of a prior run.
	projects cache.Cache[*Project]
}

// New creates a Client. baseURL is the GitLab instance root, e.g.
// "https://gitlab.com".
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
		projects:   cache.NewMemory[*Project](cache.WithDefaultTTL(projectCacheTTL)),
	}
}

// AuthHeader returns the header name and value GitLab expects for this
// token. Personal access tokens (prefixed "glpat-", or short legacy
// tokens under 50 characters) use PRIVATE-TOKEN; OAuth/CI job tokens use
// a bearer Authorization header.
func AuthHeader(token string) (name, value string) {
	if strings.HasPrefix(token, "glpat-") || len(token) < 50 {
		return "PRIVATE-TOKEN", token
	}
	return "Authorization", "Bearer " + token
}

// InjectCredentials rewrites an HTTPS clone URL to embed the token as an
// oauth2 basic-auth user. Non-HTTPS URLs (e.g. ssh://) are returned
// unchanged since GitLab does not support embedding a token that way.
func InjectCredentials(cloneURL, token string) string {
	if !strings.HasPrefix(cloneURL, "https://") {
		return cloneURL
	}
	rest := strings.TrimPrefix(cloneURL, "https://")
	return "https://oauth2:" + token + "@" + rest
}

// VerifyToken reports whether the given shared-secret header value
// matches the configured webhook token. GitLab uses a plain equality
// check via X-Gitlab-Token, not an HMAC signature.
func VerifyToken(configured, received string) bool {
	return configured != "" && configured == received
}

// MergeRequest is the subset of a GitLab MR API response this dispatcher uses.
type MergeRequest struct {
	IID          int64  `json:"iid"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
	State        string `json:"state"`
	Author       struct {
		Username string `json:"username"`
	} `json:"author"`
	WebURL string `json:"web_url"`
}

// FetchMergeRequest fetches a single MR by project path and iid.
func (c *Client) FetchMergeRequest(ctx context.Context, project string, iid int64) (*MergeRequest, error) {
	endpoint := fmt.Sprintf("%s/api/v4/projects/%s/merge_requests/%d", c.baseURL, url.PathEscape(project), iid)

	var mr MergeRequest
	if err := c.getJSON(ctx, endpoint, &mr); err != nil {
		return nil, err
	}
	return &mr, nil
}

// FindOpenMergeRequestBySourceBranch looks up the open MR for a source
// branch, used by pipeline events which carry no MR iid directly.
func (c *Client) FindOpenMergeRequestBySourceBranch(ctx context.Context, project, sourceBranch string) (*MergeRequest, error) {
	endpoint := fmt.Sprintf("%s/api/v4/projects/%s/merge_requests?source_branch=%s&state=opened",
		c.baseURL, url.PathEscape(project), url.QueryEscape(sourceBranch))

	var mrs []MergeRequest
	if err := c.getJSON(ctx, endpoint, &mrs); err != nil {
		return nil, err
	}
	if len(mrs) == 0 {
		return nil, ErrNotFound
	}
	return &mrs[0], nil
}

// Project is the subset of a GitLab project API response this
// dispatcher uses to derive a clone URL for manually-triggered jobs,
// which carry a project path but no embedded webhook payload.
type Project struct {
	HTTPURLToRepo string `json:"http_url_to_repo"`
	SSHURLToRepo  string `json:"ssh_url_to_repo"`
}

// CloneURL prefers the HTTPS clone URL, falling back to SSH.
func (p *Project) CloneURL() string {
	if p.HTTPURLToRepo != "" {
		return p.HTTPURLToRepo
	}
	return p.SSHURLToRepo
}

// FetchProject fetches project metadata, used to resolve a clone URL
// when a caller supplies only a project path (the operator API's
// manual review endpoint, which has no webhook payload to read one
// from). Results are cached for projectCacheTTL since the clone URL
// this dispatcher cares about almost never changes between calls.
func (c *Client) FetchProject(ctx context.Context, project string) (*Project, error) {
	return cache.GetOrSet(ctx, c.projects, project, func(ctx context.Context) (*Project, time.Duration, error) {
		endpoint := fmt.Sprintf("%s/api/v4/projects/%s", c.baseURL, url.PathEscape(project))

		var p Project
		if err := c.getJSON(ctx, endpoint, &p); err != nil {
			return nil, 0, err
		}
		return &p, projectCacheTTL, nil
	})
}

// BranchExists reports whether the named branch exists in project.
// Matching the original, a transport/API error is treated as "does not
// exist" rather than surfaced as a failure — idempotency checks should
// fail open toward re-attempting the job, not toward silently dropping it.
func (c *Client) BranchExists(ctx context.Context, project, branch string) bool {
	endpoint := fmt.Sprintf("%s/api/v4/projects/%s/repository/branches/%s",
		c.baseURL, url.PathEscape(project), url.PathEscape(branch))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
	name, value := AuthHeader(c.token)
	req.Header.Set(name, value)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Discussion is a merge request discussion thread.
type Discussion struct {
	ID    string `json:"id"`
	Notes []struct {
		Body     string `json:"body"`
		Author   struct {
			Username string `json:"username"`
		} `json:"author"`
		Resolvable bool `json:"resolvable"`
		Resolved   bool `json:"resolved"`
	} `json:"notes"`
}

// FetchUnresolvedDiscussions fetches every discussion thread on a merge
// request that has at least one unresolved, resolvable note, used to
// assemble the "update" review appendix.
func (c *Client) FetchUnresolvedDiscussions(ctx context.Context, project string, iid int64) ([]Discussion, error) {
	endpoint := fmt.Sprintf("%s/api/v4/projects/%s/merge_requests/%d/discussions", c.baseURL, url.PathEscape(project), iid)

	var all []Discussion
	if err := c.getJSON(ctx, endpoint, &all); err != nil {
		return nil, err
	}

	unresolved := all[:0]
	for _, d := range all {
		for _, n := range d.Notes {
			if n.Resolvable && !n.Resolved {
				unresolved = append(unresolved, d)
				break
			}
		}
	}
	return unresolved, nil
}

// CheckToken verifies the configured token is accepted by hitting /user.
func (c *Client) CheckToken(ctx context.Context) error {
	endpoint := c.baseURL + "/api/v4/user"
	var v map[string]any
	return c.getJSON(ctx, endpoint, &v)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}
	name, value := AuthHeader(c.token)
	req.Header.Set(name, value)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status=%s", ErrRequestFailed, strconv.Itoa(resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Join(ErrDecodeFailed, err)
	}
	return nil
}
