package webhook

import (
	"context"

	"github.com/globalcomix/claude-agent/internal/apperr"
)

// branchExistsOnPlatform checks branch existence on whichever VCS platform
// a project mapping names, so the Sentry/Jira fix flows can skip
// re-queuing a fix that's already been proposed.
func (d *Deps) branchExistsOnPlatform(ctx context.Context, vcsPlatform, vcsProject, branch string) (bool, error) {
	if vcsPlatform == "github" {
		if d.GitHub == nil {
			return false, apperr.Store("GITHUB_TOKEN not configured for GitHub repo", nil)
		}
		return d.GitHub.BranchExists(ctx, vcsProject, branch), nil
	}
	return d.GitLab.BranchExists(ctx, vcsProject, branch), nil
}
