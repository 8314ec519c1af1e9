package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// cloneDepth matches the original worker's shallow-clone depth, deep
// enough to diff against a typical feature branch's base without paying
// for full history.
const cloneDepth = "50"

// cloneAndFetch clones authURL at branch into workDir, then fetches
// targetBranch so its tip is reachable as origin/<target> for diffing.
func cloneAndFetch(ctx context.Context, authURL, branch, targetBranch, workDir string) error {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("worker: create work dir: %w", err)
	}

	if err := runGit(ctx, "", "clone", "--depth", cloneDepth, "--branch", branch, authURL, workDir); err != nil {
		return fmt.Errorf("worker: git clone: %w", err)
	}

	refspec := fmt.Sprintf("%s:refs/remotes/origin/%s", targetBranch, targetBranch)
	if err := runGit(ctx, workDir, "fetch", "origin", refspec); err != nil {
		return fmt.Errorf("worker: git fetch origin %s: %w", targetBranch, err)
	}
	return nil
}

// diff returns the full diff of HEAD against origin/<targetBranch>.
func diff(ctx context.Context, workDir, targetBranch string) (string, error) {
	out, err := gitOutput(ctx, workDir, "diff", fmt.Sprintf("origin/%s...HEAD", targetBranch))
	if err != nil {
		return "", fmt.Errorf("worker: git diff: %w", err)
	}
	return out, nil
}

// changedFiles returns the names of files changed relative to
// origin/<targetBranch>.
func changedFiles(ctx context.Context, workDir, targetBranch string) ([]string, error) {
	out, err := gitOutput(ctx, workDir, "diff", "--name-only", fmt.Sprintf("origin/%s...HEAD", targetBranch))
	if err != nil {
		return nil, fmt.Errorf("worker: git diff --name-only: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// diffSHAs computes the three SHAs a GitLab review prompt's diff header
// needs: the merge-base of the target branch and HEAD, and HEAD itself.
// base and start are always equal here since the worker diffs against a
// single fetched target ref, not a discussion-position-pinned base.
func diffSHAs(ctx context.Context, workDir, targetBranch string) (start, head, base string, err error) {
	start, err = gitOutput(ctx, workDir, "merge-base", "origin/"+targetBranch, "HEAD")
	if err != nil {
		return "", "", "", fmt.Errorf("worker: git merge-base: %w", err)
	}
	start = strings.TrimSpace(start)

	head, err = gitOutput(ctx, workDir, "rev-parse", "HEAD")
	if err != nil {
		return "", "", "", fmt.Errorf("worker: git rev-parse HEAD: %w", err)
	}
	head = strings.TrimSpace(head)

	return start, head, start, nil
}

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("%w: %s", err, string(exitErr.Stderr))
		}
		return "", err
	}
	return string(out), nil
}
