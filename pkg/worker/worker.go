// Package worker implements the ephemeral Kubernetes Job process: decode
// the envelope it was handed, clone the repository, gather whatever
// context its job kind needs, assemble a prompt, and invoke the external
// coding agent once. One process handles exactly one job and exits.
package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/globalcomix/claude-agent/pkg/envelope"
	"github.com/globalcomix/claude-agent/pkg/prompt"
	"github.com/globalcomix/claude-agent/pkg/upstream/github"
	"github.com/globalcomix/claude-agent/pkg/upstream/gitlab"
	"github.com/globalcomix/claude-agent/pkg/upstream/sentry"
)

// Run executes the job described by cfg.Envelope and returns the process
// exit code: 0 on success, the agent's own exit code when it ran and
// failed, or 1 for a worker-side error that prevented the agent from
// running at all.
func Run(ctx context.Context, cfg *Config) int {
	env := cfg.Envelope

	var pctx prompt.Context
	var err error

	switch env.Kind {
	case envelope.KindReview:
		pctx, err = prepareReview(ctx, cfg, env.Review)
	case envelope.KindSentryFix:
		pctx, err = prepareSentryFix(ctx, cfg, env.SentryFix)
	case envelope.KindJiraTicket:
		pctx, err = prepareJiraTicket(ctx, cfg, env.JiraTicket)
	default:
		err = fmt.Errorf("worker: unknown envelope kind %q", env.Kind)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if pctx.Platform == "" {
		// prepareReview returns a zero Context (Platform unset) when a
		// lint_fix job found nothing to report: no agent invocation needed.
		return 0
	}

	return runAgent(ctx, cfg, pctx)
}

// credentialsFor returns the upstream token and a clone URL with it
// embedded, for whichever platform a job targets.
func credentialsFor(cfg *Config, platform, cloneURL string) (string, string) {
	switch platform {
	case "github":
		return cfg.GitHubToken, github.InjectCredentials(cloneURL, cfg.GitHubToken)
	default:
		return cfg.GitLabToken, gitlab.InjectCredentials(cloneURL, cfg.GitLabToken)
	}
}

func prepareReview(ctx context.Context, cfg *Config, r *envelope.Review) (prompt.Context, error) {
	_, authURL := credentialsFor(cfg, r.Platform, r.CloneURL)

	if err := cloneAndFetch(ctx, authURL, r.SourceBranch, r.TargetBranch, cfg.WorkDir); err != nil {
		return prompt.Context{}, err
	}

	files, err := changedFiles(ctx, cfg.WorkDir, r.TargetBranch)
	if err != nil {
		return prompt.Context{}, err
	}

	pctx := prompt.Context{
		Platform:     r.Platform,
		Action:       r.Action,
		Project:      r.Project,
		IssueID:      r.MRIID,
		Title:        r.Title,
		Description:  r.Description,
		SourceBranch: r.SourceBranch,
		TargetBranch: r.TargetBranch,
		Author:       r.Author,
		ChangedFiles: files,
	}

	if r.Action == "lint_fix" {
		output := runLinters(ctx, cfg.WorkDir, files)
		if output == "" {
			return prompt.Context{}, nil
		}
		pctx.LinterOutput = output
		return pctx, nil
	}

	d, err := diff(ctx, cfg.WorkDir, r.TargetBranch)
	if err != nil {
		return prompt.Context{}, err
	}
	pctx.Diff = d

	if r.Action == "comment" {
		pctx.Instruction = r.TriggerComment
	}

	switch {
	case r.Action == "update" && r.Platform == "gitlab":
		pctx.Discussions, err = fetchDiscussionsText(ctx, cfg, r.BaseURL, r.Project, r.MRIID)
		if err != nil {
			return prompt.Context{}, err
		}
	case r.Action == "update" && r.Platform == "github":
		pctx.Discussions, err = fetchReviewCommentsText(ctx, cfg, r.Project, r.MRIID)
		if err != nil {
			return prompt.Context{}, err
		}
	}

	if r.Platform == "gitlab" {
		start, head, base, err := diffSHAs(ctx, cfg.WorkDir, r.TargetBranch)
		if err != nil {
			return prompt.Context{}, err
		}
		pctx.StartSHA, pctx.HeadSHA, pctx.BaseSHA = start, head, base
	}

	return pctx, nil
}

func fetchDiscussionsText(ctx context.Context, cfg *Config, baseURL, project, mrIID string) (string, error) {
	client := gitlab.New(baseURL, cfg.GitLabToken, nil)
	iid, err := strconv.ParseInt(mrIID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("worker: invalid mr iid %q: %w", mrIID, err)
	}
	discussions, err := client.FetchUnresolvedDiscussions(ctx, project, iid)
	if err != nil {
		return "", fmt.Errorf("worker: fetch discussions: %w", err)
	}

	var b strings.Builder
	for _, d := range discussions {
		for _, n := range d.Notes {
			fmt.Fprintf(&b, "- [%s] %s\n", n.Author.Username, n.Body)
		}
	}
	return b.String(), nil
}

func fetchReviewCommentsText(ctx context.Context, cfg *Config, ownerRepo, prNumber string) (string, error) {
	client := github.New(cfg.GitHubToken, nil)
	number, err := strconv.Atoi(prNumber)
	if err != nil {
		return "", fmt.Errorf("worker: invalid pr number %q: %w", prNumber, err)
	}
	comments, err := client.FetchReviewComments(ctx, ownerRepo, number)
	if err != nil {
		return "", fmt.Errorf("worker: fetch review comments: %w", err)
	}

	var b strings.Builder
	for _, c := range comments {
		fmt.Fprintf(&b, "- %s [%s]: %s\n", c.Path, c.Author, c.Body)
	}
	return b.String(), nil
}

func prepareSentryFix(ctx context.Context, cfg *Config, s *envelope.SentryFix) (prompt.Context, error) {
	_, authURL := credentialsFor(cfg, s.VCSPlatform, s.CloneURL)

	if err := cloneAndFetch(ctx, authURL, s.TargetBranch, s.TargetBranch, cfg.WorkDir); err != nil {
		return prompt.Context{}, err
	}

	metadata := fmt.Sprintf("culprit: %s\nplatform: %s\nissue type: %s\ncategory: %s\nurl: %s", s.Culprit, s.Platform, s.IssueType, s.IssueCategory, s.WebURL)

	return prompt.Context{
		Platform:       s.VCSPlatform,
		Action:         "sentry_fix",
		Project:        s.VCSProject,
		IssueID:        s.ShortID,
		Title:          s.Title,
		TargetBranch:   s.TargetBranch,
		StacktraceTags: metadata + "\n\n" + fetchStacktraceTags(ctx, cfg, s.IssueID),
	}, nil
}

// fetchStacktraceTags fetches the issue's latest event and renders its
// stacktrace and tags for the sentry-fix prompt appendix. A fetch failure
// degrades to the envelope metadata alone rather than failing the job;
// the agent can still work from the issue's culprit/title without a
// stacktrace, just less precisely.
func fetchStacktraceTags(ctx context.Context, cfg *Config, issueID string) string {
	if cfg.SentryAuthToken == "" || issueID == "" {
		return ""
	}

	client := sentry.New(cfg.SentryAuthToken, nil)
	event, err := client.FetchLatestEvent(ctx, issueID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker: failed to fetch sentry event, continuing without stacktrace: %v\n", err)
		return ""
	}

	var b strings.Builder
	b.WriteString(sentry.FormatStacktrace(event))
	for _, tag := range sentry.ExtractTags(event) {
		fmt.Fprintf(&b, "%s: %s\n", tag.Key, tag.Value)
	}
	return b.String()
}

func prepareJiraTicket(ctx context.Context, cfg *Config, j *envelope.JiraTicket) (prompt.Context, error) {
	_, authURL := credentialsFor(cfg, j.VCSPlatform, j.CloneURL)

	if err := cloneAndFetch(ctx, authURL, j.TargetBranch, j.TargetBranch, cfg.WorkDir); err != nil {
		return prompt.Context{}, err
	}

	return prompt.Context{
		Platform:       j.VCSPlatform,
		Action:         "jira_ticket",
		Project:        j.VCSProject,
		IssueID:        j.IssueKey,
		Title:          j.Summary,
		Description:    j.Description,
		TargetBranch:   j.TargetBranch,
		TriggerComment: j.TriggerComment,
		Author:         j.TriggerAuthor,
	}, nil
}

// runAgent invokes the configured agent binary with the assembled prompt
// as its sole argument, running in the cloned repository and streaming
// its own stdout/stderr straight through. The worker never parses the
// agent's output; it only mirrors the process's exit status.
func runAgent(ctx context.Context, cfg *Config, pctx prompt.Context) int {
	text := prompt.Build(pctx)

	cmd := exec.CommandContext(ctx, cfg.AgentBinary, text)
	cmd.Dir = cfg.WorkDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "worker: failed to run agent: %v\n", err)
		return 1
	}
	return 0
}
