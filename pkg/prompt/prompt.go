// Package prompt assembles the system prompt and context block handed to
// the external coding agent. Templates are chosen from a closed set keyed
// by (action, platform); the context block that follows is built by
// straight string concatenation in a fixed field order, never a
// general-purpose templating engine, so the field order stays reviewable
// in one place.
package prompt

import (
	"fmt"
	"strings"

	"github.com/globalcomix/claude-agent/pkg/sanitizer"
)

// Context carries every field a template may need. Only the fields
// relevant to a given (action, platform) pair are read; the rest are
// left zero.
type Context struct {
	Platform string // "gitlab" or "github"
	Action   string // "open", "update", "lint_fix", "comment", "sentry_fix", "jira_ticket"

	Project      string
	IssueID      string // MR/PR iid, or issue key
	Title        string
	Description  string
	SourceBranch string
	TargetBranch string
	Author       string

	// GitLab review diff SHAs, present only when all three are known.
	StartSHA string
	HeadSHA  string
	BaseSHA  string

	ChangedFiles []string
	Diff         string

	// Exactly one of these is populated, matching Action.
	Discussions    string // update
	Instruction    string // comment
	LinterOutput   string // lint_fix
	StacktraceTags string // sentry_fix
	TriggerComment string // jira_ticket
}

// key identifies a (action, platform) template pair.
type key struct {
	action   string
	platform string
}

var systemPrompts = map[key]string{
	{"open", "gitlab"}:        "You are reviewing a new GitLab merge request. Read the diff, flag bugs, security issues, and missed edge cases, then post inline comments via the GitLab API.",
	{"open", "github"}:        "You are reviewing a new GitHub pull request. Read the diff, flag bugs, security issues, and missed edge cases, then post inline comments via the GitHub API.",
	{"update", "gitlab"}:      "A GitLab merge request you previously reviewed was updated. Re-review the new diff and the unresolved discussion threads below, then respond only to what changed.",
	{"update", "github"}:      "A GitHub pull request you previously reviewed was updated. Re-review the new diff and the previous review comments below, then respond only to what changed.",
	{"lint_fix", "gitlab"}:    "A GitLab pipeline failed lint checks on this merge request's branch. Fix the reported issues directly in the working tree and commit the fix.",
	{"lint_fix", "github"}:    "A CI lint check failed on this pull request's branch. Fix the reported issues directly in the working tree and commit the fix.",
	{"comment", "gitlab"}:     "A comment on this GitLab merge request asked for your attention. Follow the instruction below.",
	{"comment", "github"}:     "A comment on this GitHub pull request asked for your attention. Follow the instruction below.",
	{"sentry_fix", "gitlab"}:  "A Sentry issue was reported against this project. Diagnose the root cause from the stacktrace and propose a fix on a new branch.",
	{"sentry_fix", "github"}:  "A Sentry issue was reported against this project. Diagnose the root cause from the stacktrace and propose a fix on a new branch.",
	{"jira_ticket", "gitlab"}: "A Jira ticket requested a change to this project. Implement it on a new branch per the description below.",
	{"jira_ticket", "github"}: "A Jira ticket requested a change to this project. Implement it on a new branch per the description below.",
}

// Build assembles the full prompt string: system prompt, header, optional
// description, diff SHAs (gitlab review only), changed files, diff,
// context-specific appendix, trailing task list.
func Build(ctx Context) string {
	var b strings.Builder

	b.WriteString(systemPrompt(ctx.Action, ctx.Platform))
	b.WriteString("\n\n")

	writeHeader(&b, ctx)

	if ctx.Description != "" {
		fmt.Fprintf(&b, "\nDescription:\n%s\n", sanitizer.SanitizeHTML(ctx.Description))
	}

	if ctx.Platform == "gitlab" && ctx.Action != "lint_fix" && ctx.Action != "sentry_fix" && ctx.Action != "jira_ticket" {
		if ctx.StartSHA != "" && ctx.HeadSHA != "" && ctx.BaseSHA != "" {
			fmt.Fprintf(&b, "\nDiff SHAs: start=%s head=%s base=%s\n", ctx.StartSHA, ctx.HeadSHA, ctx.BaseSHA)
		}
	}

	if len(ctx.ChangedFiles) > 0 {
		b.WriteString("\nChanged files:\n")
		for _, f := range ctx.ChangedFiles {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	if ctx.Diff != "" {
		fmt.Fprintf(&b, "\nDiff:\n```diff\n%s\n```\n", ctx.Diff)
	}

	writeAppendix(&b, ctx)
	writeTaskList(&b, ctx)

	return b.String()
}

func systemPrompt(action, platform string) string {
	if s, ok := systemPrompts[key{action, platform}]; ok {
		return s
	}
	if s, ok := systemPrompts[key{action, "gitlab"}]; ok {
		return s
	}
	return systemPrompts[key{"open", "gitlab"}]
}

func writeHeader(b *strings.Builder, ctx Context) {
	fmt.Fprintf(b, "Project: %s\n", ctx.Project)
	fmt.Fprintf(b, "Reference: %s\n", ctx.IssueID)
	fmt.Fprintf(b, "Title: %s\n", sanitizer.SanitizeHTML(ctx.Title))
	if ctx.SourceBranch != "" || ctx.TargetBranch != "" {
		fmt.Fprintf(b, "Branch: %s -> %s\n", ctx.SourceBranch, ctx.TargetBranch)
	}
	if ctx.Author != "" {
		fmt.Fprintf(b, "Author: %s\n", ctx.Author)
	}
}

func writeAppendix(b *strings.Builder, ctx Context) {
	switch ctx.Action {
	case "update":
		if ctx.Discussions != "" {
			fmt.Fprintf(b, "\nUnresolved discussion threads:\n%s\n", ctx.Discussions)
		}
	case "comment":
		if ctx.Instruction != "" {
			fmt.Fprintf(b, "\nInstruction:\n%s\n", sanitizer.SanitizeHTML(ctx.Instruction))
		}
	case "lint_fix":
		if ctx.LinterOutput != "" {
			fmt.Fprintf(b, "\nLinter output:\n```\n%s\n```\n", ctx.LinterOutput)
		}
	case "sentry_fix":
		if ctx.StacktraceTags != "" {
			fmt.Fprintf(b, "\nStacktrace and tags:\n%s\n", ctx.StacktraceTags)
		}
	case "jira_ticket":
		if ctx.TriggerComment != "" {
			fmt.Fprintf(b, "\nTrigger comment: %s\n", sanitizer.SanitizeHTML(ctx.TriggerComment))
		}
	}
}

func writeTaskList(b *strings.Builder, ctx Context) {
	b.WriteString("\nTasks:\n")
	switch ctx.Action {
	case "lint_fix":
		b.WriteString("1. Fix every issue reported above.\n2. Commit the fix with a descriptive message.\n3. Push the branch.\n")
	case "sentry_fix", "jira_ticket":
		b.WriteString("1. Diagnose the root cause.\n2. Implement a fix on a new branch.\n3. Commit and push the branch.\n")
	default:
		b.WriteString("1. Review the diff for correctness, security, and missed edge cases.\n2. Post inline comments for anything that needs attention.\n3. Summarize the review.\n")
	}
}
