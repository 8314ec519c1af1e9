package prompt_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/globalcomix/claude-agent/pkg/prompt"
)

func TestBuild_GitLabOpen_IncludesDiffAndChangedFiles(t *testing.T) {
	t.Parallel()

	out := prompt.Build(prompt.Context{
		Platform:     "gitlab",
		Action:       "open",
		Project:      "group/project",
		IssueID:      "42",
		Title:        "Add widgets",
		Description:  "Adds the widget feature",
		SourceBranch: "feature/widgets",
		TargetBranch: "main",
		ChangedFiles: []string{"a.go", "b.go"},
		Diff:         "diff --git a/a.go b/a.go",
	})

	assert.Contains(t, out, "reviewing a new GitLab merge request")
	assert.Contains(t, out, "Project: group/project")
	assert.Contains(t, out, "Reference: 42")
	assert.Contains(t, out, "Adds the widget feature")
	assert.Contains(t, out, "- a.go")
	assert.Contains(t, out, "- b.go")
	assert.Contains(t, out, "diff --git a/a.go b/a.go")
}

func TestBuild_GitLabOpen_DiffSHAsOnlyWhenAllThreePresent(t *testing.T) {
	t.Parallel()

	withAll := prompt.Build(prompt.Context{
		Platform: "gitlab", Action: "open",
		StartSHA: "aaa", HeadSHA: "bbb", BaseSHA: "ccc",
	})
	assert.Contains(t, withAll, "Diff SHAs: start=aaa head=bbb base=ccc")

	withoutAll := prompt.Build(prompt.Context{
		Platform: "gitlab", Action: "open",
		StartSHA: "aaa", HeadSHA: "bbb",
	})
	assert.NotContains(t, withoutAll, "Diff SHAs")
}

func TestBuild_GitHubOpen_NeverIncludesDiffSHAs(t *testing.T) {
	t.Parallel()

	out := prompt.Build(prompt.Context{
		Platform: "github", Action: "open",
		StartSHA: "aaa", HeadSHA: "bbb", BaseSHA: "ccc",
	})
	assert.NotContains(t, out, "Diff SHAs")
}

func TestBuild_LintFix_UsesLinterAppendixAndTaskList(t *testing.T) {
	t.Parallel()

	out := prompt.Build(prompt.Context{
		Platform:     "gitlab",
		Action:       "lint_fix",
		LinterOutput: "golangci-lint:\nfoo.go:1: unused import",
	})

	assert.Contains(t, out, "Linter output:")
	assert.Contains(t, out, "unused import")
	assert.Contains(t, out, "Fix every issue reported above")
	assert.NotContains(t, out, "Diff SHAs")
}

func TestBuild_Comment_UsesInstructionAppendix(t *testing.T) {
	t.Parallel()

	out := prompt.Build(prompt.Context{
		Platform:    "github",
		Action:      "comment",
		Instruction: "please also add a test",
	})

	assert.Contains(t, out, "Instruction:")
	assert.Contains(t, out, "please also add a test")
}

func TestBuild_SentryFix_UsesStacktraceAppendixAndDiagnoseTaskList(t *testing.T) {
	t.Parallel()

	out := prompt.Build(prompt.Context{
		Platform:       "gitlab",
		Action:         "sentry_fix",
		StacktraceTags: "culprit: views.render",
	})

	assert.Contains(t, out, "Stacktrace and tags:")
	assert.Contains(t, out, "culprit: views.render")
	assert.Contains(t, out, "Diagnose the root cause")
}

func TestBuild_JiraTicket_UsesTriggerCommentAppendix(t *testing.T) {
	t.Parallel()

	out := prompt.Build(prompt.Context{
		Platform:       "github",
		Action:         "jira_ticket",
		TriggerComment: "please prioritize this",
	})

	assert.Contains(t, out, "Trigger comment: please prioritize this")
}

func TestBuild_SanitizesUntrustedText(t *testing.T) {
	t.Parallel()

	out := prompt.Build(prompt.Context{
		Platform:    "gitlab",
		Action:      "open",
		Title:       "<script>alert(1)</script>",
		Description: "<img src=x onerror=alert(1)>",
	})

	assert.False(t, strings.Contains(out, "<script>"))
	assert.False(t, strings.Contains(out, "onerror"))
}

func TestBuild_UnknownActionFallsBackToGitLabSystemPrompt(t *testing.T) {
	t.Parallel()

	out := prompt.Build(prompt.Context{Platform: "gitlab", Action: "something_unknown"})
	assert.Contains(t, out, "reviewing a new GitLab merge request")
}
