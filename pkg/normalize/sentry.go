package normalize

import "github.com/globalcomix/claude-agent/pkg/envelope"

// SentryWebhookEvent is a Sentry issue alert webhook payload.
type SentryWebhookEvent struct {
	Action       string         `json:"action"`
	Installation SentryInstall  `json:"installation"`
	Data         SentryIssueData `json:"data"`
}

// SentryInstall identifies the Sentry internal integration that sent the event.
type SentryInstall struct {
	UUID string `json:"uuid"`
}

// SentryIssueData wraps the issue payload of a Sentry webhook event.
type SentryIssueData struct {
	Issue SentryIssue `json:"issue"`
}

// SentryIssue is the subset of a Sentry issue object this dispatcher uses.
type SentryIssue struct {
	ID            string        `json:"id"`
	ShortID       string        `json:"shortId"`
	Title         string        `json:"title"`
	Culprit       string        `json:"culprit"`
	Platform      string        `json:"platform"`
	Status        string        `json:"status"`
	IssueType     string        `json:"type,omitempty"`
	IssueCategory string        `json:"issueCategory,omitempty"`
	WebURL        string        `json:"webUrl,omitempty"`
	Project       SentryProject `json:"project"`
}

// SentryProject is the subset of a Sentry project object this dispatcher uses.
type SentryProject struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// unfixableCategories lists Sentry issue categories this dispatcher cannot
// meaningfully remediate with a code change.
var unfixableCategories = map[string]bool{
	"performance": true,
	"cron":        true,
	"replay":      true,
	"feedback":    true,
	"uptime":      true,
}

// ShouldFix reports whether a Sentry webhook event should trigger a fix job.
func (e *SentryWebhookEvent) ShouldFix() bool {
	switch e.Action {
	case "created", "unresolved":
	default:
		return false
	}
	if unfixableCategories[e.Data.Issue.IssueCategory] {
		return false
	}
	return true
}

// SentryProjectMapping maps a Sentry project slug to the VCS repository its
// issues should be fixed against.
type SentryProjectMapping struct {
	SentryProject string `json:"sentry_project"`
	CloneURL      string `json:"clone_url"`
	VCSPlatform   string `json:"vcs_platform"`
	VCSProject    string `json:"vcs_project"`
	TargetBranch  string `json:"target_branch"`
}

// BuildSentryFix converts a Sentry webhook event into a SentryFix envelope
// using the matched project mapping.
func BuildSentryFix(e *SentryWebhookEvent, organization string, mapping SentryProjectMapping) envelope.Envelope {
	issue := e.Data.Issue
	s := envelope.SentryFix{
		IssueID:       issue.ID,
		ShortID:       issue.ShortID,
		Title:         issue.Title,
		Culprit:       issue.Culprit,
		Platform:      issue.Platform,
		IssueType:     issue.IssueType,
		IssueCategory: issue.IssueCategory,
		WebURL:        issue.WebURL,
		ProjectSlug:   issue.Project.Slug,
		Organization:  organization,
		CloneURL:      mapping.CloneURL,
		TargetBranch:  mapping.TargetBranch,
		VCSPlatform:   mapping.VCSPlatform,
		VCSProject:    mapping.VCSProject,
	}
	return envelope.NewSentryFix(s)
}
