package normalize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/globalcomix/claude-agent/pkg/normalize"
)

func makeSentryEvent(action, category string) *normalize.SentryWebhookEvent {
	return &normalize.SentryWebhookEvent{
		Action: action,
		Data: normalize.SentryIssueData{
			Issue: normalize.SentryIssue{
				ID:            "12345",
				ShortID:       "WEB-123",
				Title:         "NullPointerException",
				Culprit:       "app/Services/FooService.php",
				Platform:      "php",
				IssueCategory: category,
				Project:       normalize.SentryProject{Slug: "globalcomix-web"},
			},
		},
	}
}

func TestSentryShouldFix(t *testing.T) {
	t.Parallel()
	assert.True(t, makeSentryEvent("created", "error").ShouldFix())
	assert.True(t, makeSentryEvent("unresolved", "error").ShouldFix())
	assert.False(t, makeSentryEvent("resolved", "error").ShouldFix())
	assert.False(t, makeSentryEvent("assigned", "error").ShouldFix())
	assert.False(t, makeSentryEvent("created", "performance").ShouldFix())
	assert.False(t, makeSentryEvent("created", "cron").ShouldFix())
}

func TestSentryBuildFix(t *testing.T) {
	t.Parallel()

	mapping := normalize.SentryProjectMapping{
		SentryProject: "globalcomix-web",
		CloneURL:      "https://gitlab.com/Globalcomix/gc.git",
		VCSPlatform:   "gitlab",
		VCSProject:    "Globalcomix/gc",
		TargetBranch:  "master",
	}
	env := normalize.BuildSentryFix(makeSentryEvent("created", "error"), "globalcomix", mapping)
	assert.Equal(t, "WEB-123", env.SentryFix.ShortID)
	assert.Equal(t, "globalcomix", env.SentryFix.Organization)
	assert.Equal(t, "gitlab", env.SentryFix.VCSPlatform)
}
