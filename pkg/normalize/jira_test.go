package normalize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/globalcomix/claude-agent/pkg/normalize"
)

func TestExtractTextFromADF_Simple(t *testing.T) {
	t.Parallel()

	adf := map[string]any{
		"type":    "doc",
		"version": 1,
		"content": []any{
			map[string]any{
				"type": "paragraph",
				"content": []any{
					map[string]any{"type": "text", "text": "Hello "},
					map[string]any{"type": "mention", "attrs": map[string]any{"id": "123", "text": "@claude-agent"}},
					map[string]any{"type": "text", "text": " please fix this"},
				},
			},
		},
	}

	text := normalize.ExtractTextFromADF(adf)
	assert.Contains(t, text, "Hello")
	assert.Contains(t, text, "@claude-agent")
	assert.Contains(t, text, "please fix this")
}

func TestExtractTextFromADF_PlainString(t *testing.T) {
	t.Parallel()

	text := normalize.ExtractTextFromADF("@claude-agent please help")
	assert.Equal(t, "@claude-agent please help", text)
}

func TestJiraComment_MentionsBot(t *testing.T) {
	t.Parallel()

	c := &normalize.JiraComment{
		Body: []byte(`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"mention","attrs":{"text":"@claude-agent"}}]}]}`),
	}
	assert.True(t, c.MentionsBot(normalize.DefaultBotMention, ""))
}

func TestJiraComment_MentionsBotByAccountID(t *testing.T) {
	t.Parallel()

	c := &normalize.JiraComment{
		Body: []byte(`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"mention","attrs":{"id":"712020:abc","text":"~accountid:712020:abc"}}]}]}`),
	}
	assert.True(t, c.MentionsBot(normalize.DefaultBotMention, "712020:abc"))
}

func TestJiraComment_NoMention(t *testing.T) {
	t.Parallel()

	c := &normalize.JiraComment{
		Body: []byte(`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Just a regular comment"}]}]}`),
	}
	assert.False(t, c.MentionsBot(normalize.DefaultBotMention, ""))
}

func TestJiraShouldTrigger(t *testing.T) {
	t.Parallel()

	event := &normalize.JiraWebhookEvent{
		WebhookEvent: "comment_created",
		Issue:        normalize.JiraIssue{ID: "12345", Key: "GC-100"},
		Comment: &normalize.JiraComment{
			Body: []byte(`"@claude-agent fix this"`),
		},
	}
	assert.True(t, event.ShouldTrigger(normalize.DefaultBotMention, ""))

	noMention := &normalize.JiraWebhookEvent{
		WebhookEvent: "comment_created",
		Issue:        normalize.JiraIssue{ID: "12345", Key: "GC-100"},
		Comment:      &normalize.JiraComment{Body: []byte(`"just a comment"`)},
	}
	assert.False(t, noMention.ShouldTrigger(normalize.DefaultBotMention, ""))

	issueEvent := &normalize.JiraWebhookEvent{
		WebhookEvent: "issue_updated",
		Issue:        normalize.JiraIssue{ID: "12345", Key: "GC-100"},
	}
	assert.False(t, issueEvent.ShouldTrigger(normalize.DefaultBotMention, ""))
}

func TestJiraBaseURL(t *testing.T) {
	t.Parallel()

	event := &normalize.JiraWebhookEvent{
		Issue: normalize.JiraIssue{
			Key:     "GC-100",
			SelfURL: "https://globalcomix.atlassian.net/rest/api/3/issue/12345",
		},
	}
	assert.Equal(t, "https://globalcomix.atlassian.net", event.JiraBaseURL())
	assert.Equal(t, "https://globalcomix.atlassian.net/browse/GC-100", event.IssueWebURL())
}

func TestBuildJiraTicket(t *testing.T) {
	t.Parallel()

	event := &normalize.JiraWebhookEvent{
		WebhookEvent: "comment_created",
		Issue: normalize.JiraIssue{
			ID:      "12345",
			Key:     "GC-100",
			SelfURL: "https://globalcomix.atlassian.net/rest/api/3/issue/12345",
			Fields: normalize.JiraIssueFields{
				Summary: "Test issue",
				Labels:  []string{"bug"},
			},
		},
		Comment: &normalize.JiraComment{
			Body:   []byte(`"@claude-agent fix this"`),
			Author: &normalize.JiraUserRef{DisplayName: "Jane Doe"},
		},
	}
	mapping := normalize.JiraProjectMapping{
		JiraProject:  "GC",
		CloneURL:     "https://gitlab.com/Globalcomix/gc.git",
		VCSPlatform:  "gitlab",
		VCSProject:   "Globalcomix/gc",
		TargetBranch: "master",
	}

	env := normalize.BuildJiraTicket(event, mapping)
	assert.Equal(t, "GC-100", env.JiraTicket.IssueKey)
	assert.Equal(t, "Unknown", env.JiraTicket.IssueType)
	assert.Equal(t, "Unknown", env.JiraTicket.Status)
	assert.Equal(t, "Jane Doe", env.JiraTicket.TriggerAuthor)
	assert.Equal(t, "gitlab", env.JiraTicket.VCSPlatform)
}
