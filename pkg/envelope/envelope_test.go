package envelope_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globalcomix/claude-agent/pkg/envelope"
)

func TestEnvelope_MarshalTagged(t *testing.T) {
	t.Parallel()

	e := envelope.NewReview(envelope.Review{
		Project: "group/repo",
		MRIID:   "123",
		Action:  "open",
	})

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"review"`)
	assert.Contains(t, string(data), `"mr_iid":"123"`)
}

func TestEnvelope_RoundTrip(t *testing.T) {
	t.Parallel()

	cases := []envelope.Envelope{
		envelope.NewReview(envelope.Review{Project: "g/p", MRIID: "42", Action: "open", Platform: "gitlab"}),
		envelope.NewSentryFix(envelope.SentryFix{ShortID: "WEB-123", Organization: "acme"}),
		envelope.NewJiraTicket(envelope.JiraTicket{IssueKey: "PRJ-1", Summary: "fix it"}),
	}

	for _, want := range cases {
		data, err := json.Marshal(want)
		require.NoError(t, err)

		var got envelope.Envelope
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.Description(), got.Description())
	}
}

func TestEnvelope_LegacyUntaggedFallsBackToReview(t *testing.T) {
	t.Parallel()

	legacy := []byte(`{"gitlab_url":"https://gitlab.com","project":"g/p","mr_iid":"7","clone_url":"","source_branch":"f","target_branch":"main","title":"T","author":"alice","action":"open","platform":"gitlab"}`)

	var got envelope.Envelope
	require.NoError(t, json.Unmarshal(legacy, &got))
	require.Equal(t, envelope.KindReview, got.Kind)
	assert.Equal(t, "7", got.Review.MRIID)
}

func TestEnvelope_UnknownKindRejected(t *testing.T) {
	t.Parallel()

	var got envelope.Envelope
	err := json.Unmarshal([]byte(`{"type":"bogus"}`), &got)
	assert.ErrorIs(t, err, envelope.ErrUnknownKind)
}

func TestEnvelope_Description(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "review group/repo!42",
		envelope.NewReview(envelope.Review{Project: "group/repo", MRIID: "42"}).Description())
	assert.Equal(t, "sentry-fix WEB-123",
		envelope.NewSentryFix(envelope.SentryFix{ShortID: "WEB-123"}).Description())
	assert.Equal(t, "jira-ticket PRJ-9",
		envelope.NewJiraTicket(envelope.JiraTicket{IssueKey: "PRJ-9"}).Description())
}

func TestItem_NewItemAssignsIDAndZeroAttempts(t *testing.T) {
	t.Parallel()

	item := envelope.NewItem(envelope.NewReview(envelope.Review{}))
	assert.NotEmpty(t, item.ID)
	assert.Zero(t, item.Attempts)
	assert.False(t, item.CreatedAt.IsZero())
}
