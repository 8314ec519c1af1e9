package normalize

import (
	"encoding/json"
	"strings"

	"github.com/globalcomix/claude-agent/pkg/envelope"
)

// DefaultBotMention is the default display-name trigger text Jira comments
// are scanned for.
const DefaultBotMention = "@claude-agent"

// JiraWebhookEvent is a Jira Cloud webhook payload for comment events.
type JiraWebhookEvent struct {
	WebhookEvent string       `json:"webhookEvent"`
	Issue        JiraIssue    `json:"issue"`
	Comment      *JiraComment `json:"comment,omitempty"`
}

// JiraIssue is the subset of a Jira issue object this dispatcher uses.
type JiraIssue struct {
	ID      string          `json:"id"`
	Key     string          `json:"key"`
	SelfURL string          `json:"self"`
	Fields  JiraIssueFields `json:"fields"`
}

// JiraIssueFields is the subset of a Jira issue's fields this dispatcher uses.
type JiraIssueFields struct {
	Summary     string           `json:"summary"`
	Description json.RawMessage  `json:"description,omitempty"`
	IssueType   *JiraIssueType   `json:"issuetype,omitempty"`
	Project     *JiraProjectRef  `json:"project,omitempty"`
	Priority    *JiraPriority    `json:"priority,omitempty"`
	Status      *JiraStatus      `json:"status,omitempty"`
	Labels      []string         `json:"labels,omitempty"`
}

// JiraIssueType names the type of a Jira issue (bug, task, story, ...).
type JiraIssueType struct {
	Name string `json:"name"`
}

// JiraProjectRef identifies the project an issue belongs to.
type JiraProjectRef struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// JiraPriority names the priority of a Jira issue.
type JiraPriority struct {
	Name string `json:"name"`
}

// JiraStatus names the workflow status of a Jira issue.
type JiraStatus struct {
	Name string `json:"name"`
}

// JiraComment is a Jira issue comment, whose body may be plain text or
// Atlassian Document Format.
type JiraComment struct {
	ID     string          `json:"id"`
	Body   json.RawMessage `json:"body"`
	Author *JiraUserRef    `json:"author,omitempty"`
}

// JiraUserRef is the subset of a Jira user object this dispatcher uses.
type JiraUserRef struct {
	AccountID   string `json:"accountId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// BodyAsText extracts plain text from the comment body, which Jira Cloud
// encodes as Atlassian Document Format (a nested JSON structure) rather
// than as a plain string.
func (c *JiraComment) BodyAsText() string {
	var v any
	if err := json.Unmarshal(c.Body, &v); err != nil {
		return ""
	}
	return ExtractTextFromADF(v)
}

// MentionsBot reports whether the comment body mentions the bot, either by
// its display-name trigger text or by its Jira Cloud account ID — ADF
// mention nodes store the account ID rather than the rendered display name.
func (c *JiraComment) MentionsBot(mention, accountID string) bool {
	text := c.BodyAsText()
	if mention != "" && strings.Contains(strings.ToLower(text), strings.ToLower(mention)) {
		return true
	}
	return accountID != "" && strings.Contains(string(c.Body), accountID)
}

// ExtractTextFromADF recursively extracts the text content of an Atlassian
// Document Format value: a JSON tree of objects with "text" fields, mention
// nodes carrying their rendered text under attrs.text, and nested "content"
// arrays.
func ExtractTextFromADF(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]any:
		var b strings.Builder
		if t, ok := v["text"].(string); ok {
			b.WriteString(t)
		}
		if v["type"] == "mention" {
			if attrs, ok := v["attrs"].(map[string]any); ok {
				if t, ok := attrs["text"].(string); ok {
					b.WriteString(t)
				}
			}
		}
		if content, ok := v["content"].([]any); ok {
			for _, item := range content {
				b.WriteString(ExtractTextFromADF(item))
			}
		}
		return b.String()
	case []any:
		var b strings.Builder
		for _, item := range v {
			b.WriteString(ExtractTextFromADF(item))
		}
		return b.String()
	default:
		return ""
	}
}

// ShouldTrigger reports whether a Jira webhook event should trigger the bot:
// any "comment_"-prefixed event whose comment mentions the bot.
func (e *JiraWebhookEvent) ShouldTrigger(mention, accountID string) bool {
	if !strings.HasPrefix(e.WebhookEvent, "comment_") {
		return false
	}
	if e.Comment == nil {
		return false
	}
	return e.Comment.MentionsBot(mention, accountID)
}

// JiraBaseURL derives the Jira instance's base URL from the issue's API
// self-link (e.g. ".../rest/api/3/issue/12345" -> the part before "/rest/").
func (e *JiraWebhookEvent) JiraBaseURL() string {
	base, _, found := strings.Cut(e.Issue.SelfURL, "/rest/")
	if !found {
		return ""
	}
	return base
}

// IssueWebURL builds the browser-facing URL to the issue.
func (e *JiraWebhookEvent) IssueWebURL() string {
	base := e.JiraBaseURL()
	if base == "" {
		return ""
	}
	return base + "/browse/" + e.Issue.Key
}

// JiraProjectMapping maps a Jira project key to the VCS repository its
// tickets should be implemented against.
type JiraProjectMapping struct {
	JiraProject  string `json:"jira_project"`
	CloneURL     string `json:"clone_url"`
	VCSPlatform  string `json:"vcs_platform"`
	VCSProject   string `json:"vcs_project"`
	TargetBranch string `json:"target_branch"`
}

// BuildJiraTicket converts a Jira webhook event into a JiraTicket envelope
// using the matched project mapping.
func BuildJiraTicket(e *JiraWebhookEvent, mapping JiraProjectMapping) envelope.Envelope {
	fields := e.Issue.Fields

	var description string
	if len(fields.Description) > 0 {
		var v any
		if err := json.Unmarshal(fields.Description, &v); err == nil {
			description = ExtractTextFromADF(v)
		}
	}

	issueType := "Unknown"
	if fields.IssueType != nil {
		issueType = fields.IssueType.Name
	}

	status := "Unknown"
	if fields.Status != nil {
		status = fields.Status.Name
	}

	var priority string
	if fields.Priority != nil {
		priority = fields.Priority.Name
	}

	var triggerComment, triggerAuthor string
	if e.Comment != nil {
		triggerComment = e.Comment.BodyAsText()
		if e.Comment.Author != nil {
			triggerAuthor = e.Comment.Author.DisplayName
		}
	}

	t := envelope.JiraTicket{
		IssueKey:       e.Issue.Key,
		IssueID:        e.Issue.ID,
		Summary:        fields.Summary,
		Description:    description,
		IssueType:      issueType,
		Priority:       priority,
		Status:         status,
		Labels:         fields.Labels,
		WebURL:         e.IssueWebURL(),
		JiraBaseURL:    e.JiraBaseURL(),
		TriggerComment: triggerComment,
		TriggerAuthor:  triggerAuthor,
		CloneURL:       mapping.CloneURL,
		TargetBranch:   mapping.TargetBranch,
		VCSPlatform:    mapping.VCSPlatform,
		VCSProject:     mapping.VCSProject,
	}
	return envelope.NewJiraTicket(t)
}
