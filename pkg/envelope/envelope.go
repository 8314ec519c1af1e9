// Package envelope defines the unified Job Envelope — the tagged-union
// payload queued for every merge/pull request review, Sentry issue fix,
// and Jira ticket job — along with its queue and failure wrappers.
package envelope

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the Job Envelope variants on the wire.
type Kind string

const (
	KindReview     Kind = "review"
	KindSentryFix  Kind = "sentry_fix"
	KindJiraTicket Kind = "jira_ticket"
)

// Review is an MR/PR review (or lint-fix/comment-driven) job.
type Review struct {
	BaseURL        string `json:"gitlab_url"`
	Project        string `json:"project"`
	MRIID          string `json:"mr_iid"`
	CloneURL       string `json:"clone_url"`
	SourceBranch   string `json:"source_branch"`
	TargetBranch   string `json:"target_branch"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Author         string `json:"author"`
	Action         string `json:"action"`
	Platform       string `json:"platform"`
	TriggerComment string `json:"trigger_comment,omitempty"`
}

// SentryFix is an issue-remediation job derived from a Sentry issue alert.
type SentryFix struct {
	IssueID        string `json:"issue_id"`
	ShortID        string `json:"short_id"`
	Title          string `json:"title"`
	Culprit        string `json:"culprit"`
	Platform       string `json:"platform"`
	IssueType      string `json:"issue_type"`
	IssueCategory  string `json:"issue_category"`
	WebURL         string `json:"web_url"`
	ProjectSlug    string `json:"project_slug"`
	Organization   string `json:"organization"`
	CloneURL       string `json:"clone_url"`
	TargetBranch   string `json:"target_branch"`
	VCSPlatform    string `json:"vcs_platform"`
	VCSProject     string `json:"vcs_project"`
}

// JiraTicket is a ticket-driven change job.
type JiraTicket struct {
	IssueKey       string   `json:"issue_key"`
	IssueID        string   `json:"issue_id"`
	Summary        string   `json:"summary"`
	Description    string   `json:"description,omitempty"`
	IssueType      string   `json:"issue_type"`
	Priority       string   `json:"priority,omitempty"`
	Status         string   `json:"status"`
	Labels         []string `json:"labels,omitempty"`
	WebURL         string   `json:"web_url"`
	JiraBaseURL    string   `json:"jira_base_url"`
	TriggerComment string   `json:"trigger_comment,omitempty"`
	TriggerAuthor  string   `json:"trigger_author,omitempty"`
	CloneURL       string   `json:"clone_url"`
	TargetBranch   string   `json:"target_branch"`
	VCSPlatform    string   `json:"vcs_platform"`
	VCSProject     string   `json:"vcs_project"`
}

// Envelope is the tagged-union Job Envelope. Exactly one of Review,
// SentryFix, or JiraTicket is populated, matching Kind.
type Envelope struct {
	Kind       Kind
	Review     *Review
	SentryFix  *SentryFix
	JiraTicket *JiraTicket
}

// NewReview wraps a Review payload in an Envelope.
func NewReview(r Review) Envelope { return Envelope{Kind: KindReview, Review: &r} }

// NewSentryFix wraps a SentryFix payload in an Envelope.
func NewSentryFix(s SentryFix) Envelope { return Envelope{Kind: KindSentryFix, SentryFix: &s} }

// NewJiraTicket wraps a JiraTicket payload in an Envelope.
func NewJiraTicket(j JiraTicket) Envelope { return Envelope{Kind: KindJiraTicket, JiraTicket: &j} }

// Description returns a short human-readable summary for logging.
func (e Envelope) Description() string {
	switch e.Kind {
	case KindReview:
		return "review " + e.Review.Project + "!" + e.Review.MRIID
	case KindSentryFix:
		return "sentry-fix " + e.SentryFix.ShortID
	case KindJiraTicket:
		return "jira-ticket " + e.JiraTicket.IssueKey
	default:
		return "unknown"
	}
}

// IssueID returns the MR/PR id, short id, or issue key used in job naming.
func (e Envelope) IssueID() string {
	switch e.Kind {
	case KindReview:
		return e.Review.MRIID
	case KindSentryFix:
		return e.SentryFix.ShortID
	case KindJiraTicket:
		return e.JiraTicket.IssueKey
	default:
		return ""
	}
}

// JobPrefix returns the Kubernetes Job name prefix for this envelope kind.
func (e Envelope) JobPrefix() string {
	switch e.Kind {
	case KindReview:
		return "claude-review"
	case KindSentryFix:
		return "claude-sentry"
	case KindJiraTicket:
		return "claude-jira"
	default:
		return "claude-agent"
	}
}

type wireEnvelope struct {
	Type       Kind        `json:"type"`
	Review     *Review     `json:"-"`
	SentryFix  *SentryFix  `json:"-"`
	JiraTicket *JiraTicket `json:"-"`
}

// MarshalJSON writes the envelope as a flat object carrying the variant's
// fields alongside a "type" discriminator, matching the original tagged
// wire format (serde's internally-tagged enum representation).
func (e Envelope) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindReview:
		return marshalTagged(e.Kind, e.Review)
	case KindSentryFix:
		return marshalTagged(e.Kind, e.SentryFix)
	case KindJiraTicket:
		return marshalTagged(e.Kind, e.JiraTicket)
	default:
		return nil, ErrUnknownKind
	}
}

func marshalTagged(kind Kind, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	tagged := map[string]json.RawMessage{}
	for k, v := range m {
		tagged[k] = v
	}
	typeJSON, _ := json.Marshal(kind)
	tagged["type"] = typeJSON
	return json.Marshal(tagged)
}

// UnmarshalJSON reads a tagged envelope by inspecting "type" first. When
// "type" is absent it falls back to a legacy untagged Review-shaped parse,
// for backward compatibility with items queued before tagging was
// introduced.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	switch probe.Type {
	case KindReview:
		var r Review
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		*e = Envelope{Kind: KindReview, Review: &r}
		return nil
	case KindSentryFix:
		var s SentryFix
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = Envelope{Kind: KindSentryFix, SentryFix: &s}
		return nil
	case KindJiraTicket:
		var j JiraTicket
		if err := json.Unmarshal(data, &j); err != nil {
			return err
		}
		*e = Envelope{Kind: KindJiraTicket, JiraTicket: &j}
		return nil
	case "":
		var r Review
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		*e = Envelope{Kind: KindReview, Review: &r}
		return nil
	default:
		return ErrUnknownKind
	}
}

// Item is a queued envelope with delivery metadata.
type Item struct {
	ID        string    `json:"id"`
	Payload   Envelope  `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	Attempts  int       `json:"attempts"`
}

// NewItem wraps an envelope with a fresh id and zero attempt count.
func NewItem(payload Envelope) Item {
	return Item{
		ID:        uuid.NewString(),
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
		Attempts:  0,
	}
}

// FailedItem records a queue item that exhausted or aborted processing.
type FailedItem struct {
	Item     Item      `json:"item"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}
