package worker

import (
	"encoding/base64"
	"errors"
	"os"

	"github.com/globalcomix/claude-agent/pkg/envelope"
)

// ErrPayloadMissing is returned when REVIEW_PAYLOAD isn't set in the
// worker's environment.
var ErrPayloadMissing = errors.New("worker: REVIEW_PAYLOAD not set")

// Config is the worker's entire configuration surface: an ephemeral job
// has no config file or flags, only environment variables injected by
// the orchestrator's Job spec.
type Config struct {
	Envelope envelope.Envelope

	GitLabToken     string
	GitHubToken     string
	SentryAuthToken string
	JiraAccessToken string

	AgentBinary string
	WorkDir     string
}

// LoadConfig reads and decodes the worker's environment.
func LoadConfig() (*Config, error) {
	payloadB64 := os.Getenv("REVIEW_PAYLOAD")
	if payloadB64 == "" {
		return nil, ErrPayloadMissing
	}
	raw, err := base64.StdEncoding.DecodeString(payloadB64)
	if err != nil {
		return nil, errors.Join(errors.New("worker: failed to decode REVIEW_PAYLOAD"), err)
	}

	var env envelope.Envelope
	if err := env.UnmarshalJSON(raw); err != nil {
		return nil, errors.Join(errors.New("worker: failed to parse REVIEW_PAYLOAD"), err)
	}

	agentBinary := os.Getenv("AGENT_BINARY")
	if agentBinary == "" {
		agentBinary = "claude"
	}
	workDir := os.Getenv("WORK_DIR")
	if workDir == "" {
		workDir = "/work/repo"
	}

	return &Config{
		Envelope:        env,
		GitLabToken:     os.Getenv("GITLAB_TOKEN"),
		GitHubToken:     os.Getenv("GITHUB_TOKEN"),
		SentryAuthToken: os.Getenv("SENTRY_AUTH_TOKEN"),
		JiraAccessToken: os.Getenv("JIRA_ACCESS_TOKEN"),
		AgentBinary:     agentBinary,
		WorkDir:         workDir,
	}, nil
}
