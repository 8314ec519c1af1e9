package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globalcomix/claude-agent/internal/config"
)

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o644)
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("WEBHOOK_SECRET", "wh-secret")
	t.Setenv("GITLAB_TOKEN", "glpat-abc")
	t.Setenv("WORKER_IMAGE", "registry.example.com/claude-agent-worker:latest")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "redis://127.0.0.1:6379", cfg.RedisURL)
	assert.Equal(t, "0.0.0.0:8443", cfg.ListenAddr)
	assert.Equal(t, "claude-agent", cfg.K8sNamespace)
	assert.Equal(t, cfg.WebhookSecret, cfg.APIKey, "API key falls back to the webhook secret")
	assert.Equal(t, "712020:8218f147-a7bd-4843-b5d3-0b2b01212bb2", cfg.JiraBotAccountID)
}

func TestLoad_JiraBotAccountIDOverride(t *testing.T) {
	setRequired(t)
	t.Setenv("JIRA_BOT_ACCOUNT_ID", "custom-account-id")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "custom-account-id", cfg.JiraBotAccountID)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("GITLAB_TOKEN", "glpat-abc")
	t.Setenv("WORKER_IMAGE", "img")

	_, err := config.Load()
	assert.ErrorIs(t, err, config.ErrMissingRequired)
}

func TestLoad_ProjectMappings(t *testing.T) {
	setRequired(t)
	t.Setenv("SENTRY_PROJECT_MAPPINGS", `[{"sentry_project":"web","clone_url":"https://gitlab.com/g/p.git","vcs_platform":"gitlab","vcs_project":"g/p","target_branch":"main"}]`)

	cfg, err := config.Load()
	require.NoError(t, err)

	mapping, ok := cfg.FindSentryMapping("web")
	require.True(t, ok)
	assert.Equal(t, "g/p", mapping.VCSProject)

	_, ok = cfg.FindSentryMapping("missing")
	assert.False(t, ok)
}

func TestIsAuthorAllowed(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_AUTHORS", "Alice, bob")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsAuthorAllowed("alice"))
	assert.True(t, cfg.IsAuthorAllowed("Bob"))
	assert.False(t, cfg.IsAuthorAllowed("carol"))
}

func TestApplyFile(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	path := t.TempDir() + "/config.yaml"
	require.NoError(t, writeFile(path, "log_level: debug\nlisten_addr: \"0.0.0.0:9000\"\n"))

	require.NoError(t, cfg.ApplyFile(path))
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
}

func TestIsAuthorAllowed_EmptyListAllowsAll(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsAuthorAllowed("anyone"))
}
