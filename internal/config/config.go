// Package config loads the control plane's environment into a single
// validated struct. Field tags document the corresponding env var for
// readers but are not parsed via reflection. Loading is a flat, explicit
// Getenv/default/validate walk, in the same style as this module's other
// per-package Option/config pairs.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/globalcomix/claude-agent/pkg/normalize"
)

// Config is the control plane's full runtime configuration.
type Config struct {
	RedisURL   string `env:"REDIS_URL"`
	ListenAddr string `env:"LISTEN_ADDR"`
	LogLevel   string `env:"LOG_LEVEL"`
	Environment string `env:"ENVIRONMENT"`

	WebhookSecret string `env:"WEBHOOK_SECRET,required"`
	APIKey        string `env:"API_KEY"`

	GitLabURL   string `env:"GITLAB_URL"`
	GitLabToken string `env:"GITLAB_TOKEN,required"`

	GitHubToken string `env:"GITHUB_TOKEN"`

	SentryWebhookSecret   string `env:"SENTRY_WEBHOOK_SECRET"`
	SentryAuthToken       string `env:"SENTRY_AUTH_TOKEN"`
	SentryOrganization    string `env:"SENTRY_ORGANIZATION"`
	SentryProjectMappings []normalize.SentryProjectMapping

	JiraBaseURL         string `env:"JIRA_BASE_URL"`
	JiraClientID        string `env:"JIRA_CLIENT_ID"`
	JiraClientSecret    string `env:"JIRA_CLIENT_SECRET"`
	JiraRefreshToken    string `env:"JIRA_REFRESH_TOKEN"`
	JiraWebhookSecret   string `env:"JIRA_WEBHOOK_SECRET"`
	JiraBotAccountID    string `env:"JIRA_BOT_ACCOUNT_ID"`
	JiraProjectMappings []normalize.JiraProjectMapping

	AllowedAuthors []string `env:"ALLOWED_AUTHORS" envSeparator:","`

	K8sNamespace string `env:"K8S_NAMESPACE"`
	WorkerImage  string `env:"WORKER_IMAGE,required"`

	SentryDSN string `env:"SENTRY_DSN"`
}

const (
	defaultRedisURL     = "redis://127.0.0.1:6379"
	defaultListenAddr   = "0.0.0.0:8443"
	defaultLogLevel     = "info"
	defaultK8sNamespace = "claude-agent"
	defaultGitLabURL    = "https://gitlab.com"
	defaultEnvironment  = "production"

	// defaultJiraBotAccountID is the Jira Cloud account ID the bot used in
	// the deployment this dispatcher was modeled on. ADF mention nodes
	// store this account ID rather than the rendered "@claude-agent" text,
	// so detection falls back to it when a mention resolves to a user
	// rather than plain text. Operators running their own Jira Cloud
	// integration should override it via JIRA_BOT_ACCOUNT_ID.
	defaultJiraBotAccountID = "712020:8218f147-a7bd-4843-b5d3-0b2b01212bb2"
)

// Load reads and validates the control plane's configuration from the
// process environment.
func Load() (*Config, error) {
	cfg := &Config{
		RedisURL:     getenvDefault("REDIS_URL", defaultRedisURL),
		ListenAddr:   getenvDefault("LISTEN_ADDR", defaultListenAddr),
		LogLevel:     getenvDefault("LOG_LEVEL", defaultLogLevel),
		Environment:  getenvDefault("ENVIRONMENT", defaultEnvironment),
		K8sNamespace: getenvDefault("K8S_NAMESPACE", defaultK8sNamespace),

		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		APIKey:        os.Getenv("API_KEY"),

		GitLabURL:   getenvDefault("GITLAB_URL", defaultGitLabURL),
		GitLabToken: os.Getenv("GITLAB_TOKEN"),
		GitHubToken: os.Getenv("GITHUB_TOKEN"),

		SentryWebhookSecret: os.Getenv("SENTRY_WEBHOOK_SECRET"),
		SentryAuthToken:     os.Getenv("SENTRY_AUTH_TOKEN"),
		SentryOrganization:  os.Getenv("SENTRY_ORGANIZATION"),

		JiraBaseURL:       os.Getenv("JIRA_BASE_URL"),
		JiraClientID:      os.Getenv("JIRA_CLIENT_ID"),
		JiraClientSecret:  os.Getenv("JIRA_CLIENT_SECRET"),
		JiraRefreshToken:  os.Getenv("JIRA_REFRESH_TOKEN"),
		JiraWebhookSecret: os.Getenv("JIRA_WEBHOOK_SECRET"),
		JiraBotAccountID:  getenvDefault("JIRA_BOT_ACCOUNT_ID", defaultJiraBotAccountID),

		WorkerImage: os.Getenv("WORKER_IMAGE"),
		SentryDSN:   os.Getenv("SENTRY_DSN"),
	}

	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: WEBHOOK_SECRET", ErrMissingRequired)
	}
	if cfg.GitLabToken == "" {
		return nil, fmt.Errorf("%w: GITLAB_TOKEN", ErrMissingRequired)
	}
	if cfg.WorkerImage == "" {
		return nil, fmt.Errorf("%w: WORKER_IMAGE", ErrMissingRequired)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = cfg.WebhookSecret
	}

	if raw := os.Getenv("ALLOWED_AUTHORS"); raw != "" {
		for _, a := range strings.Split(raw, ",") {
			if a = strings.TrimSpace(a); a != "" {
				cfg.AllowedAuthors = append(cfg.AllowedAuthors, a)
			}
		}
	}

	if raw := os.Getenv("SENTRY_PROJECT_MAPPINGS"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.SentryProjectMappings); err != nil {
			return nil, errors.Join(ErrInvalidMapping, err)
		}
	}

	if raw := os.Getenv("JIRA_PROJECT_MAPPINGS"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.JiraProjectMappings); err != nil {
			return nil, errors.Join(ErrInvalidMapping, err)
		}
	}

	return cfg, nil
}

// IsAuthorAllowed reports whether author is in the configured allowlist.
// An empty allowlist permits every author (the allowlist only gates
// pipeline-triggered lint-fix jobs, per spec).
func (c *Config) IsAuthorAllowed(author string) bool {
	if len(c.AllowedAuthors) == 0 {
		return true
	}
	for _, a := range c.AllowedAuthors {
		if strings.EqualFold(a, author) {
			return true
		}
	}
	return false
}

// FindSentryMapping looks up the mapping for a Sentry project slug.
func (c *Config) FindSentryMapping(projectSlug string) (normalize.SentryProjectMapping, bool) {
	for _, m := range c.SentryProjectMappings {
		if m.SentryProject == projectSlug {
			return m, true
		}
	}
	return normalize.SentryProjectMapping{}, false
}

// FindJiraMapping looks up the mapping for a Jira project key.
func (c *Config) FindJiraMapping(projectKey string) (normalize.JiraProjectMapping, bool) {
	for _, m := range c.JiraProjectMappings {
		if m.JiraProject == projectKey {
			return m, true
		}
	}
	return normalize.JiraProjectMapping{}, false
}

// fileOverrides is the subset of Config an operator may override from a
// local YAML file for dev/local runs, rather than the process environment.
// Only non-zero fields in the file take effect.
type fileOverrides struct {
	LogLevel              string                            `yaml:"log_level"`
	ListenAddr            string                            `yaml:"listen_addr"`
	AllowedAuthors        []string                          `yaml:"allowed_authors"`
	SentryProjectMappings []normalize.SentryProjectMapping `yaml:"sentry_project_mappings"`
	JiraProjectMappings   []normalize.JiraProjectMapping    `yaml:"jira_project_mappings"`
}

// ApplyFile merges YAML overrides from path onto cfg, for local/dev runs
// that prefer a config file to a long list of exported env vars. Env vars
// loaded by Load always take precedence for secrets; this only covers
// operational, non-secret fields.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Join(ErrFileRead, err)
	}

	var o fileOverrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return errors.Join(ErrFileParse, err)
	}

	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.ListenAddr != "" {
		c.ListenAddr = o.ListenAddr
	}
	if len(o.AllowedAuthors) > 0 {
		c.AllowedAuthors = o.AllowedAuthors
	}
	if len(o.SentryProjectMappings) > 0 {
		c.SentryProjectMappings = o.SentryProjectMappings
	}
	if len(o.JiraProjectMappings) > 0 {
		c.JiraProjectMappings = o.JiraProjectMappings
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
