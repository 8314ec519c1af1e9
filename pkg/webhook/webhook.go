// Package webhook is the dispatcher's HTTP surface: per-platform webhook
// ingestion (GitLab, GitHub, Sentry, Jira) and the operator API used by
// the CLI (queue stats, failed-job listing/retry, manual job enqueue,
// token health checks). Handlers are plain net/http wired through
// go-chi/chi/v5.
package webhook

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/globalcomix/claude-agent/internal/config"
	"github.com/globalcomix/claude-agent/middlewares"
	"github.com/globalcomix/claude-agent/pkg/health"
	"github.com/globalcomix/claude-agent/pkg/jiratoken"
	"github.com/globalcomix/claude-agent/pkg/queue"
	"github.com/globalcomix/claude-agent/pkg/upstream/github"
	"github.com/globalcomix/claude-agent/pkg/upstream/gitlab"
	"github.com/globalcomix/claude-agent/pkg/upstream/jira"
	"github.com/globalcomix/claude-agent/pkg/upstream/sentry"
)

// Deps bundles the dependencies every handler in this package needs.
// Notably absent is any LLM credential: the operator's agent token never
// passes through the control plane, since pkg/worker reads it from its
// own Secret mount inside the Kubernetes Job.
type Deps struct {
	Queue  *queue.Queue
	Config *config.Config
	Logger *slog.Logger

	GitLab *gitlab.Client
	GitHub *github.Client // nil if GITHUB_TOKEN is unset
	Sentry *sentry.Client // nil if SENTRY_AUTH_TOKEN is unset
	Jira   *jira.Client   // nil if Jira OAuth isn't configured

	JiraTokenManager *jiratoken.Manager // nil if Jira OAuth isn't configured

	// Orchestrator backs the /api/reap orphan-reaper endpoint. It is a
	// narrow WorkloadLister rather than *orchestrator.Orchestrator so this
	// package never imports k8s.io/client-go.
	Orchestrator WorkloadLister

	// RedisCheck backs the /health/ready probe's Redis check, normally
	// built with pkg/redis.Healthcheck against the same client the queue
	// was constructed with.
	RedisCheck func(context.Context) error
}

// Router builds the full HTTP router: webhook ingestion endpoints, the
// operator API, and a liveness probe.
func Router(d *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middlewares.RequestID(),
		middlewares.Recover(middlewares.WithRecoverLogger(d.Logger)),
		middlewares.Timeout(middlewares.DefaultTimeout),
	)

	r.Get("/health", health.LivenessHandler())
	r.Get("/health/ready", health.ReadinessHandler(readinessChecks(d), health.WithLogger(d.Logger)))

	r.Post("/webhook/gitlab", d.handleGitLabWebhook)
	r.Post("/webhook/github", d.handleGitHubWebhook)
	r.Post("/webhook/sentry", d.handleSentryWebhook)
	r.Post("/webhook/jira", d.handleJiraWebhook)

	r.Route("/api", func(api chi.Router) {
		api.Use(d.requireAPIKey)
		api.Get("/stats", d.handleQueueStats)
		api.Get("/failed", d.handleListFailed)
		api.Post("/retry/{id}", d.handleRetry)
		api.Post("/review", d.handleQueueReview)
		api.Post("/review/github", d.handleQueueGitHubReview)
		api.Post("/sentry-fix", d.handleQueueSentryFix)
		api.Post("/jira-fix", d.handleQueueJiraFix)
		api.Get("/check-tokens", d.handleCheckTokens)
		api.Post("/reap", d.handleReap)
	})

	// Legacy endpoint kept for existing CLI installs built against the
	// pre-multi-platform dispatcher.
	r.With(d.requireAPIKey).Get("/queue/stats", d.handleQueueStats)

	return r
}

// readinessChecks builds the set of dependency checks the /health/ready
// probe runs: Redis must always be reachable, and the Kubernetes API only
// when Deps carries an orchestrator.
func readinessChecks(d *Deps) health.Checks {
	checks := health.Checks{
		"redis": d.RedisCheck,
	}
	if d.Orchestrator != nil {
		checks["kubernetes"] = func(ctx context.Context) error {
			_, err := d.Orchestrator.ActiveQueueIDs(ctx)
			return err
		}
	}
	return checks
}
