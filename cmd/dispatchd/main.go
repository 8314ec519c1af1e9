// Command dispatchd is the control plane: it ingests webhooks from
// GitLab, GitHub, Sentry, and Jira, enqueues Job Envelopes, and runs the
// single-leader scheduler that turns each one into a Kubernetes Job.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/globalcomix/claude-agent/internal/config"
	"github.com/globalcomix/claude-agent/internal/httplog"
	"github.com/globalcomix/claude-agent/internal/logging"
	"github.com/globalcomix/claude-agent/middlewares"
	"github.com/globalcomix/claude-agent/pkg/jiratoken"
	"github.com/globalcomix/claude-agent/pkg/orchestrator"
	"github.com/globalcomix/claude-agent/pkg/queue"
	rdb "github.com/globalcomix/claude-agent/pkg/redis"
	"github.com/globalcomix/claude-agent/pkg/scheduler"
	"github.com/globalcomix/claude-agent/pkg/upstream/github"
	"github.com/globalcomix/claude-agent/pkg/upstream/gitlab"
	"github.com/globalcomix/claude-agent/pkg/upstream/jira"
	"github.com/globalcomix/claude-agent/pkg/upstream/sentry"
	"github.com/globalcomix/claude-agent/pkg/webhook"
)

const (
	readTimeout       = 15 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 120 * time.Second
	readHeaderTimeout = 5 * time.Second
	maxHeaderBytes    = 1 << 20
	shutdownTimeout   = 30 * time.Second

	reapInterval = "@every 5m"
	jobTimeout   = 15 * time.Minute
)

func main() {
	reapOnce := flag.Bool("reap-orphans", false, "run the orphan reaper once and exit, instead of serving")
	configPath := flag.String("config", "", "optional YAML file of operational overrides")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "dispatchd: load config:", err)
		os.Exit(1)
	}
	if *configPath != "" {
		if err := cfg.ApplyFile(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, "dispatchd: apply config file:", err)
			os.Exit(1)
		}
	}

	logger := logging.New(cfg.LogLevel, cfg.SentryDSN, cfg.Environment, middlewares.RequestIDExtractor())

	redisClient, err := rdb.Open(context.Background(), cfg.RedisURL)
	if err != nil {
		logger.Error("connect to redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Shutdown(redisClient)(context.Background())
	q := queue.New(redisClient)

	httpClient := httplog.Client(logger)

	gitlabClient := gitlab.New(cfg.GitLabURL, cfg.GitLabToken, httpClient)

	var githubClient *github.Client
	if cfg.GitHubToken != "" {
		githubClient = github.New(cfg.GitHubToken, httpClient)
	}

	var sentryClient *sentry.Client
	if cfg.SentryAuthToken != "" {
		sentryClient = sentry.New(cfg.SentryAuthToken, httpClient)
	}

	restCfg, err := rest.InClusterConfig()
	if err != nil {
		logger.Error("load in-cluster config", "error", err)
		os.Exit(1)
	}
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		logger.Error("build kubernetes clientset", "error", err)
		os.Exit(1)
	}

	var jiraClient *jira.Client
	var tokenManager *jiratoken.Manager
	if cfg.JiraClientID != "" && cfg.JiraClientSecret != "" {
		store := orchestrator.NewJiraSecretStore(clientset, cfg.K8sNamespace, cfg.JiraRefreshToken)
		tokenManager, err = jiratoken.New(store, cfg.JiraClientID, cfg.JiraClientSecret)
		if err != nil {
			logger.Error("build jira token manager", "error", err)
			os.Exit(1)
		}
		jiraClient = jira.New(cfg.JiraBaseURL, tokenManager, httpClient)
	}

	orch := orchestrator.NewForClient(clientset, orchestrator.Config{
		Namespace:   cfg.K8sNamespace,
		WorkerImage: cfg.WorkerImage,
		JobTimeout:  jobTimeout,
	})

	deps := &webhook.Deps{
		Queue:            q,
		Config:           cfg,
		Logger:           logger,
		GitLab:           gitlabClient,
		GitHub:           githubClient,
		Sentry:           sentryClient,
		Jira:             jiraClient,
		JiraTokenManager: tokenManager,
		Orchestrator:     orch,
		RedisCheck:       rdb.Healthcheck(redisClient),
	}

	if *reapOnce {
		reap(context.Background(), deps)
		return
	}

	sched := scheduler.New(q, orch, logger, jobTimeout)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	schedDone := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(schedDone)
	}()

	reaper := cron.New()
	if _, err := reaper.AddFunc(reapInterval, func() { reap(ctx, deps) }); err != nil {
		logger.Error("schedule orphan reaper", "error", err)
		os.Exit(1)
	}
	reaper.Start()
	defer reaper.Stop()

	if err := serve(ctx, cfg.ListenAddr, webhook.Router(deps), logger); err != nil {
		logger.Error("server error", "error", err)
		sched.Stop()
		os.Exit(1)
	}
	sched.Stop()
	<-schedDone
}

// reap runs one orphan-reaper sweep directly against the queue and
// orchestrator, the same logic pkg/webhook.handleReap exposes over HTTP,
// for use by the -reap-orphans flag and the periodic cron sweep.
func reap(ctx context.Context, d *webhook.Deps) {
	processing, err := d.Queue.ListProcessing(ctx)
	if err != nil {
		d.Logger.Error("reap: list processing items", "error", err)
		return
	}
	active, err := d.Orchestrator.ActiveQueueIDs(ctx)
	if err != nil {
		d.Logger.Error("reap: list active workloads", "error", err)
		return
	}
	for id, item := range processing {
		if active[id] {
			continue
		}
		if err := d.Queue.Requeue(ctx, item); err != nil {
			d.Logger.Error("reap: requeue orphaned item", "id", id, "error", err)
			continue
		}
		d.Logger.Warn("reap: requeued orphaned processing item", "id", id)
	}
}

// serve runs an http.Server bound to addr until ctx is canceled, then
// drains in-flight requests within shutdownTimeout.
func serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "address", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("shutdown completed")
	return nil
}
