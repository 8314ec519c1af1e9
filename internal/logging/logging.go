// Package logging wires pkg/logger into the dispatcher: a JSON slog logger
// at the configured level, Sentry error reporting when a DSN is set, and a
// job-id context extractor to pair with middlewares.RequestIDExtractor. A
// log line carries a job_id only when it is written with a context tagged
// by WithJobID; the scheduler does not tag its contexts and instead adds
// the item id as a plain "id" attribute.
package logging

import (
	"context"
	"log/slog"

	"github.com/globalcomix/claude-agent/pkg/logger"
)

type jobIDKey struct{}

// WithJobID returns a context carrying the given queue item id for
// JobIDExtractor to pick up.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey{}, id)
}

// JobIDExtractor is a logger.ContextExtractor that surfaces the job id
// stashed by WithJobID.
func JobIDExtractor(ctx context.Context) (slog.Attr, bool) {
	id, ok := ctx.Value(jobIDKey{}).(string)
	if !ok || id == "" {
		return slog.Attr{}, false
	}
	return slog.String("job_id", id), true
}

// New builds the process-wide logger: JSON to stdout at levelName's level,
// plus Sentry error capture if dsn is non-empty, with job-id context
// extraction wired in ahead of any caller-supplied extractors (cmd/dispatchd
// passes the request-id one).
func New(levelName, dsn, environment string, extractors ...logger.ContextExtractor) *slog.Logger {
	level := logger.ParseLevel(levelName)
	all := append([]logger.ContextExtractor{JobIDExtractor}, extractors...)

	if dsn == "" {
		return logger.New(level, all...)
	}
	return logger.NewWithSentry(level, logger.SentryConfig{
		DSN:         dsn,
		Environment: environment,
		MinLevel:    slog.LevelWarn,
	}, all...)
}
