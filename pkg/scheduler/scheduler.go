// Package scheduler runs the single-leader dispatch loop: pop one item
// off the queue, spawn a Kubernetes Job for it, wait for it to settle,
// and mark the queue item completed or failed. Only one workload runs at
// a time, so the loop never pops a second item while a Job from the
// previous pop is still active.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/globalcomix/claude-agent/pkg/envelope"
	"github.com/globalcomix/claude-agent/pkg/orchestrator"
	"github.com/globalcomix/claude-agent/pkg/queue"
)

const (
	popTimeout       = 30 * time.Second
	activeJobPoll    = 10 * time.Second
	jobStatusPoll    = 5 * time.Second
	popErrorBackoff  = 5 * time.Second
	notFoundGiveUpAt = 3
)

// Scheduler drains the queue and materializes each item as a Kubernetes
// Job, one at a time.
type Scheduler struct {
	queue        *queue.Queue
	orchestrator *orchestrator.Orchestrator
	logger       *slog.Logger
	jobTimeout   time.Duration

	mu      sync.Mutex
	running bool
}

// New builds a Scheduler. jobTimeout bounds how long a single spawned Job
// is allowed to run before it is treated as failed and deleted.
func New(q *queue.Queue, o *orchestrator.Orchestrator, logger *slog.Logger, jobTimeout time.Duration) *Scheduler {
	if jobTimeout == 0 {
		jobTimeout = 15 * time.Minute
	}
	return &Scheduler{queue: q, orchestrator: o, logger: logger, jobTimeout: jobTimeout}
}

// Run drains the queue until ctx is canceled. It returns once the current
// iteration (including any in-flight job wait) finishes after
// cancellation, rather than abandoning an active Job mid-wait orphaned
// with no tracking entry.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler starting")
	s.setRunning(true)

	for s.isRunning() {
		if ctx.Err() != nil {
			break
		}

		active, err := s.orchestrator.HasActiveJob(ctx)
		if err != nil {
			s.logger.Warn("failed to check for active job", "error", err)
		}
		if active {
			sleep(ctx, activeJobPoll)
			continue
		}

		item, err := s.queue.Pop(ctx, popTimeout)
		if err != nil {
			s.logger.Error("failed to pop from queue", "error", err)
			sleep(ctx, popErrorBackoff)
			continue
		}
		if item == nil {
			continue // pop timed out, queue was empty
		}

		s.process(ctx, *item)
	}

	s.logger.Info("scheduler stopped")
}

// Stop requests the loop to exit after its current iteration.
func (s *Scheduler) Stop() {
	s.setRunning(false)
}

func (s *Scheduler) process(ctx context.Context, item envelope.Item) {
	// Once an item is popped, shutdown does not cut its wait short: the
	// Job is waited on and the item settled under a context that Run's
	// cancellation does not reach.
	ctx = context.WithoutCancel(ctx)
	log := s.logger.With("id", item.ID, "job", item.Payload.Description())
	log.Info("processing queue item")

	if err := s.queue.MarkProcessing(ctx, item); err != nil {
		log.Error("failed to mark item as processing", "error", err)
		return
	}

	jobName, err := s.orchestrator.SpawnJob(ctx, item)
	if err != nil {
		log.Error("failed to spawn job", "error", err)
		_ = s.queue.MarkFailed(ctx, item, "spawn error: "+err.Error())
		return
	}
	log.Info("spawned job", "name", jobName)

	success, err := s.waitForJob(ctx, jobName)
	if err != nil {
		log.Error("error waiting for job", "error", err)
		_ = s.queue.MarkFailed(ctx, item, "wait error: "+err.Error())
		return
	}
	if success {
		_ = s.queue.MarkCompleted(ctx, item.ID)
		log.Info("job succeeded")
		return
	}
	_ = s.queue.MarkFailed(ctx, item, "job failed")
	log.Warn("job failed")
}

// waitForJob polls a spawned Job until it succeeds, fails, times out, or
// disappears from the cluster three consecutive polls in a row — the
// last case treated as a failure rather than retried indefinitely, since
// a Job that vanished out from under the scheduler won't reappear.
func (s *Scheduler) waitForJob(ctx context.Context, jobName string) (bool, error) {
	deadline := time.Now().Add(s.jobTimeout)
	notFoundStreak := 0

	for {
		if time.Now().After(deadline) {
			s.logger.Warn("job timed out", "job", jobName)
			_ = s.orchestrator.DeleteJob(ctx, jobName)
			return false, nil
		}

		phase, err := s.orchestrator.JobPhase(ctx, jobName)
		switch {
		case err != nil:
			s.logger.Error("failed to get job status", "job", jobName, "error", err)
		case phase == orchestrator.PhaseSucceeded:
			return true, nil
		case phase == orchestrator.PhaseFailed:
			return false, nil
		case phase == orchestrator.PhaseNotFound:
			notFoundStreak++
			s.logger.Warn("job not found", "job", jobName, "count", notFoundStreak)
			if notFoundStreak >= notFoundGiveUpAt {
				return false, nil
			}
		default:
			notFoundStreak = 0
		}

		sleep(ctx, jobStatusPoll)
		if ctx.Err() != nil {
			return false, errors.New("scheduler: context canceled while waiting for job")
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (s *Scheduler) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

func (s *Scheduler) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
