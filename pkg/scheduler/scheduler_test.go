package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/globalcomix/claude-agent/pkg/envelope"
	"github.com/globalcomix/claude-agent/pkg/orchestrator"
	"github.com/globalcomix/claude-agent/pkg/queue"
)

func newTestScheduler(t *testing.T, jobTimeout time.Duration) (*Scheduler, *queue.Queue, *fake.Clientset) {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	q := queue.New(redisClient)

	client := fake.NewSimpleClientset()
	o := orchestrator.NewForClient(client, orchestrator.Config{
		Namespace:   "claude-agent",
		WorkerImage: "registry.example.com/agentworker:latest",
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(q, o, logger, jobTimeout), q, client
}

func TestProcess_MarksCompletedOnJobSuccess(t *testing.T) {
	t.Parallel()
	s, q, client := newTestScheduler(t, time.Minute)
	ctx := context.Background()

	// Short-circuit the poll loop: every Get on a Job returns one already
	// marked Succeeded, regardless of what SpawnJob actually created.
	client.Fake.PrependReactor("get", "jobs", func(action k8stesting.Action) (bool, runtime.Object, error) {
		name := action.(k8stesting.GetAction).GetName()
		return true, &batchv1.Job{
			ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "claude-agent"},
			Status:     batchv1.JobStatus{Succeeded: 1},
		}, nil
	})

	item := envelope.NewItem(envelope.NewReview(envelope.Review{Project: "group/project", MRIID: "7"}))
	s.process(ctx, item)

	processing, err := q.ListProcessing(ctx)
	require.NoError(t, err)
	assert.NotContains(t, processing, item.ID)

	failedCount, err := q.FailedCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, failedCount)
}

func TestProcess_MarksFailedOnJobFailure(t *testing.T) {
	t.Parallel()
	s, q, client := newTestScheduler(t, time.Minute)
	ctx := context.Background()

	client.Fake.PrependReactor("get", "jobs", func(action k8stesting.Action) (bool, runtime.Object, error) {
		name := action.(k8stesting.GetAction).GetName()
		return true, &batchv1.Job{
			ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "claude-agent"},
			Status:     batchv1.JobStatus{Failed: 1},
		}, nil
	})

	item := envelope.NewItem(envelope.NewReview(envelope.Review{Project: "group/project", MRIID: "7"}))
	s.process(ctx, item)

	failed, err := q.ListFailed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, item.ID, failed[0].Item.ID)
}

func TestProcess_SpawnFailure_MarksFailedWithoutWaiting(t *testing.T) {
	t.Parallel()
	s, q, client := newTestScheduler(t, time.Minute)
	ctx := context.Background()

	client.Fake.PrependReactor("create", "jobs", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("admission webhook denied the request")
	})

	item := envelope.NewItem(envelope.NewReview(envelope.Review{Project: "group/project", MRIID: "7"}))
	s.process(ctx, item)

	failed, err := q.ListFailed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Error, "spawn error")
}

func TestWaitForJob_Succeeded(t *testing.T) {
	t.Parallel()
	s, _, client := newTestScheduler(t, time.Minute)
	ctx := context.Background()

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "claude-review-7-abcd1234", Namespace: "claude-agent"},
		Status:     batchv1.JobStatus{Succeeded: 1},
	}
	_, err := client.BatchV1().Jobs("claude-agent").Create(ctx, job, metav1.CreateOptions{})
	require.NoError(t, err)

	ok, err := s.waitForJob(ctx, "claude-review-7-abcd1234")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWaitForJob_Failed(t *testing.T) {
	t.Parallel()
	s, _, client := newTestScheduler(t, time.Minute)
	ctx := context.Background()

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "claude-review-7-abcd1234", Namespace: "claude-agent"},
		Status:     batchv1.JobStatus{Failed: 1},
	}
	_, err := client.BatchV1().Jobs("claude-agent").Create(ctx, job, metav1.CreateOptions{})
	require.NoError(t, err)

	ok, err := s.waitForJob(ctx, "claude-review-7-abcd1234")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWaitForJob_TimesOutAndDeletesJob(t *testing.T) {
	t.Parallel()
	s, _, client := newTestScheduler(t, time.Nanosecond)
	ctx := context.Background()

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "claude-review-7-abcd1234", Namespace: "claude-agent"},
	}
	_, err := client.BatchV1().Jobs("claude-agent").Create(ctx, job, metav1.CreateOptions{})
	require.NoError(t, err)

	ok, err := s.waitForJob(ctx, "claude-review-7-abcd1234")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = client.BatchV1().Jobs("claude-agent").Get(ctx, "claude-review-7-abcd1234", metav1.GetOptions{})
	assert.Error(t, err, "timed-out job should have been deleted")
}

func TestStop_HaltsRunLoop(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestScheduler(t, time.Minute)

	// Run's blocking Pop inherits ctx, so canceling it (rather than relying
	// on popTimeout to elapse) is what makes the loop exit promptly here.
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	s.Stop()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after Stop() and context cancellation")
	}
}
