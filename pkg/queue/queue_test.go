package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/globalcomix/claude-agent/pkg/envelope"
	"github.com/globalcomix/claude-agent/pkg/queue"
)

func newTestQueue(t *testing.T) *queue.Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return queue.New(client)
}

func TestQueue_PushPopIsFIFO(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t)
	ctx := context.Background()

	first, err := q.Push(ctx, envelope.NewReview(envelope.Review{MRIID: "1"}))
	require.NoError(t, err)
	second, err := q.Push(ctx, envelope.NewReview(envelope.Review{MRIID: "2"}))
	require.NoError(t, err)

	got1, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got1)
	require.Equal(t, first, got1.ID)

	got2, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got2)
	require.Equal(t, second, got2.ID)
}

func TestQueue_PopTimesOutWithNoError(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t)

	item, err := q.Pop(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	require.Nil(t, item)
}

func TestQueue_MarkFailedIncrementsAttemptsAndMovesToFailedList(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Push(ctx, envelope.NewSentryFix(envelope.SentryFix{ShortID: "WEB-1"}))
	require.NoError(t, err)
	item, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NoError(t, q.MarkProcessing(ctx, *item))

	require.NoError(t, q.MarkFailed(ctx, *item, "boom"))

	processing, err := q.ProcessingCount(ctx)
	require.NoError(t, err)
	require.Zero(t, processing)

	failed, err := q.ListFailed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, id, failed[0].Item.ID)
	require.Equal(t, 1, failed[0].Item.Attempts)
	require.Equal(t, "boom", failed[0].Error)
}

func TestQueue_RetryFailedRequeuesByID(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Push(ctx, envelope.NewSentryFix(envelope.SentryFix{ShortID: "WEB-2"}))
	require.NoError(t, err)
	item, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NoError(t, q.MarkFailed(ctx, *item, "oops"))

	ok, err := q.RetryFailed(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	pendingLen, err := q.Len(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, pendingLen)

	failedLen, err := q.FailedCount(ctx)
	require.NoError(t, err)
	require.Zero(t, failedLen)

	again, err := q.RetryFailed(ctx, id)
	require.NoError(t, err)
	require.False(t, again)
}

func TestQueue_MarkCompletedClearsProcessing(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Push(ctx, envelope.NewReview(envelope.Review{MRIID: "9"}))
	require.NoError(t, err)
	item, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NoError(t, q.MarkProcessing(ctx, *item))

	require.NoError(t, q.MarkCompleted(ctx, item.ID))

	n, err := q.ProcessingCount(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}
