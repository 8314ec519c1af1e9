// Package queue implements the Redis-backed FIFO job queue: a pending
// list, a processing hash, and a failed list, mirroring the wire format
// and key layout of the original Rust dispatcher this module replaces.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/globalcomix/claude-agent/pkg/envelope"
)

const (
	pendingKey    = "claude-agent:review-queue"
	processingKey = "claude-agent:processing"
	failedKey     = "claude-agent:failed"
)

// Queue is a Redis-backed FIFO queue for Job Envelopes.
type Queue struct {
	client redis.UniversalClient
}

// New wraps an already-connected Redis client.
func New(client redis.UniversalClient) *Queue {
	return &Queue{client: client}
}

// Push enqueues a new envelope and returns the generated item id.
func (q *Queue) Push(ctx context.Context, payload envelope.Envelope) (string, error) {
	item := envelope.NewItem(payload)

	data, err := json.Marshal(item)
	if err != nil {
		return "", errors.Join(ErrEncode, err)
	}

	if err := q.client.RPush(ctx, pendingKey, data).Err(); err != nil {
		return "", errors.Join(ErrRedis, err)
	}

	return item.ID, nil
}

// Pop blocks for up to timeout waiting for an item, returning nil on
// timeout with no error.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*envelope.Item, error) {
	res, err := q.client.BLPop(ctx, timeout, pendingKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(ErrRedis, err)
	}

	// BLPop returns [key, value].
	if len(res) != 2 {
		return nil, ErrMalformedReply
	}

	var item envelope.Item
	if err := json.Unmarshal([]byte(res[1]), &item); err != nil {
		return nil, errors.Join(ErrDecode, err)
	}
	return &item, nil
}

// MarkProcessing records the item as in-flight.
func (q *Queue) MarkProcessing(ctx context.Context, item envelope.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return errors.Join(ErrEncode, err)
	}
	if err := q.client.HSet(ctx, processingKey, item.ID, data).Err(); err != nil {
		return errors.Join(ErrRedis, err)
	}
	return nil
}

// MarkCompleted removes the item from the processing set.
func (q *Queue) MarkCompleted(ctx context.Context, id string) error {
	if err := q.client.HDel(ctx, processingKey, id).Err(); err != nil {
		return errors.Join(ErrRedis, err)
	}
	return nil
}

// MarkFailed removes the item from processing, increments its attempt
// count, and appends it to the failed list with the given error detail.
func (q *Queue) MarkFailed(ctx context.Context, item envelope.Item, cause string) error {
	if err := q.client.HDel(ctx, processingKey, item.ID).Err(); err != nil {
		return errors.Join(ErrRedis, err)
	}

	item.Attempts++
	failed := envelope.FailedItem{
		Item:     item,
		Error:    cause,
		FailedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(failed)
	if err != nil {
		return errors.Join(ErrEncode, err)
	}
	if err := q.client.RPush(ctx, failedKey, data).Err(); err != nil {
		return errors.Join(ErrRedis, err)
	}
	return nil
}

// Len returns the number of pending items.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, pendingKey).Result()
	if err != nil {
		return 0, errors.Join(ErrRedis, err)
	}
	return n, nil
}

// ProcessingCount returns the number of in-flight items.
func (q *Queue) ProcessingCount(ctx context.Context) (int64, error) {
	n, err := q.client.HLen(ctx, processingKey).Result()
	if err != nil {
		return 0, errors.Join(ErrRedis, err)
	}
	return n, nil
}

// FailedCount returns the number of failed items.
func (q *Queue) FailedCount(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, failedKey).Result()
	if err != nil {
		return 0, errors.Join(ErrRedis, err)
	}
	return n, nil
}

// ListFailed returns up to limit failed items, oldest first. Entries that
// fail to decode are silently skipped (matches the original's filter_map
// behavior — a corrupt entry shouldn't take down the whole listing).
func (q *Queue) ListFailed(ctx context.Context, limit int64) ([]envelope.FailedItem, error) {
	raw, err := q.client.LRange(ctx, failedKey, 0, limit-1).Result()
	if err != nil {
		return nil, errors.Join(ErrRedis, err)
	}

	items := make([]envelope.FailedItem, 0, len(raw))
	for _, s := range raw {
		var f envelope.FailedItem
		if err := json.Unmarshal([]byte(s), &f); err != nil {
			continue
		}
		items = append(items, f)
	}
	return items, nil
}

// RetryFailed moves the failed item with the given id back onto the
// pending queue. It linear-scans the failed list by value, matching the
// original's approach (the failed list has no secondary index). Returns
// false if no failed item with that id exists.
func (q *Queue) RetryFailed(ctx context.Context, id string) (bool, error) {
	raw, err := q.client.LRange(ctx, failedKey, 0, -1).Result()
	if err != nil {
		return false, errors.Join(ErrRedis, err)
	}

	for _, s := range raw {
		var f envelope.FailedItem
		if err := json.Unmarshal([]byte(s), &f); err != nil {
			continue
		}
		if f.Item.ID != id {
			continue
		}

		if err := q.client.LRem(ctx, failedKey, 1, s).Err(); err != nil {
			return false, errors.Join(ErrRedis, err)
		}

		data, err := json.Marshal(f.Item)
		if err != nil {
			return false, errors.Join(ErrEncode, err)
		}
		if err := q.client.RPush(ctx, pendingKey, data).Err(); err != nil {
			return false, errors.Join(ErrRedis, err)
		}
		return true, nil
	}

	return false, nil
}

// ListProcessing returns every item currently marked in-flight, keyed by
// item id. Used by the orphan reaper to cross-check against live workloads.
func (q *Queue) ListProcessing(ctx context.Context) (map[string]envelope.Item, error) {
	raw, err := q.client.HGetAll(ctx, processingKey).Result()
	if err != nil {
		return nil, errors.Join(ErrRedis, err)
	}

	items := make(map[string]envelope.Item, len(raw))
	for id, s := range raw {
		var item envelope.Item
		if err := json.Unmarshal([]byte(s), &item); err != nil {
			continue
		}
		items[id] = item
	}
	return items, nil
}

// Requeue pushes an already-built item back onto the pending queue and
// removes it from the processing set, used by the orphan reaper.
func (q *Queue) Requeue(ctx context.Context, item envelope.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return errors.Join(ErrEncode, err)
	}
	pipe := q.client.TxPipeline()
	pipe.HDel(ctx, processingKey, item.ID)
	pipe.RPush(ctx, pendingKey, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Join(ErrRedis, err)
	}
	return nil
}
