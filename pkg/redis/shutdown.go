package redis

import (
	"context"
	"io"
)

// Shutdown returns a function that gracefully closes the Redis client,
// matching the func(context.Context) error shape an application's
// teardown sequence expects.
//
// Example:
//
//	defer redis.Shutdown(client)(context.Background())
func Shutdown(client io.Closer) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Close()
	}
}
