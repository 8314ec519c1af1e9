package queue

import "errors"

var (
	// ErrRedis wraps any underlying Redis command failure.
	ErrRedis = errors.New("queue: redis operation failed")

	// ErrEncode is returned when an item fails to marshal to JSON.
	ErrEncode = errors.New("queue: failed to encode item")

	// ErrDecode is returned when a stored item fails to unmarshal.
	ErrDecode = errors.New("queue: failed to decode item")

	// ErrMalformedReply is returned when Redis returns an unexpected shape.
	ErrMalformedReply = errors.New("queue: malformed redis reply")
)
