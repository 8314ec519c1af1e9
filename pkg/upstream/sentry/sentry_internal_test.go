package sentry

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeTimeoutErr struct{}

func (fakeTimeoutErr) Error() string   { return "fake timeout" }
func (fakeTimeoutErr) Timeout() bool   { return true }
func (fakeTimeoutErr) Temporary() bool { return true }

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	assert.True(t, isRetryable(fakeTimeoutErr{}))
	assert.True(t, isRetryable(context.DeadlineExceeded))
	assert.True(t, isRetryable(&net.OpError{Op: "dial", Err: errors.New("boom")}))
	assert.True(t, isRetryable(errors.New("dial tcp: connection refused")))
	assert.False(t, isRetryable(errors.New("x509: certificate signed by unknown authority")))
}
