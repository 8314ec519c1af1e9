package middlewares_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/globalcomix/claude-agent/middlewares"
)

func TestPanicError(t *testing.T) {
	t.Parallel()

	err := &middlewares.PanicError{Value: "boom"}
	assert.Equal(t, "panic: boom", err.Error())
	assert.True(t, middlewares.IsPanicError(err))

	extracted, ok := middlewares.AsPanicError(err)
	assert.True(t, ok)
	assert.Equal(t, "boom", extracted.Value)
}

func TestTimeoutError(t *testing.T) {
	t.Parallel()

	err := &middlewares.TimeoutError{Duration: middlewares.DefaultTimeout}
	assert.True(t, middlewares.IsTimeoutError(err))
	assert.False(t, middlewares.IsPanicError(err))
}
