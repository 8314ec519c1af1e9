package sentry_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globalcomix/claude-agent/internal/hmacsig"
	"github.com/globalcomix/claude-agent/pkg/upstream/sentry"
)

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	body := []byte("hello world")
	sig := hmacsig.Sign("test-secret", body)
	assert.True(t, sentry.VerifySignature("test-secret", body, sig))
	assert.False(t, sentry.VerifySignature("test-secret", body, "sha256=0000"))
}

func TestFormatStacktrace_Exception(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"entries": [{
			"type": "exception",
			"data": {
				"values": [{
					"type": "NullPointerException",
					"value": "Cannot read property 'foo' of null",
					"stacktrace": {
						"frames": [{
							"filename": "app/Services/Foo.php",
							"function": "doSomething",
							"lineNo": 42,
							"context": [
								[40, "    $bar = $this->bar;"],
								[41, "    // Process bar"],
								[42, "    return $bar->foo;"]
							]
						}]
					}
				}]
			}
		}]
	}`)
	var event sentry.Event
	require.NoError(t, json.Unmarshal(raw, &event))

	out := sentry.FormatStacktrace(&event)
	assert.Contains(t, out, "NullPointerException")
	assert.Contains(t, out, "Cannot read property 'foo' of null")
	assert.Contains(t, out, "doSomething")
	assert.Contains(t, out, "Foo.php:42")
	assert.Contains(t, out, "> ")
}

func TestFormatStacktrace_MessageOnly(t *testing.T) {
	t.Parallel()

	event := sentry.Event{Message: "Something went wrong"}
	assert.Contains(t, sentry.FormatStacktrace(&event), "Something went wrong")
}

func TestExtractTags(t *testing.T) {
	t.Parallel()

	event := sentry.Event{Tags: []sentry.EventTag{
		{Key: "environment", Value: "production"},
		{Key: "browser", Value: "Chrome 120"},
	}}
	tags := sentry.ExtractTags(&event)
	require.Len(t, tags, 2)
	assert.Equal(t, "environment", tags[0].Key)
	assert.Equal(t, "production", tags[0].Value)
}
