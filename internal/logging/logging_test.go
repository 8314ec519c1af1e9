package logging_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/globalcomix/claude-agent/internal/logging"
)

func TestJobIDExtractor_Present(t *testing.T) {
	t.Parallel()

	ctx := logging.WithJobID(context.Background(), "job-123")
	attr, ok := logging.JobIDExtractor(ctx)
	assert.True(t, ok)
	assert.Equal(t, "job_id", attr.Key)
	assert.Equal(t, "job-123", attr.Value.String())
}

func TestJobIDExtractor_Absent(t *testing.T) {
	t.Parallel()

	_, ok := logging.JobIDExtractor(context.Background())
	assert.False(t, ok)
}

func TestNew_NoDSN(t *testing.T) {
	t.Parallel()

	log := logging.New("debug", "", "production")
	assert.NotNil(t, log)
}
