package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/globalcomix/claude-agent/middlewares"
)

func TestTimeout_SetsDeadline(t *testing.T) {
	t.Parallel()

	var sawDeadline bool
	h := middlewares.Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawDeadline = r.Context().Deadline()
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, sawDeadline)
	assert.Equal(t, http.StatusOK, rec.Code)
}
