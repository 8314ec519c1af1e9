package webhook

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/globalcomix/claude-agent/internal/apperr"
)

// requireAPIKey gates the operator API behind a bearer token (or the
// legacy X-API-Key header), checked against Config.APIKey — which itself
// falls back to the webhook secret when no dedicated API key is set.
func (d *Deps) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !d.verifyAPIKey(r) {
			d.Logger.WarnContext(r.Context(), "invalid API key", "path", r.URL.Path)
			writeError(w, apperr.Unauthorized("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (d *Deps) verifyAPIKey(r *http.Request) bool {
	expected := d.Config.APIKey

	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return constantTimeEqual(token, expected)
		}
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return constantTimeEqual(key, expected)
	}
	return false
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
