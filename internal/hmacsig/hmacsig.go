// Package hmacsig verifies the "sha256=<hex>" HMAC-SHA256 webhook
// signature scheme shared by GitHub, Sentry, and Jira/Atlassian webhooks.
// Verification runs in constant time to avoid leaking the expected
// signature through response-timing side channels.
package hmacsig

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Verify reports whether signature (expected in "sha256=<hex>" form)
// matches the HMAC-SHA256 of body keyed by secret.
func Verify(secret string, body []byte, signature string) bool {
	hexDigest, ok := strings.CutPrefix(signature, "sha256=")
	if !ok {
		return false
	}

	expected, err := hex.DecodeString(hexDigest)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	got := mac.Sum(nil)

	return subtle.ConstantTimeCompare(expected, got) == 1
}

// Sign returns the "sha256=<hex>" signature for body keyed by secret,
// used by tests that need to construct a valid request.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
