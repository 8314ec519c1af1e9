package webhook

import (
	"encoding/json"
	"net/http"

	"github.com/globalcomix/claude-agent/internal/apperr"
)

// Response is the uniform shape every webhook ingestion endpoint replies
// with, matching the original's WebhookResponse.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	JobID   string `json:"job_id,omitempty"`
}

func ignored(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, Response{Status: "ignored", Message: message})
}

func skipped(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, Response{Status: "skipped", Message: message})
}

func queued(w http.ResponseWriter, jobID string) {
	writeJSON(w, http.StatusAccepted, Response{Status: "queued", JobID: jobID})
}

func queuedWithMessage(w http.ResponseWriter, jobID, message string) {
	writeJSON(w, http.StatusAccepted, Response{Status: "queued", Message: message, JobID: jobID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.StatusCode(err), map[string]string{"error": apperr.ClientMessage(err)})
}
