package webhook

import (
	"context"
	"net/http"

	"github.com/globalcomix/claude-agent/internal/apperr"
)

// WorkloadLister reports which queue ids currently have a live Kubernetes
// workload backing them. pkg/orchestrator satisfies this.
type WorkloadLister interface {
	ActiveQueueIDs(ctx context.Context) (map[string]bool, error)
}

// reapResult is the body of the orphan reaper's report.
type reapResult struct {
	Inspected int      `json:"inspected"`
	Requeued  []string `json:"requeued"`
}

// handleReap is the EXPANSION orphan-reaper endpoint: it cross-checks
// every id in the processing set against the orchestrator's live workload
// list and re-queues any id whose Job no longer exists, recovering items
// left stranded by a worker pod that died without the scheduler noticing
// (e.g. a node eviction).
func (d *Deps) handleReap(w http.ResponseWriter, r *http.Request) {
	if d.Orchestrator == nil {
		writeError(w, apperr.Store("orchestrator not configured", nil))
		return
	}

	processing, err := d.Queue.ListProcessing(r.Context())
	if err != nil {
		writeError(w, apperr.Store("failed to list processing items", err))
		return
	}

	active, err := d.Orchestrator.ActiveQueueIDs(r.Context())
	if err != nil {
		writeError(w, apperr.Store("failed to list active workloads", err))
		return
	}

	result := reapResult{Inspected: len(processing), Requeued: []string{}}
	for id, item := range processing {
		if active[id] {
			continue
		}
		if err := d.Queue.Requeue(r.Context(), item); err != nil {
			d.Logger.ErrorContext(r.Context(), "failed to requeue orphaned item", "id", id, "error", err)
			continue
		}
		d.Logger.WarnContext(r.Context(), "requeued orphaned processing item", "id", id)
		result.Requeued = append(result.Requeued, id)
	}

	writeJSON(w, http.StatusOK, result)
}
