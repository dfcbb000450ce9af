package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/audit"
)

// DLQReplayer is the narrow capability AdminHandler needs to replay
// dead-lettered actions.
type DLQReplayer interface {
	ReplayDLQ(ctx context.Context, n int) (int, error)
}

// AdminHandler serves the operator surface: POST /admin/dlq/replay and
// GET /admin/audit/export (SPEC_FULL.md §6 ambient addition). Both routes
// are expected to sit behind AdminAuth.Middleware.
type AdminHandler struct {
	Worker    DLQReplayer
	AuditLog  audit.Store
}

const defaultDLQReplayBatch = 50

// ReplayDLQ handles POST /admin/dlq/replay?n=<count>.
func (h *AdminHandler) ReplayDLQ(w http.ResponseWriter, r *http.Request) {
	requestID := CorrelationID(r.Context())

	n := defaultDLQReplayBatch
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			WriteInvalidRequest(w, requestID, "n must be a positive integer", nil)
			return
		}
		n = parsed
	}

	replayed, err := h.Worker.ReplayDLQ(r.Context(), n)
	if err != nil {
		WriteInternal(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"replayed": replayed})
}

// ExportAudit handles GET /admin/audit/export, optionally filtered by
// aggregate_id/event_type query parameters.
func (h *AdminHandler) ExportAudit(w http.ResponseWriter, r *http.Request) {
	requestID := CorrelationID(r.Context())

	filter := audit.QueryFilter{
		AggregateID: r.URL.Query().Get("aggregate_id"),
		EventType:   r.URL.Query().Get("event_type"),
	}

	bundle, err := audit.Export(r.Context(), h.AuditLog, filter)
	if err != nil {
		WriteInvalidRequest(w, requestID, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}
