package api

import (
	"context"
	"net/http"
	"time"
)

// DependencyCheck pings one external dependency (Redis, Postgres, OPA) and
// returns a non-nil error if it is unreachable.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler serves GET /health and GET /ready (spec.md §6).
//
// /health is a bare liveness probe: it always returns 200 as long as the
// process can handle HTTP. /ready additionally runs every configured
// DependencyCheck and fails closed to 503 if any is unreachable.
type HealthHandler struct {
	Dependencies []DependencyCheck
	Timeout      time.Duration
}

func (h *HealthHandler) timeout() time.Duration {
	if h.Timeout <= 0 {
		return 3 * time.Second
	}
	return h.Timeout
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness handles GET /ready.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	failures := map[string]string{}
	for _, dep := range h.Dependencies {
		if err := dep.Check(ctx); err != nil {
			failures[dep.Name] = err.Error()
		}
	}

	if len(failures) > 0 {
		requestID := CorrelationID(r.Context())
		WriteError(w, requestID, http.StatusServiceUnavailable, ErrInternal, "one or more dependencies unreachable", failures)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
