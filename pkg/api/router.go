package api

import "net/http"

// Router assembles every HTTP handler behind the middleware chain the
// teacher's console server uses: correlation/duration stamping and a
// global per-IP rate limiter applied to the whole mux, with AdminAuth
// additionally scoped to /admin/*.
type Router struct {
	Ingest        *IngestHandler
	GitHubWebhook *GitHubWebhookHandler
	TwilioStatus  *TwilioStatusHandler
	Health        *HealthHandler
	Metrics       *Metrics
	Admin         *AdminHandler
	AdminAuth     *AdminAuth
	RateLimiter   *GlobalRateLimiter
}

// Handler builds the final http.Handler, with middleware applied.
func (r *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/ingest", r.Ingest)
	mux.Handle("/webhook/github", r.GitHubWebhook)
	mux.Handle("/webhook/twilio-status", r.TwilioStatus)

	mux.HandleFunc("/health", r.Health.Liveness)
	mux.HandleFunc("/ready", r.Health.Readiness)
	mux.Handle("/metrics", r.Metrics.Handler())

	adminMux := http.NewServeMux()
	adminMux.HandleFunc("/admin/dlq/replay", r.Admin.ReplayDLQ)
	adminMux.HandleFunc("/admin/audit/export", r.Admin.ExportAudit)
	mux.Handle("/admin/", r.AdminAuth.Middleware(adminMux))

	var handler http.Handler = mux
	if r.RateLimiter != nil {
		handler = r.RateLimiter.Middleware(handler)
	}
	return CorrelationMiddleware(handler)
}
