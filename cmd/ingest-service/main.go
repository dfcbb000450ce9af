// Command ingest-service serves the HTTP surface: POST /ingest, the
// GitHub merge and Twilio delivery-status webhooks, health/readiness/
// metrics, and the admin operator endpoints.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/agents"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/api"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/audit"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/config"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/crypto"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/gitops"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/observability"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/orchestrator"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/pdp"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/queue"
)

func main() {
	cfg := config.Load()
	log := slog.Default().With("service", "ingest-service")

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Error("failed to open postgres", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	auditLogger := audit.NewLogger(audit.NewPostgresStore(db), log)
	auditStore := audit.NewPostgresStore(db)

	profiles, err := config.LoadAllClinicProfiles(cfg.ProfilesDir)
	if err != nil {
		log.Warn("failed to load clinic profiles, falling back to built-in defaults only", "dir", cfg.ProfilesDir, "error", err)
	}
	resolver := orchestrator.ProfileResolver(config.Resolver(profiles))

	var decisionPoint pdp.PolicyDecisionPoint
	if cfg.OPAURL != "" {
		decisionPoint = pdp.NewOPAPDP(pdp.OPAConfig{URL: cfg.OPAURL, Timeout: cfg.OPATimeout})
	}

	var gitOpsSubmitter orchestrator.GitOpsSubmitter
	if cfg.GitHubToken != "" && cfg.GitHubOwner != "" && cfg.GitHubRepo != "" {
		gitOpsSubmitter = gitops.NewSubmitter(gitops.Config{
			Owner: cfg.GitHubOwner,
			Repo:  cfg.GitHubRepo,
			Token: cfg.GitHubToken,
		})
	}

	tracer := observability.New()
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	orch := orchestrator.New(
		agents.NewRevenueAgent(),
		agents.NewComplianceAgent(decisionPoint),
		crypto.NewSigner(cfg.HMACSecret),
		gitOpsSubmitter,
		resolver,
		auditLogger,
		cfg.Environment,
		cfg.Role,
		"prod",
		tracer,
		log,
	)

	metrics := api.NewMetrics()
	q := queue.New(redisClient)

	router := &api.Router{
		Ingest: &api.IngestHandler{Orchestrator: orch, Metrics: metrics},
		GitHubWebhook: &api.GitHubWebhookHandler{
			Secret:       cfg.GitHubWebhookSecret,
			RepoFullName: cfg.GitHubOwner + "/" + cfg.GitHubRepo,
			Environment:  cfg.Environment,
			Queue:        q,
			AuditLog:     auditLogger,
			Metrics:      metrics,
		},
		TwilioStatus: &api.TwilioStatusHandler{
			AuthToken: cfg.TwilioAuthToken,
			PublicURL: cfg.PublicBaseURL + "/webhook/twilio-status",
			AuditLog:  auditLogger,
			Metrics:   metrics,
		},
		Health: &api.HealthHandler{Dependencies: []api.DependencyCheck{
			{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
			{Name: "postgres", Check: func(ctx context.Context) error { return db.PingContext(ctx) }},
		}},
		Metrics:     metrics,
		Admin:       &api.AdminHandler{Worker: q, AuditLog: auditStore},
		AdminAuth:   &api.AdminAuth{Secret: cfg.AdminJWTSecret},
		RateLimiter: api.NewGlobalRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("ingest-service listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
