// Command worker drains the Work Queue and drives each envelope through
// the gating pipeline (consent, quiet hours, dedup, rate limit) to its
// configured Action Adapter. A background loop promotes due retries back
// onto the main queue on the same cadence the teacher's worker pools poll
// their retry heaps.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/adapters"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/api"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/audit"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/config"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/consent"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/queue"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/worker"
)

// dequeueTimeout bounds each blocking pop so the retry-promotion loop and
// shutdown signal both get a chance to run between jobs.
const dequeueTimeout = 5 * time.Second

// retryPromoteInterval is how often due retries are moved back onto the
// main queue.
const retryPromoteInterval = 30 * time.Second

func main() {
	cfg := config.Load()
	log := slog.Default().With("service", "worker")

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

	q := queue.New(redisClient)
	auditLogger := audit.NewLogger(audit.NewPostgresStore(db), log)
	consentStore := consent.NewPostgresStore(db)

	var smsAdapter adapters.Adapter
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		smsAdapter = adapters.NewSMSAdapter(adapters.SMSConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioFromNumber,
		})
	} else {
		log.Warn("twilio credentials not configured, reminder actions will no-op")
		smsAdapter = adapters.NoopAdapter{}
	}

	registry := adapters.NewRegistry(map[string]adapters.Adapter{
		"send_reminder":     smsAdapter,
		"send_confirmation": smsAdapter,
		"reschedule":        smsAdapter,
		"execute_plan":      adapters.NoopAdapter{},
	})

	pipeline := worker.NewPipeline(q, consentStore, registry, auditLogger, worker.RailConfig{
		QuietHoursStart: cfg.QuietHoursStart,
		QuietHoursEnd:   cfg.QuietHoursEnd,
		Timezone:        cfg.Timezone,
		RateLimit:       cfg.RateLimit,
		RateWindow:      cfg.RateWindow,
		MaxRetries:      cfg.MaxRetries,
	})

	metrics := api.NewMetrics()
	pipeline.OnOutcome = func(o worker.Outcome) {
		metrics.WorkerJobsTotal.WithLabelValues(string(o)).Inc()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runRetryPromotionLoop(ctx, pipeline, log)

	log.Info("worker started")
	for ctx.Err() == nil {
		outcome, err := pipeline.RunOnce(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error("dequeue failed", "error", err)
			continue
		}
		if outcome != "" {
			log.Info("job processed", "outcome", outcome)
		}
	}
	log.Info("worker stopped")
}

func runRetryPromotionLoop(ctx context.Context, pipeline *worker.Pipeline, log *slog.Logger) {
	ticker := time.NewTicker(retryPromoteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := pipeline.PromoteDueRetries(ctx)
			if err != nil {
				log.Error("retry promotion failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("promoted due retries", "count", n)
			}
		}
	}
}
