// Package worker implements the per-job gating pipeline that dequeues
// action envelopes from the Work Queue and drives them through the
// compliance rails to an Action Adapter, modeled structurally on the
// teacher's executor.SafeExecutor.Execute: a strict sequence of gates,
// each short-circuiting to a terminal outcome, with fire-and-forget audit
// emission at every step.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/adapters"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/audit"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/consent"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/contracts"
)

// Queue narrows pkg/queue.Queue to the operations the pipeline needs, so
// tests can substitute an in-memory fake instead of a live Redis instance.
type Queue interface {
	BlockingPop(ctx context.Context, timeout time.Duration) (map[string]any, error)
	ScheduleRetry(ctx context.Context, envelope map[string]any, at time.Time) error
	PromoteDueRetries(ctx context.Context, now time.Time) (int, error)
	DeadLetter(ctx context.Context, envelope map[string]any) error
	ReplayDLQ(ctx context.Context, n int) (int, error)
	AllowRate(ctx context.Context, patientID, channel string, limit int, window time.Duration, now time.Time) (bool, error)
	MarkSent(ctx context.Context, appointmentID, channel string, ttl time.Duration) (bool, error)
}

// defaultBackoff is the retry delay sequence used when RailConfig.Backoff
// is empty (spec.md §4.11).
var defaultBackoff = []time.Duration{60 * time.Second, 300 * time.Second, 900 * time.Second}

// RailConfig bounds the worker's gating rails. Zero values fall back to
// spec.md's defaults.
type RailConfig struct {
	QuietHoursStart int // 0-23
	QuietHoursEnd   int // 0-23
	Timezone        string
	RateLimit       int
	RateWindow      time.Duration
	DedupTTL        time.Duration
	MaxRetries      int
	Backoff         []time.Duration
}

func (c RailConfig) backoff() []time.Duration {
	if len(c.Backoff) == 0 {
		return defaultBackoff
	}
	return c.Backoff
}

func (c RailConfig) maxRetries() int {
	if c.MaxRetries <= 0 {
		return 3
	}
	return c.MaxRetries
}

func (c RailConfig) rateLimit() int {
	if c.RateLimit <= 0 {
		return 1 << 30 // effectively unlimited when unconfigured
	}
	return c.RateLimit
}

func (c RailConfig) rateWindow() time.Duration {
	if c.RateWindow <= 0 {
		return time.Minute
	}
	return c.RateWindow
}

func (c RailConfig) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return 24 * time.Hour
	}
	return c.DedupTTL
}

// Outcome names the terminal result of one pipeline run, used by tests and
// metrics. It mirrors the event_type emitted for the same run.
type Outcome string

const (
	OutcomeExecuted       Outcome = contracts.EventActionExecuted
	OutcomeFailed         Outcome = contracts.EventActionFailed
	OutcomeBlocked        Outcome = contracts.EventActionBlocked
	OutcomeRetryScheduled Outcome = contracts.EventActionRetryScheduled
	OutcomeDeadLettered   Outcome = contracts.EventActionDeadLettered
)

// Pipeline wires the Work Queue, Consent Store, Action Adapter registry,
// and Event Store into the worker's gating sequence.
type Pipeline struct {
	Queue    Queue
	Consent  consent.Store // nil disables the consent rail
	Adapters *adapters.Registry
	AuditLog *audit.Logger
	Rails    RailConfig
	Now      func() time.Time
	// OnOutcome, if set, is called with every terminal Outcome. Used to feed
	// the cacp_worker_jobs_total Prometheus counter without coupling this
	// package to pkg/api's metrics registry.
	OnOutcome func(Outcome)
}

// NewPipeline constructs a Pipeline with Now defaulting to time.Now.
func NewPipeline(q Queue, consentStore consent.Store, registry *adapters.Registry, auditLog *audit.Logger, rails RailConfig) *Pipeline {
	return &Pipeline{
		Queue:    q,
		Consent:  consentStore,
		Adapters: registry,
		AuditLog: auditLog,
		Rails:    rails,
		Now:      time.Now,
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// RunOnce promotes every due retry back onto the main queue, then dequeues
// a single job (blocking up to timeout) and drives it through the pipeline.
// Returns ("", nil) when the dequeue times out with no job available.
func (p *Pipeline) RunOnce(ctx context.Context, timeout time.Duration) (Outcome, error) {
	if _, err := p.PromoteDueRetries(ctx); err != nil {
		return "", fmt.Errorf("worker: promote due retries: %w", err)
	}
	envelope, err := p.Queue.BlockingPop(ctx, timeout)
	if err != nil {
		return "", fmt.Errorf("worker: dequeue: %w", err)
	}
	if envelope == nil {
		return "", nil
	}
	return p.Process(ctx, envelope), nil
}

// Process drives a single dequeued envelope through the gating pipeline.
// It never returns an error: every terminal state is expressed as an
// Outcome plus an emitted audit event, matching spec.md's "the worker
// never propagates adapter errors to the queue layer" propagation policy.
func (p *Pipeline) Process(ctx context.Context, envelope map[string]any) (outcome Outcome) {
	if p.OnOutcome != nil {
		defer func() { p.OnOutcome(outcome) }()
	}

	aggregateID := stringField(envelope, "appointment_id")
	actionType := stringField(envelope, "action_type")
	channel := stringField(envelope, "channel")
	patientID := stringField(envelope, "patient_id")

	// 1. Resolve adapter.
	adapter, ok := p.Adapters.Resolve(actionType)
	if !ok {
		p.AuditLog.Record(ctx, aggregateID, contracts.EventActionFailed, map[string]any{
			"action_type": actionType,
			"reason":      "no_adapter",
		})
		return OutcomeFailed
	}

	// 2. Consent rail.
	if p.Consent != nil {
		if patientID == "" {
			p.AuditLog.Record(ctx, aggregateID, contracts.EventActionBlocked, map[string]any{
				"action_type": actionType,
				"reason":      "no_patient_id",
			})
			return OutcomeBlocked
		}
		active, err := p.Consent.IsActive(ctx, patientID, channel)
		if err != nil || !active {
			p.AuditLog.Record(ctx, aggregateID, contracts.EventActionBlocked, map[string]any{
				"action_type": actionType,
				"reason":      "no_consent",
			})
			return OutcomeBlocked
		}
	}

	// 3. Quiet-hours rail.
	if p.inQuietHours(p.now()) {
		p.AuditLog.Record(ctx, aggregateID, contracts.EventActionBlocked, map[string]any{
			"action_type": actionType,
			"reason":      "quiet_hours",
		})
		return OutcomeBlocked
	}

	// 4. Rate-limit rail.
	allowed, err := p.Queue.AllowRate(ctx, patientID, channel, p.Rails.rateLimit(), p.Rails.rateWindow(), p.now())
	if err != nil || !allowed {
		p.AuditLog.Record(ctx, aggregateID, contracts.EventActionBlocked, map[string]any{
			"action_type": actionType,
			"reason":      "rate_limited",
		})
		return OutcomeBlocked
	}

	// 5. Dedup.
	won, err := p.Queue.MarkSent(ctx, aggregateID, channel, p.Rails.dedupTTL())
	if err != nil || !won {
		p.AuditLog.Record(ctx, aggregateID, contracts.EventActionBlocked, map[string]any{
			"action_type": actionType,
			"reason":      "duplicate_action",
		})
		return OutcomeBlocked
	}

	// 6/7. Execute; adapter errors flow to retry, while a failed result is
	// terminal (action_failed, no retry).
	result, execErr := adapter.Execute(ctx, envelope)
	if execErr != nil {
		p.AuditLog.Record(ctx, aggregateID, contracts.EventActionFailed, map[string]any{
			"action_type": actionType,
			"reason":      "adapter_error",
			"error":       execErr.Error(),
		})
		return p.scheduleRetry(ctx, envelope, aggregateID)
	}
	if result.Status == adapters.StatusFailed {
		p.AuditLog.Record(ctx, aggregateID, contracts.EventActionFailed, map[string]any{
			"action_type": actionType,
			"reason":      "adapter_rejected",
			"error_code":  result.ErrorCode,
		})
		return OutcomeFailed
	}

	p.AuditLog.Record(ctx, aggregateID, contracts.EventActionExecuted, map[string]any{
		"action_type":         actionType,
		"adapter":             result.Adapter,
		"status":              result.Status,
		"provider":            result.Provider,
		"provider_message_id": result.ProviderMessageID,
	})
	return OutcomeExecuted
}

// scheduleRetry increments the envelope's retry count and either routes it
// to the DLQ or re-schedules it with backoff (spec.md §4.11).
func (p *Pipeline) scheduleRetry(ctx context.Context, envelope map[string]any, aggregateID string) Outcome {
	retryCount := intField(envelope, "_retry_count") + 1
	envelope["_retry_count"] = float64(retryCount)

	if retryCount > p.Rails.maxRetries() {
		if err := p.Queue.DeadLetter(ctx, envelope); err != nil {
			p.AuditLog.Record(ctx, aggregateID, contracts.EventActionFailed, map[string]any{
				"reason": "dlq_push_failed",
				"error":  err.Error(),
			})
			return OutcomeFailed
		}
		p.AuditLog.Record(ctx, aggregateID, contracts.EventActionDeadLettered, map[string]any{
			"retry_count": retryCount,
		})
		return OutcomeDeadLettered
	}

	backoff := p.Rails.backoff()
	idx := retryCount - 1
	if idx >= len(backoff) {
		idx = len(backoff) - 1
	}
	delay := backoff[idx]
	at := p.now().Add(delay)

	if err := p.Queue.ScheduleRetry(ctx, envelope, at); err != nil {
		p.AuditLog.Record(ctx, aggregateID, contracts.EventActionFailed, map[string]any{
			"reason": "retry_schedule_failed",
			"error":  err.Error(),
		})
		return OutcomeFailed
	}
	p.AuditLog.Record(ctx, aggregateID, contracts.EventActionRetryScheduled, map[string]any{
		"retry_count": retryCount,
		"delay_s":     delay.Seconds(),
	})
	return OutcomeRetryScheduled
}

// PromoteDueRetries moves every due retry entry back onto the main queue.
// RunOnce calls it before every dequeue; it is also exposed standalone
// (spec.md §4.11).
func (p *Pipeline) PromoteDueRetries(ctx context.Context) (int, error) {
	return p.Queue.PromoteDueRetries(ctx, p.now())
}

// ReplayDLQ pops up to n dead-lettered entries, resets their retry count,
// and pushes them back onto the main queue.
func (p *Pipeline) ReplayDLQ(ctx context.Context, n int) (int, error) {
	return p.Queue.ReplayDLQ(ctx, n)
}

// inQuietHours reports whether now (interpreted in the pipeline's
// configured IANA timezone) falls within [start, end), wrapping across
// midnight when start > end.
func (p *Pipeline) inQuietHours(now time.Time) bool {
	start, end := p.Rails.QuietHoursStart, p.Rails.QuietHoursEnd
	if start == 0 && end == 0 {
		return false
	}
	loc := time.UTC
	if p.Rails.Timezone != "" {
		if l, err := time.LoadLocation(p.Rails.Timezone); err == nil {
			loc = l
		}
	}
	hour := now.In(loc).Hour()
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

func stringField(envelope map[string]any, key string) string {
	if v, ok := envelope[key].(string); ok {
		return v
	}
	return ""
}

func intField(envelope map[string]any, key string) int {
	switch v := envelope[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
