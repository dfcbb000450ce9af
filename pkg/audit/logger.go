package audit

import (
	"context"
	"log/slog"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/contracts"
)

// Logger records lifecycle events fire-and-forget: store failures are
// logged but never alter caller output (spec.md §4.6). Every orchestrator
// and worker component holds one of these rather than a raw Store.
type Logger struct {
	store Store
	log   *slog.Logger
}

// NewLogger wraps store for fire-and-forget recording. A nil store is
// permitted: Record becomes a no-op that still logs at debug level.
func NewLogger(store Store, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{store: store, log: log}
}

// Record appends eventType for aggregateID with payload, never returning an
// error to the caller. Store failures are logged at warn level.
func (l *Logger) Record(ctx context.Context, aggregateID, eventType string, payload any) {
	if l.store == nil {
		l.log.DebugContext(ctx, "audit store not configured, dropping event", "event_type", eventType, "aggregate_id", aggregateID)
		return
	}
	event := contracts.Event{
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     payload,
		Actor:       contracts.DefaultActor,
	}
	if _, err := l.store.Append(ctx, event); err != nil {
		l.log.WarnContext(ctx, "failed to append audit event", "event_type", eventType, "aggregate_id", aggregateID, "error", err)
	}
}

// RecordWithIdempotencyKey is Record with an idempotency key attached,
// used by webhook handlers replaying a delivery.
func (l *Logger) RecordWithIdempotencyKey(ctx context.Context, aggregateID, eventType, idempotencyKey string, payload any) {
	if l.store == nil {
		return
	}
	event := contracts.Event{
		AggregateID:    aggregateID,
		EventType:      eventType,
		Payload:        payload,
		Actor:          contracts.DefaultActor,
		IdempotencyKey: idempotencyKey,
	}
	if _, err := l.store.Append(ctx, event); err != nil {
		l.log.WarnContext(ctx, "failed to append audit event", "event_type", eventType, "aggregate_id", aggregateID, "error", err)
	}
}
