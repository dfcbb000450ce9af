// Package observability provides OpenTelemetry tracing for the orchestrator
// pipeline. Trimmed from the teacher's pkg/observability: no OTLP exporter,
// no metric provider (Prometheus covers request-rate metrics via pkg/api) —
// just the tracer API so pipeline stages produce in-process spans a
// downstream exporter can later be attached to via otel.SetTracerProvider.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "cacp.orchestrator"

// Provider holds the tracer used to start pipeline spans.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
}

// New constructs a Provider with an always-sample in-process tracer
// provider and registers it as the global one.
func New() *Provider {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)
	return &Provider{
		tracerProvider: tp,
		tracer:         tp.Tracer(tracerName),
	}
}

// Tracer returns the pipeline tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return otel.Tracer(tracerName)
	}
	return p.tracer
}

// StartSpan starts a span named name, annotated with attrs.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal), trace.WithAttributes(attrs...))
}

// Shutdown flushes and releases the underlying tracer provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tracerProvider == nil {
		return nil
	}
	return p.tracerProvider.Shutdown(ctx)
}
