// Package observability provides OpenTelemetry tracing, an in-process
// metrics registry and the JSONL audit log.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope for every courtside span.
const TracerName = "github.com/efebarandurmaz/courtside"

// TracingConfig configures the OpenTelemetry tracing.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g. "localhost:4317").
	// If empty, tracing is disabled.
	OTLPEndpoint string

	// SampleRate is the trace sampling rate (0.0 to 1.0).
	SampleRate float64
}

// DefaultTracingConfig returns a default tracing configuration.
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "courtside",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// TracerProvider wraps the OpenTelemetry tracer provider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing initializes OpenTelemetry tracing.
// Returns a no-op tracer if OTLPEndpoint is empty.
func InitTracing(ctx context.Context, cfg *TracingConfig) (*TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}

	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{tracer: otel.Tracer(TracerName)}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(TracerName),
	}, nil
}

// Shutdown flushes and stops the tracer provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

// Tracer returns the underlying tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// Span kinds recorded under courtside.span.kind.
const (
	SpanKindRoute    = "route"
	SpanKindPipeline = "pipeline"
	SpanKindLLM      = "llm"
	SpanKindIndex    = "index"
	SpanKindSQL      = "sql"
)

// StartRouteSpan starts the root span of one routed question.
func StartRouteSpan(ctx context.Context, question string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "route",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("courtside.span.kind", SpanKindRoute),
			attribute.Int("route.question_length", len([]rune(question))),
		),
	)
}

// RecordRouteDecision tags the route span with the chosen path. Route state
// transitions are span events.
func RecordRouteDecision(span trace.Span, decision string, ambiguous bool) {
	span.SetAttributes(
		attribute.String("route.decision", decision),
		attribute.Bool("route.ambiguous", ambiguous),
	)
	span.AddEvent("DISPATCH_" + decision)
}

// StartPipelineSpan starts a span for the structured or retrieval pipeline.
func StartPipelineSpan(ctx context.Context, pipeline string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "pipeline."+pipeline,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("courtside.span.kind", SpanKindPipeline),
			attribute.String("pipeline.name", pipeline),
		),
	)
}

// RecordRetrieval records how many chunks fed the answer.
func RecordRetrieval(span trace.Span, k, hits int) {
	span.SetAttributes(
		attribute.Int("retrieval.k", k),
		attribute.Int("retrieval.hits", hits),
	)
}

// StartSQLSpan starts a span for one step (generate, validate, execute,
// rephrase) of the structured pipeline.
func StartSQLSpan(ctx context.Context, step string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "sql."+step,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("courtside.span.kind", SpanKindSQL),
			attribute.String("sql.step", step),
		),
	)
}

// RecordSQLResult marks an execution outcome; failures are data, not span
// errors, since the pipeline carries them on to the rephrase step.
func RecordSQLResult(span trace.Span, statement string, failed bool) {
	span.SetAttributes(
		attribute.String("db.statement", statement),
		attribute.Bool("sql.failed", failed),
	)
}

// StartLLMSpan starts a span for an LLM call.
func StartLLMSpan(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "llm.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("courtside.span.kind", SpanKindLLM),
			attribute.String("llm.provider", provider),
			attribute.String("llm.model", model),
		),
	)
}

// RecordLLMMetrics records LLM call metrics on a span.
func RecordLLMMetrics(span trace.Span, inputTokens, outputTokens int, duration time.Duration) {
	span.SetAttributes(
		attribute.Int("llm.input_tokens", inputTokens),
		attribute.Int("llm.output_tokens", outputTokens),
		attribute.Int("llm.total_tokens", inputTokens+outputTokens),
		attribute.Int64("llm.duration_ms", duration.Milliseconds()),
	)
}

// StartIndexSpan starts a span for an index operation (build, load, search).
func StartIndexSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "index."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("courtside.span.kind", SpanKindIndex),
			attribute.String("index.op", op),
		),
	)
}

// RecordIndexBuild records build sizes on a span.
func RecordIndexBuild(span trace.Span, documents, chunks, batches int) {
	span.SetAttributes(
		attribute.Int("index.documents", documents),
		attribute.Int("index.chunks", chunks),
		attribute.Int("index.batches", batches),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
