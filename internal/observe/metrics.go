// Package observe provides the observability primitives shared by the
// pipeline and the HTTP API: OpenTelemetry metrics and tracing, trace-aware
// logging and HTTP middleware that ties them together.
//
// Metrics go through the OpenTelemetry Metrics API. [InitProvider] installs
// a Prometheus exporter bridge so they can be scraped from /metrics. Tests
// should build their own [Metrics] with [NewMetrics] and a manual reader.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// meterName is the instrumentation scope of every railvox metric.
const meterName = "github.com/MrWong99/railvox"

// Pipeline stage names, used as the "stage" attribute and in span names.
const (
	StageTranscribe   = "transcribe"
	StageTranslateIn  = "translate_in"
	StageResolve      = "resolve"
	StageSession      = "session"
	StageBackend      = "backend"
	StageFormat       = "format"
	StageTranslateOut = "translate_out"
	StageSynthesize   = "synthesize"
)

// Metrics holds the OpenTelemetry instruments of the application.
type Metrics struct {
	// StageDuration tracks the latency of one pipeline stage. Attributes:
	// stage, status.
	StageDuration metric.Float64Histogram

	// QueryDuration tracks end-to-end query latency. Attributes: action,
	// status.
	QueryDuration metric.Float64Histogram

	// Queries counts handled queries. Attributes: action, status.
	Queries metric.Int64Counter

	// IntentConfidence records the classifier confidence per intent.
	IntentConfidence metric.Float64Histogram

	// ProviderErrors counts provider failures. Attributes: kind, provider.
	ProviderErrors metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Attributes:
	// breaker, to.
	BreakerTransitions metric.Int64Counter

	// ActiveQueries tracks queries in flight.
	ActiveQueries metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request latency. Attributes: method,
	// path, status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds, from sub-millisecond
// intent resolution to multi-second speech synthesis.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

var confidenceBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("railvox.stage.duration",
		metric.WithDescription("Latency of one pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.QueryDuration, err = m.Float64Histogram("railvox.query.duration",
		metric.WithDescription("End-to-end latency of a query."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Queries, err = m.Int64Counter("railvox.queries",
		metric.WithDescription("Total queries by action and status."),
	); err != nil {
		return nil, err
	}
	if met.IntentConfidence, err = m.Float64Histogram("railvox.intent.confidence",
		metric.WithDescription("Classifier confidence of the chosen intent."),
		metric.WithExplicitBucketBoundaries(confidenceBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("railvox.provider.errors",
		metric.WithDescription("Total provider errors by kind and provider."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("railvox.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by breaker and target state."),
	); err != nil {
		return nil, err
	}
	if met.ActiveQueries, err = m.Int64UpDownCounter("railvox.active_queries",
		metric.WithDescription("Number of queries in flight."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("railvox.http.request.duration",
		metric.WithDescription("HTTP request latency by method, path and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a package-level [Metrics] built from the global
// meter provider on first use.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// StartStage opens a span named "stage.<stage>" and returns the span context
// plus a function that ends the span and records the stage duration. Pass
// the stage's error (or nil) to the returned function.
func (m *Metrics) StartStage(ctx context.Context, stage string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := StartSpan(ctx, "stage."+stage, trace.WithAttributes(attribute.String("stage", stage)))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		m.StageDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(
				attribute.String("stage", stage),
				attribute.String("status", status(err)),
			),
		)
	}
}

// RecordQuery records one finished query.
func (m *Metrics) RecordQuery(ctx context.Context, action string, d time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("status", status(err)),
	)
	m.Queries.Add(ctx, 1, attrs)
	m.QueryDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordIntent records the confidence of a classification.
func (m *Metrics) RecordIntent(ctx context.Context, intent string, confidence float64) {
	m.IntentConfidence.Record(ctx, confidence,
		metric.WithAttributes(attribute.String("intent", intent)),
	)
}

// RecordProviderError counts a provider failure. kind is one of stt,
// translate, tts, embeddings or backend.
func (m *Metrics) RecordProviderError(ctx context.Context, kind, provider string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("provider", provider),
		),
	)
}

// RecordBreakerTransition counts a circuit breaker state change. Its
// signature matches the breaker's state-change callback once the states
// are rendered as strings.
func (m *Metrics) RecordBreakerTransition(name, to string) {
	m.BreakerTransitions.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("breaker", name),
			attribute.String("to", to),
		),
	)
}
