package observe

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

// unmatchedRoute labels requests no mux pattern matched, keeping the path
// attribute's cardinality bounded.
const unmatchedRoute = "unmatched"

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.statusCode = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Middleware wraps a handler with tracing, metrics and access logging.
//
// It continues an incoming W3C trace (or starts one), sets X-Correlation-ID
// to the trace ID, and records the duration labelled with the matched
// ServeMux pattern rather than the raw path. A panicking handler is
// answered with 500 and logged.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, "HTTP "+r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			// Without an SDK tracer provider spans carry no IDs; mint a span
			// context so the request still has a correlation ID.
			if !trace.SpanContextFromContext(ctx).HasTraceID() {
				ctx = trace.ContextWithSpanContext(ctx, newSpanContext())
			}
			w.Header().Set("X-Correlation-ID", CorrelationID(ctx))
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			r = r.WithContext(ctx)
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			func() {
				defer func() {
					if v := recover(); v != nil {
						if v == http.ErrAbortHandler {
							panic(v)
						}
						slog.ErrorContext(ctx, "handler panicked", "panic", v, "path", r.URL.Path)
						span.SetStatus(codes.Error, "panic")
						if !rec.wroteHeader {
							http.Error(rec, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
						}
						rec.statusCode = http.StatusInternalServerError
					}
				}()
				next.ServeHTTP(rec, r)
			}()

			// ServeMux stores the matched pattern on the request it routed.
			route := r.Pattern
			if route == "" {
				route = unmatchedRoute
			}
			span.SetName("HTTP " + route)
			span.SetAttributes(
				semconv.HTTPRoute(route),
				semconv.HTTPResponseStatusCode(rec.statusCode),
			)
			if rec.statusCode >= 500 {
				span.SetStatus(codes.Error, http.StatusText(rec.statusCode))
			}

			duration := time.Since(start)
			m.HTTPRequestDuration.Record(ctx, duration.Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("path", route),
					attribute.String("status", strconv.Itoa(rec.statusCode)),
				),
			)

			slog.LogAttrs(ctx, slog.LevelInfo, "request completed",
				slog.String("method", r.Method),
				slog.String("route", route),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Duration("duration", duration),
			)
		})
	}
}

// newSpanContext returns an unsampled span context with random IDs.
func newSpanContext() trace.SpanContext {
	tid, sid := uuid.New(), uuid.New()
	var spanID trace.SpanID
	copy(spanID[:], sid[:])
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID(tid),
		SpanID:  spanID,
	})
}
