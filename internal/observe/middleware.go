package observe

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// StatusPaths are the routes of the local status server. Requests for any
// other path are recorded under the "other" label.
var StatusPaths = []string{"/metrics", "/healthz", "/readyz"}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func routeLabel(path string) string {
	if slices.Contains(StatusPaths, path) {
		return path
	}
	return "other"
}

// Middleware instruments the local status server. It continues an incoming
// W3C trace context, echoes the trace id in X-Correlation-ID and records
// [Metrics.HTTPRequestDuration] labelled by route.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := routeLabel(r.URL.Path)

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, "status "+r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()
			if cid := CorrelationID(ctx); cid != "" {
				w.Header().Set("X-Correlation-ID", cid)
			}

			rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			elapsed := time.Since(start)
			span.SetAttributes(semconv.HTTPResponseStatusCode(rec.code))
			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("path", route),
			))

			level := slog.LevelDebug
			if rec.code >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			Logger(ctx).Log(ctx, level, "status request",
				"path", r.URL.Path, "status", rec.code, "duration", elapsed)
		})
	}
}
