package observe

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Transport is an [http.RoundTripper] that instruments outbound requests:
// it starts a client span, injects W3C trace context into the request
// headers, records [Metrics.HTTPClientDuration] and logs the outcome at
// debug level.
type Transport struct {
	// Base performs the actual request. Nil means [http.DefaultTransport].
	Base http.RoundTripper

	// Metrics receives the duration samples. Nil means [DefaultMetrics].
	Metrics *Metrics
}

// NewTransport wraps base with instrumentation recorded to m.
func NewTransport(base http.RoundTripper, m *Metrics) *Transport {
	return &Transport{Base: base, Metrics: m}
}

// RoundTrip implements [http.RoundTripper].
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	m := t.Metrics
	if m == nil {
		m = DefaultMetrics()
	}

	start := time.Now()
	ctx, span := StartSpan(req.Context(), "HTTP "+req.Method+" "+req.URL.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.ServerAddress(req.URL.Hostname()),
			semconv.URLPath(req.URL.Path),
		),
	)
	defer span.End()

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(ctx)
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := base.RoundTrip(req)
	duration := time.Since(start)

	m.HTTPClientDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("method", req.Method),
			attribute.String("host", req.URL.Host),
		),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		Logger(ctx).Debug("http request failed",
			"method", req.Method,
			"url", req.URL.Redacted(),
			"duration", duration,
			"err", err,
		)
		return nil, err
	}

	span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
	if resp.StatusCode >= 500 {
		span.SetStatus(codes.Error, resp.Status)
	}
	Logger(ctx).LogAttrs(ctx, slog.LevelDebug, "http request completed",
		slog.String("method", req.Method),
		slog.String("url", req.URL.Redacted()),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", duration),
	)
	return resp, nil
}
