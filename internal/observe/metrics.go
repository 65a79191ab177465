// Package observe provides application-wide observability primitives for
// aura: OpenTelemetry metrics, tracing, trace-aware logging, and HTTP
// instrumentation for both the backend client and the local status server.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// bridges them to Prometheus so they can be scraped from /metrics. A
// package-level [DefaultMetrics] instance exists for wiring code; tests should
// build their own with [NewMetrics] and a [sdkmetric.ManualReader].
package observe

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all aura metrics.
const meterName = "github.com/MrWong99/aura"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// BackendDuration tracks the round trip of one chat exchange with the
	// research backend, including failures.
	BackendDuration metric.Float64Histogram

	// HTTPClientDuration tracks outbound HTTP latency. Use with attributes:
	//   attribute.String("method", ...), attribute.String("host", ...)
	HTTPClientDuration metric.Float64Histogram

	// HTTPRequestDuration tracks the local status server. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// BackendRequests counts chat exchanges. Use with attribute:
	//   attribute.String("status", "ok"|"error"|"stale")
	BackendRequests metric.Int64Counter

	// Messages counts transcript appends. Use with attributes:
	//   attribute.String("sender", ...), attribute.Bool("replay", ...)
	Messages metric.Int64Counter

	// InsightUnits counts derived insight units by kind.
	InsightUnits metric.Int64Counter

	// SpeechUtterances counts started utterances. Use with attribute:
	//   attribute.String("mode", "manual"|"autoplay")
	SpeechUtterances metric.Int64Counter

	// HistoryLoadFailures counts persisted transcripts that failed to decode.
	HistoryLoadFailures metric.Int64Counter

	// --- Gauges ---

	// QuickFactSessions is 1 while a quick fact overlay is running.
	QuickFactSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Research
// answers routinely take tens of seconds, so the tail is long.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.BackendDuration, err = m.Float64Histogram("aura.backend.duration",
		metric.WithDescription("Latency of a chat exchange with the research backend."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPClientDuration, err = m.Float64Histogram("aura.http.client.duration",
		metric.WithDescription("Outbound HTTP latency by method and host."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("aura.http.request.duration",
		metric.WithDescription("Status server request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.BackendRequests, err = m.Int64Counter("aura.backend.requests",
		metric.WithDescription("Total chat exchanges by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Messages, err = m.Int64Counter("aura.messages",
		metric.WithDescription("Transcript messages appended by sender and replay flag."),
	); err != nil {
		return nil, err
	}
	if met.InsightUnits, err = m.Int64Counter("aura.insight.units",
		metric.WithDescription("Insight units derived by kind."),
	); err != nil {
		return nil, err
	}
	if met.SpeechUtterances, err = m.Int64Counter("aura.speech.utterances",
		metric.WithDescription("Utterances started by mode."),
	); err != nil {
		return nil, err
	}
	if met.HistoryLoadFailures, err = m.Int64Counter("aura.history.load_failures",
		metric.WithDescription("Persisted transcripts discarded because they failed to decode."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.QuickFactSessions, err = m.Int64UpDownCounter("aura.quickfact.sessions",
		metric.WithDescription("Number of running quick fact overlays."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordBackendRequest records the outcome and latency of one exchange.
func (m *Metrics) RecordBackendRequest(ctx context.Context, status string, d time.Duration) {
	m.BackendRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.BackendDuration.Record(ctx, d.Seconds())
}

// RecordMessage records a transcript append.
func (m *Metrics) RecordMessage(ctx context.Context, sender string, replay bool) {
	m.Messages.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("sender", sender),
			attribute.String("replay", strconv.FormatBool(replay)),
		),
	)
}

// RecordInsightUnit records one derived insight unit.
func (m *Metrics) RecordInsightUnit(ctx context.Context, kind string) {
	m.InsightUnits.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordUtterance records a started utterance.
func (m *Metrics) RecordUtterance(ctx context.Context, autoplay bool) {
	mode := "manual"
	if autoplay {
		mode = "autoplay"
	}
	m.SpeechUtterances.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}
