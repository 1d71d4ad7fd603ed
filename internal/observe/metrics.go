// Package observe provides application-wide observability primitives for
// scribed: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all scribed metrics.
const meterName = "github.com/scribed-io/scribed"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use, the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// TranscriptionDuration tracks engine transcription latency. Use with
	// attribute: attribute.String("stage", "chunk"|"full").
	TranscriptionDuration metric.Float64Histogram

	// ConcatDuration tracks audio assembly (decode, resample, re-encode)
	// latency when a session is finalised.
	ConcatDuration metric.Float64Histogram

	// --- Counters ---

	// MessagesHandled counts processed protocol messages. Use with attributes:
	//   attribute.String("type", ...), attribute.String("status", "ok"|<error code>)
	MessagesHandled metric.Int64Counter

	// ChunksIngested counts accepted audio chunks.
	ChunksIngested metric.Int64Counter

	// BytesIngested counts accepted audio payload bytes.
	BytesIngested metric.Int64Counter

	// --- Error counters ---

	// StoreErrors counts metadata store failures. Use with attribute:
	//   attribute.String("op", ...)
	StoreErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveConnections tracks the number of open WebSocket connections.
	ActiveConnections metric.Int64UpDownCounter

	// ActiveSessions tracks the number of sessions in the recording state.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// per-chunk transcription up to whole-session finalisation.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscriptionDuration, err = m.Float64Histogram("scribed.transcription.duration",
		metric.WithDescription("Latency of engine transcription by stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ConcatDuration, err = m.Float64Histogram("scribed.concat.duration",
		metric.WithDescription("Latency of session audio assembly."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.MessagesHandled, err = m.Int64Counter("scribed.messages.handled",
		metric.WithDescription("Total protocol messages handled by type and status."),
	); err != nil {
		return nil, err
	}
	if met.ChunksIngested, err = m.Int64Counter("scribed.chunks.ingested",
		metric.WithDescription("Total audio chunks accepted."),
	); err != nil {
		return nil, err
	}
	if met.BytesIngested, err = m.Int64Counter("scribed.bytes.ingested",
		metric.WithDescription("Total audio payload bytes accepted."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.StoreErrors, err = m.Int64Counter("scribed.store.errors",
		metric.WithDescription("Total metadata store failures by operation."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveConnections, err = m.Int64UpDownCounter("scribed.active_connections",
		metric.WithDescription("Number of open WebSocket connections."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("scribed.active_sessions",
		metric.WithDescription("Number of sessions currently recording."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("scribed.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// RecordMessage records one handled protocol message. status is "ok" or the
// protocol error code that was sent back.
func (m *Metrics) RecordMessage(ctx context.Context, msgType, status string) {
	m.MessagesHandled.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("type", msgType),
			attribute.String("status", status),
		),
	)
}

// RecordChunk records one accepted audio chunk and its payload size.
func (m *Metrics) RecordChunk(ctx context.Context, bytes int) {
	m.ChunksIngested.Add(ctx, 1)
	m.BytesIngested.Add(ctx, int64(bytes))
}

// RecordTranscription records one engine transcription with its latency in
// seconds. stage is "chunk" or "full".
func (m *Metrics) RecordTranscription(ctx context.Context, stage string, seconds float64) {
	m.TranscriptionDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordStoreError records one metadata store failure for the given operation.
func (m *Metrics) RecordStoreError(ctx context.Context, op string) {
	m.StoreErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("op", op)),
	)
}
