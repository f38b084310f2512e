// Package observe provides the recorder's observability primitives:
// OpenTelemetry metrics, tracing, trace-aware logging and the HTTP
// middleware for the telemetry listener.
//
// Metrics are recorded through the OpenTelemetry Metrics API and bridged to
// Prometheus by [InitProvider]. [DefaultMetrics] uses the global provider;
// tests should build their own with [NewMetrics] and a ManualReader.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all voicerec metrics.
const meterName = "github.com/MrWong99/voicerec"

// Metrics holds every instrument the recorder reports. The OTel types handle
// their own synchronisation.
type Metrics struct {
	// Recordings counts finished recordings. Attributes: outcome
	// ("compressed" or "lossless_fallback"), codec.
	Recordings metric.Int64Counter

	// EncodeDuration tracks how long a stop spends encoding. Attribute: outcome.
	EncodeDuration metric.Float64Histogram

	// CodecLoads counts individual codec source attempts. Attributes:
	// source, status ("ok" or "error").
	CodecLoads metric.Int64Counter

	// CapturedSamples counts samples captured across all recordings.
	CapturedSamples metric.Int64Counter

	// ActiveSessions is 1 while a recording is in progress.
	ActiveSessions metric.Int64UpDownCounter

	// HandoffErrors counts failed deliveries. Attribute: target.
	HandoffErrors metric.Int64Counter

	// HTTPRequestDuration tracks telemetry listener requests. Attributes:
	// method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// encodeBuckets are histogram boundaries in seconds. Long recordings through
// an external encoder can take several seconds.
var encodeBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Recordings, err = m.Int64Counter("voicerec.recordings",
		metric.WithDescription("Finished recordings by outcome and codec."),
	); err != nil {
		return nil, err
	}
	if met.EncodeDuration, err = m.Float64Histogram("voicerec.encode.duration",
		metric.WithDescription("Time spent encoding a stopped recording."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(encodeBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CodecLoads, err = m.Int64Counter("voicerec.codec.loads",
		metric.WithDescription("Codec source attempts by source and status."),
	); err != nil {
		return nil, err
	}
	if met.CapturedSamples, err = m.Int64Counter("voicerec.captured.samples",
		metric.WithDescription("Total captured mono samples."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("voicerec.active_sessions",
		metric.WithDescription("Recordings currently in progress."),
	); err != nil {
		return nil, err
	}
	if met.HandoffErrors, err = m.Int64Counter("voicerec.handoff.errors",
		metric.WithDescription("Failed artifact deliveries by target."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voicerec.http.request.duration",
		metric.WithDescription("Telemetry listener request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], created on first use
// from [otel.GetMeterProvider]. Call it after [InitProvider] so the
// instruments bind to the exporting provider.
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

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordRecording counts one finished recording and its encode time.
func (m *Metrics) RecordRecording(ctx context.Context, outcome, codec string, encode time.Duration) {
	m.Recordings.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("codec", codec),
	))
	m.EncodeDuration.Record(ctx, encode.Seconds(), metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

// RecordCodecLoad counts one codec source attempt.
func (m *Metrics) RecordCodecLoad(ctx context.Context, source string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.CodecLoads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("status", status),
	))
}

// RecordHandoffError counts one failed delivery.
func (m *Metrics) RecordHandoffError(ctx context.Context, target string) {
	m.HandoffErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("target", target)))
}
