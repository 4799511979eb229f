// Package observe holds the OpenTelemetry instruments for recording
// sessions and the Prometheus bridge that exposes them.
//
// Tests should build [Metrics] from their own meter provider with
// [NewMetrics] instead of relying on the global one.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/garlicgarrison/go-emotion-recorder"

// Reasons a clip never reaches the aggregator.
const (
	DropEncode   = "encode"
	DropSilent   = "silent"
	DropError    = "inference_error"
	DropLate     = "late"
	DropShortEnd = "short_tail"
)

// Metrics holds every instrument. All fields are safe for concurrent use.
type Metrics struct {
	// ClipsEmitted counts clips finalized by the segmenter.
	ClipsEmitted metric.Int64Counter

	// ClipsDropped counts clips that never updated the aggregator. Use with
	// attribute.String("reason", ...).
	ClipsDropped metric.Int64Counter

	// InferenceDuration tracks the round trip to the inference endpoint.
	InferenceDuration metric.Float64Histogram

	// ClipDuration tracks the audio length of emitted clips.
	ClipDuration metric.Float64Histogram

	// ActiveSessions is the number of sessions currently recording.
	ActiveSessions metric.Int64UpDownCounter

	// InFlight is the number of inference calls waiting on the network.
	InFlight metric.Int64UpDownCounter
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ClipsEmitted, err = m.Int64Counter("emorec.clips.emitted",
		metric.WithDescription("Clips finalized by the segmenter."),
	); err != nil {
		return nil, err
	}
	if met.ClipsDropped, err = m.Int64Counter("emorec.clips.dropped",
		metric.WithDescription("Clips that did not update the emotion aggregate."),
	); err != nil {
		return nil, err
	}
	if met.InferenceDuration, err = m.Float64Histogram("emorec.inference.duration",
		metric.WithDescription("Latency of the emotion inference call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ClipDuration, err = m.Float64Histogram("emorec.clip.duration",
		metric.WithDescription("Audio length of emitted clips."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("emorec.sessions.active",
		metric.WithDescription("Recording sessions in progress."),
	); err != nil {
		return nil, err
	}
	if met.InFlight, err = m.Int64UpDownCounter("emorec.inference.in_flight",
		metric.WithDescription("Inference calls awaiting a response."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Noop returns metrics that record nothing.
func Noop() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		// the noop provider never fails
		panic(err)
	}
	return m
}

// RecordDrop counts one dropped clip.
func (m *Metrics) RecordDrop(ctx context.Context, reason string) {
	m.ClipsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordInference records the latency and outcome of one inference call.
func (m *Metrics) RecordInference(ctx context.Context, seconds float64, status string) {
	m.InferenceDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("status", status)))
}
