package gate

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type gateMetrics struct {
	requests  metric.Int64Counter
	verifyDur metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*gateMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("mcp-gate")
	}
	requests, err := meter.Int64Counter(
		"gate.requests",
		metric.WithDescription("Requests seen by the gate, by surface and outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	verifyDur, err := meter.Float64Histogram(
		"gate.verify.duration_ms",
		metric.WithDescription("Token verification duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &gateMetrics{requests: requests, verifyDur: verifyDur}, nil
}

func noopMetrics() *gateMetrics {
	m, _ := newMetrics(nil)
	return m
}

func (m *gateMetrics) recordRequest(ctx context.Context, surface Surface, outcome, reason string) {
	attrs := []attribute.KeyValue{
		attribute.String("surface", surface.String()),
		attribute.String("outcome", outcome),
	}
	if reason != "" {
		attrs = append(attrs, attribute.String("reason", reason))
	}
	m.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *gateMetrics) recordVerify(ctx context.Context, d time.Duration, outcome string) {
	m.verifyDur.Record(ctx, float64(d.Microseconds())/1000, metric.WithAttributes(attribute.String("outcome", outcome)))
}
