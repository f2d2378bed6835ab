// Package telemetry builds the OpenTelemetry meter provider used by the
// binary.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Exporters accepted by NewMeterProvider.
var Exporters = []string{"none", "stdout", "otlp"}

// NewMeterProvider returns a provider exporting through the named exporter.
// "stdout" writes JSON to w, "otlp" uses the standard OTEL_EXPORTER_OTLP_*
// environment, and "none" (or "") records nothing. Callers must Shutdown the
// provider to flush the last interval.
func NewMeterProvider(ctx context.Context, name string, w io.Writer) (*sdkmetric.MeterProvider, error) {
	switch name {
	case "none", "":
		return sdkmetric.NewMeterProvider(), nil

	case "stdout":
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
		}
		return sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp))), nil

	case "otlp":
		endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		if endpoint == "" {
			endpoint = os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
		}
		if endpoint == "" {
			return nil, fmt.Errorf("OTLP metrics endpoint not configured: set OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
		}
		exp, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		return sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp))), nil

	default:
		return nil, fmt.Errorf("unknown metrics exporter: %q", name)
	}
}
