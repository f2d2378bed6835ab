package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestNewMeterProvider_StdoutFlushesOnShutdown(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	mp, err := NewMeterProvider(ctx, "stdout", &buf)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	c, err := mp.Meter("test").Int64Counter("gate.requests")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	c.Add(ctx, 1)

	if err := mp.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "gate.requests") {
		t.Fatalf("exported output missing metric: %s", buf.String())
	}
}

func TestNewMeterProvider_None(t *testing.T) {
	for _, name := range []string{"", "none"} {
		mp, err := NewMeterProvider(context.Background(), name, nil)
		if err != nil {
			t.Fatalf("%q: %v", name, err)
		}
		if err := mp.Shutdown(context.Background()); err != nil {
			t.Fatalf("%q shutdown: %v", name, err)
		}
	}
}

func TestNewMeterProvider_Errors(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")

	if _, err := NewMeterProvider(context.Background(), "otlp", nil); err == nil || !strings.Contains(err.Error(), "endpoint not configured") {
		t.Fatalf("otlp without endpoint: err = %v", err)
	}
	if _, err := NewMeterProvider(context.Background(), "carrier-pigeon", nil); err == nil {
		t.Fatalf("expected error for unknown exporter")
	}
}
