package gate

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/ggoodman/mcp-gate/audit"
)

// Option configures a Gate.
type Option func(*config)

type config struct {
	classify Classifier
	logger   *slog.Logger
	meter    metric.Meter
	recorder audit.Recorder
	redact   bool
}

// WithClassifier replaces the default Classify.
func WithClassifier(c Classifier) Option {
	return func(cfg *config) { cfg.classify = c }
}

// WithLogger sets the logger. Defaults to discarding output.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

// WithMeter records gate.requests and gate.verify.duration_ms on m.
func WithMeter(m metric.Meter) Option {
	return func(cfg *config) { cfg.meter = m }
}

// WithAuditor hands every decision to r. Record is called on the request
// goroutine and must not block.
func WithAuditor(r audit.Recorder) Option {
	return func(cfg *config) { cfg.recorder = r }
}

// WithRedactedInternalErrors answers internal failures with "Unexpected
// error" instead of including the underlying detail.
func WithRedactedInternalErrors() Option {
	return func(cfg *config) { cfg.redact = true }
}
