// Package audit records gate decisions off the request path.
//
// The gate hands each decision to a Recorder. Dispatcher is the Recorder
// used in production: it queues events on a bounded channel and a single
// goroutine forwards them to a Sink, so a slow or failing sink never delays
// a request. Events that do not fit in the queue are dropped and counted.
package audit

import (
	"context"
	"strconv"
	"time"
)

// Decision outcomes.
const (
	OutcomeVerified    = "verified"
	OutcomeRejected    = "rejected"
	OutcomePassthrough = "passthrough"
)

// Event is one gate decision. It never carries the bearer token.
type Event struct {
	Time      time.Time
	RequestID string
	Method    string
	Path      string
	Remote    string
	Surface   string
	Outcome   string
	// Reason is empty unless Outcome is OutcomeRejected.
	Reason   string
	ClientID *int64
}

// Fields flattens e into string values suitable for a stream entry.
func (e Event) Fields() map[string]any {
	f := map[string]any{
		"time":       e.Time.UTC().Format(time.RFC3339Nano),
		"request_id": e.RequestID,
		"method":     e.Method,
		"path":       e.Path,
		"remote":     e.Remote,
		"surface":    e.Surface,
		"outcome":    e.Outcome,
	}
	if e.Reason != "" {
		f["reason"] = e.Reason
	}
	if e.ClientID != nil {
		f["client_id"] = strconv.FormatInt(*e.ClientID, 10)
	}
	return f
}

// Recorder accepts decisions from the gate. Record must not block.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// Sink persists events. It is only ever called from one goroutine.
type Sink interface {
	Emit(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Emit(ctx context.Context, e Event) error { return f(ctx, e) }
