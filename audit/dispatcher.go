package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var _ Recorder = (*Dispatcher)(nil)

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithBufferSize sets the queue capacity. Defaults to 1024.
func WithBufferSize(n int) DispatcherOption {
	return func(d *Dispatcher) { d.size = n }
}

// WithEmitTimeout bounds each call to the sink. Defaults to 2s.
func WithEmitTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.emitTimeout = t }
}

// WithLogger sets the logger for sink failures.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = l }
}

// Dispatcher forwards events to a Sink from a single background goroutine.
type Dispatcher struct {
	sink        Sink
	log         *slog.Logger
	size        int
	emitTimeout time.Duration

	// mu orders sends in Record against Close so nothing is enqueued after
	// the worker has drained.
	mu      sync.RWMutex
	closed  bool
	ch      chan Event
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewDispatcher starts a Dispatcher writing to sink.
func NewDispatcher(sink Sink, opts ...DispatcherOption) (*Dispatcher, error) {
	if sink == nil {
		return nil, errors.New("audit sink is required")
	}
	d := &Dispatcher{
		sink:        sink,
		log:         slog.New(slog.DiscardHandler),
		size:        1024,
		emitTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.size <= 0 {
		d.size = 1
	}
	d.ch = make(chan Event, d.size)
	d.done = make(chan struct{})

	d.wg.Add(1)
	go d.run()
	return d, nil
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case e := <-d.ch:
			d.emit(e)
		case <-d.done:
			for {
				select {
				case e := <-d.ch:
					d.emit(e)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) emit(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.emitTimeout)
	defer cancel()
	if err := d.sink.Emit(ctx, e); err != nil {
		d.failed.Add(1)
		d.log.Warn("audit.emit.fail", slog.String("err", err.Error()), slog.String("request_id", e.RequestID))
	}
}

// Record enqueues e without blocking. Events arriving while the queue is
// full or after Close are dropped and counted.
func (d *Dispatcher) Record(_ context.Context, e Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return
	}
	select {
	case d.ch <- e:
	default:
		d.dropped.Add(1)
	}
}

// Close stops accepting events and drains the queue into the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.wg.Wait()
		return
	}
	d.closed = true
	close(d.done)
	d.mu.Unlock()
	d.wg.Wait()
}

// Dropped returns how many events were discarded, either because the queue
// was full or because the dispatcher was closed.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Failed returns how many events the sink refused.
func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
