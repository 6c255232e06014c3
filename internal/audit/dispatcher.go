package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config sizes the dispatcher buffer.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events instead of blocking Emit on a full buffer.
	DropIfFull bool
	// OnDrop, when set, sees every discarded event.
	OnDrop func(Event)
}

// Dispatcher hands events to a sink on one background goroutine. A nil
// *Dispatcher discards everything.
type Dispatcher struct {
	cfg     Config
	sink    Sink
	events  chan Event
	stopped chan struct{}
	dropped atomic.Uint64

	// mu orders sends against close(events).
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:     cfg,
		sink:    sink,
		events:  make(chan Event, max(cfg.BufferSize, 1)),
		stopped: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.stopped)
	for ev := range d.events {
		d.sink.Emit(context.Background(), ev)
	}
}

// Emit queues ev. It blocks on a full buffer until ctx ends unless
// DropIfFull is set. After Close it does nothing.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.events <- ev:
		default:
			d.dropped.Add(1)
			if d.cfg.OnDrop != nil {
				d.cfg.OnDrop(ev)
			}
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.events <- ev:
	case <-ctx.Done():
	}
}

// Close stops intake and returns once every queued event reached the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()
	<-d.stopped
}

// Dropped counts events discarded on a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
