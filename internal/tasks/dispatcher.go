package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

var (
	// ErrClosed is returned by Enqueue after Shutdown.
	ErrClosed = errors.New("tasks: dispatcher closed")
	// ErrQueueFull is returned when the queue has no room and the caller's
	// context ends first.
	ErrQueueFull = errors.New("tasks: queue full")
)

// Job is one unit of background work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Config sizes the pool and its retry policy.
type Config struct {
	Workers    int
	QueueSize  int
	MaxRetries uint64
	RetryDelay time.Duration
}

func (c *Config) normalize() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Minute
	}
}

// Dispatcher owns the worker goroutines.
type Dispatcher struct {
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics

	mu     sync.RWMutex
	closed bool
	queue  chan Job

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for job failures.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records job outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher starts cfg.Workers workers.
func NewDispatcher(cfg Config, opts ...Option) *Dispatcher {
	cfg.normalize()
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:     cfg,
		logger:  slog.Default(),
		queue:   make(chan Job, cfg.QueueSize),
		baseCtx: ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue accepts job for background execution. It blocks only while the
// queue is full, and gives up with ErrQueueFull when ctx ends.
func (d *Dispatcher) Enqueue(ctx context.Context, job Job) error {
	if job.Run == nil {
		return fmt.Errorf("tasks: job %q has no Run func", job.Name)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- job:
		return nil
	default:
	}
	select {
	case d.queue <- job:
		return nil
	case <-ctx.Done():
		d.metrics.observe(job.Name, outcomeDropped)
		return fmt.Errorf("%w: %w", ErrQueueFull, ctx.Err())
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.queue {
		d.execute(job)
	}
}

func (d *Dispatcher) execute(job Job) {
	backoff := retry.WithMaxRetries(d.cfg.MaxRetries, retry.NewConstant(d.cfg.RetryDelay))

	attempt := 0
	err := retry.Do(d.baseCtx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			d.metrics.observe(job.Name, outcomeRetry)
		}
		if err := job.Run(ctx); err != nil {
			d.logger.WarnContext(ctx, "background job attempt failed",
				"job", job.Name, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		d.metrics.observe(job.Name, outcomeFailed)
		d.logger.Error("background job gave up", "job", job.Name, "attempts", attempt, "error", err)
		return
	}
	d.metrics.observe(job.Name, outcomeSuccess)
}

// Shutdown stops accepting jobs and waits for queued ones to finish. When
// ctx ends first, pending retry waits are abandoned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
