package notifications

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"podshare/internal/middleware"
	"podshare/internal/observability"
)

// ErrPermanent marks a delivery failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent delivery failure")

// DispatcherConfig sizes the worker pool.
type DispatcherConfig struct {
	Workers      int
	QueueSize    int
	MaxRetries   int
	RetryBackoff time.Duration
	// DeliveryTimeout bounds one attempt against one sink.
	DeliveryTimeout time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 200 * time.Millisecond
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 10 * time.Second
	}
	return c
}

type envelope struct {
	ctx   context.Context
	event Event
}

// Dispatcher is a Publisher that fans events out to sinks from a bounded
// queue. A full queue drops the event.
type Dispatcher struct {
	cfg   DispatcherConfig
	sinks []Sink
	queue chan envelope

	mu      sync.RWMutex
	closed  bool
	started bool
	quit    chan struct{}
	wg      sync.WaitGroup
}

// NewDispatcher returns a stopped dispatcher. Call Start to run workers.
func NewDispatcher(cfg DispatcherConfig, sinks ...Sink) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		cfg:   cfg,
		sinks: sinks,
		queue: make(chan envelope, cfg.QueueSize),
		quit:  make(chan struct{}),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Publish enqueues e without blocking.
func (d *Dispatcher) Publish(ctx context.Context, e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ctx, e, "stopped")
		return
	}
	select {
	case d.queue <- envelope{ctx: context.WithoutCancel(ctx), event: e}:
		observability.NotificationQueueDepth.Set(float64(len(d.queue)))
	default:
		d.drop(ctx, e, "queue_full")
	}
}

func (d *Dispatcher) drop(ctx context.Context, e Event, reason string) {
	observability.NotificationsDropped.WithLabelValues(reason).Inc()
	middleware.Logger.WarnContext(ctx, "notification dropped",
		slog.String("reason", reason),
		slog.String("event_id", e.ID),
		slog.String("event_type", string(e.Type)),
	)
}

// Stop refuses new events, lets workers drain the queue and waits for them
// until ctx is done.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	if !d.started {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// abandon retries so workers exit promptly
		close(d.quit)
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for env := range d.queue {
		observability.NotificationQueueDepth.Set(float64(len(d.queue)))
		for _, sink := range d.sinks {
			d.deliver(env.ctx, sink, env.event)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sink Sink, e Event) {
	log := middleware.Logger.With(
		slog.String("sink", sink.Name()),
		slog.String("event_id", e.ID),
		slog.String("event_type", string(e.Type)),
	)

	for attempt := 0; ; attempt++ {
		err := d.attempt(ctx, sink, e)
		if err == nil {
			observability.NotificationDeliveries.WithLabelValues(sink.Name(), "ok").Inc()
			return
		}
		if errors.Is(err, ErrPermanent) || attempt >= d.cfg.MaxRetries {
			observability.NotificationDeliveries.WithLabelValues(sink.Name(), "failed").Inc()
			log.ErrorContext(ctx, "notification delivery failed",
				slog.Int("attempts", attempt+1),
				slog.String("error", err.Error()),
			)
			return
		}

		observability.NotificationDeliveries.WithLabelValues(sink.Name(), "retry").Inc()
		select {
		case <-time.After(d.cfg.RetryBackoff * time.Duration(attempt+1)):
		case <-d.quit:
			log.WarnContext(ctx, "notification retry abandoned on shutdown", slog.String("error", err.Error()))
			return
		}
	}
}

func (d *Dispatcher) attempt(ctx context.Context, sink Sink, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			middleware.Logger.ErrorContext(ctx, "panic in notification sink",
				slog.String("sink", sink.Name()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = errors.Join(ErrPermanent, errors.New("sink panicked"))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.cfg.DeliveryTimeout)
	defer cancel()
	return sink.Deliver(ctx, e)
}
