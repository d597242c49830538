package mirror

import (
	"context"
	"errors"
	"time"

	"plantain-trace/internal/core/logger"

	"go.uber.org/zap"
)

// job is one pending mirror call plus the callback invoked on success.
type job struct {
	event   *EventEntry
	order   *OrderEntry
	onDone  func(Record)
	attempt int
}

// Dispatcher queues mirror calls behind the local commit. Local state is
// authoritative; the dispatcher retries failed calls with backoff and drops
// them once the retry budget is exhausted. A full queue also drops, since
// mirroring is purely additive metadata.
type Dispatcher struct {
	mirror     Mirror
	queue      chan job
	maxRetries int
	timeout    time.Duration
	baseDelay  time.Duration
	done       chan struct{}
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// QueueSize bounds the pending job queue.
	QueueSize int
	// MaxRetries is how many times a failed call is re-attempted.
	MaxRetries int
	// Timeout is the per-call deadline.
	Timeout time.Duration
	// BaseDelay is the initial retry delay; it doubles per attempt.
	BaseDelay time.Duration
}

// NewDispatcher creates a Dispatcher. Call Start to launch the worker.
func NewDispatcher(m Mirror, opts DispatcherOptions) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}

	return &Dispatcher{
		mirror:     m,
		queue:      make(chan job, opts.QueueSize),
		maxRetries: opts.MaxRetries,
		timeout:    opts.Timeout,
		baseDelay:  opts.BaseDelay,
		done:       make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (d *Dispatcher) Start() {
	go d.run()
}

// Close stops accepting jobs and waits for the worker to drain.
func (d *Dispatcher) Close() {
	close(d.queue)
	<-d.done
}

// EnqueueEvent schedules a trace event for mirroring. onDone is invoked
// from the worker goroutine once the mirror acknowledges the entry.
func (d *Dispatcher) EnqueueEvent(entry EventEntry, onDone func(Record)) {
	d.enqueue(job{event: &entry, onDone: onDone})
}

// EnqueueOrderTransition schedules an order transition for mirroring.
func (d *Dispatcher) EnqueueOrderTransition(entry OrderEntry, onDone func(Record)) {
	d.enqueue(job{order: &entry, onDone: onDone})
}

func (d *Dispatcher) enqueue(j job) {
	select {
	case d.queue <- j:
	default:
		logger.Get().Warn("Mirror queue full, dropping entry")
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for j := range d.queue {
		d.process(j)
	}
}

func (d *Dispatcher) process(j job) {
	for {
		rec, err := d.call(j)
		if err == nil {
			if j.onDone != nil && rec != nil {
				j.onDone(*rec)
			}
			return
		}

		if errors.Is(err, ErrDisabled) {
			return
		}

		j.attempt++
		if j.attempt > d.maxRetries {
			logger.Get().Warn("Mirror entry dropped after retries",
				zap.Int("attempts", j.attempt),
				zap.Error(err),
			)
			return
		}

		delay := d.baseDelay << (j.attempt - 1)
		logger.Get().Debug("Mirror call failed, retrying",
			zap.Int("attempt", j.attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
	}
}

func (d *Dispatcher) call(j job) (*Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if j.event != nil {
		return d.mirror.MirrorEvent(ctx, *j.event)
	}
	return d.mirror.MirrorOrderTransition(ctx, *j.order)
}
