// Package corrections delivers category corrections to the ML service as
// one-way notifications. Delivery never blocks or fails the caller.
package corrections

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fintrack/internal/logger"
	"fintrack/internal/mlclient"
)

// Sink delivers a single correction.
type Sink interface {
	Send(ctx context.Context, c mlclient.Correction) error
}

// Options configures a Dispatcher.
type Options struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

// Stats counts dispatcher outcomes since start.
type Stats struct {
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
}

// Dispatcher is a bounded queue drained by a fixed pool of workers.
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
	queue   chan mlclient.Correction

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// NewDispatcher starts the workers and returns a ready dispatcher.
func NewDispatcher(sink Sink, opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	d := &Dispatcher{
		sink:    sink,
		timeout: opts.Timeout,
		queue:   make(chan mlclient.Correction, opts.QueueSize),
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Submit enqueues c and returns immediately. It reports false when the
// correction was dropped because the queue is full or the dispatcher closed.
func (d *Dispatcher) Submit(c mlclient.Correction) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		logger.Get().Warnw("Correction dropped, dispatcher closed", "user_id", c.UserID)
		return false
	}

	select {
	case d.queue <- c:
		return true
	default:
		d.dropped.Add(1)
		logger.Get().Warnw("Correction dropped, queue full",
			"user_id", c.UserID,
			"original", c.OriginalCategoryName,
			"corrected", c.CorrectedCategoryName,
		)
		return false
	}
}

// Close stops accepting corrections and waits for queued ones to be sent,
// or for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
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
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Sent:    d.sent.Load(),
		Failed:  d.failed.Load(),
		Dropped: d.dropped.Load(),
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	log := logger.Named("corrections")

	for c := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.sink.Send(ctx, c)
		cancel()

		if err != nil {
			d.failed.Add(1)
			log.Warnw("Failed to submit correction",
				"user_id", c.UserID,
				"original", c.OriginalCategoryName,
				"corrected", c.CorrectedCategoryName,
				"error", err,
			)
			continue
		}
		d.sent.Add(1)
		log.Debugw("Correction submitted",
			"user_id", c.UserID,
			"original", c.OriginalCategoryName,
			"corrected", c.CorrectedCategoryName,
		)
	}
}
