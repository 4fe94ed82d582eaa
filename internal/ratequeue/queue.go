// Package ratequeue serializes generation calls through one FIFO queue and
// enforces a minimum spacing between consecutive call starts.
package ratequeue

import (
	"context"
	"sync"
	"time"

	"github.com/ShayCichocki/quill/internal/logging"
)

// DefaultInterval is the minimum spacing used when none is configured.
const DefaultInterval = time.Second

// Work is one queued call. The context is the caller's.
type Work func(ctx context.Context) error

type item struct {
	ctx  context.Context
	work Work
	done chan error
}

// Stats describes queue activity.
type Stats struct {
	Calls    int64
	Skipped  int64
	Pending  int
	LastCall time.Time
	Interval time.Duration
}

// Queue is a rate-limited FIFO of calls. At most one drain goroutine runs at
// a time; a call never starts sooner than the interval after the previous start.
type Queue struct {
	mu       sync.Mutex
	items    []*item
	draining bool
	interval time.Duration
	lastCall time.Time
	calls    int64
	skipped  int64
	logger   *logging.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// New creates a queue with the given minimum spacing between call starts.
func New(interval time.Duration, logger *logging.Logger) *Queue {
	if interval < 0 {
		interval = 0
	}
	return &Queue{
		interval: interval,
		logger:   logger.With("ratequeue"),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// SetInterval changes the spacing used for subsequent calls.
func (q *Queue) SetInterval(d time.Duration) {
	if d < 0 {
		d = 0
	}
	q.mu.Lock()
	q.interval = d
	q.mu.Unlock()
}

// Enqueue appends work to the queue and blocks until it has run.
// The returned error is the work's own error, or ctx.Err() if the caller
// gave up before the call started. A running call is never interrupted by the queue.
func (q *Queue) Enqueue(ctx context.Context, work Work) error {
	it := &item{ctx: ctx, work: work, done: make(chan error, 1)}

	q.mu.Lock()
	q.items = append(q.items, it)
	if !q.draining {
		q.draining = true
		go q.drain()
	}
	q.mu.Unlock()

	select {
	case err := <-it.done:
		return err
	case <-ctx.Done():
		// The drain loop skips items whose context is already done.
		return ctx.Err()
	}
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		it := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		var wait time.Duration
		if !q.lastCall.IsZero() {
			wait = q.interval - q.now().Sub(q.lastCall)
		}
		q.mu.Unlock()

		if it.ctx.Err() != nil {
			q.skip(it)
			continue
		}

		if wait > 0 {
			q.sleep(it.ctx, wait)
			if it.ctx.Err() != nil {
				q.skip(it)
				continue
			}
		}

		q.mu.Lock()
		q.lastCall = q.now()
		q.calls++
		q.mu.Unlock()

		err := it.work(it.ctx)
		if err != nil {
			q.logger.Debugf("queued call failed: %v", err)
		}
		it.done <- err
	}
}

func (q *Queue) skip(it *item) {
	q.mu.Lock()
	q.skipped++
	q.mu.Unlock()
	it.done <- it.ctx.Err()
}

// Stats returns a snapshot of queue activity.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Calls:    q.calls,
		Skipped:  q.skipped,
		Pending:  len(q.items),
		LastCall: q.lastCall,
		Interval: q.interval,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
