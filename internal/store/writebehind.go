// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// WriteBehindQueueConfig configures the bounded worker pool that drains
// durable writes off the socket-affine hot path.
type WriteBehindQueueConfig struct {
	// Workers is the number of goroutines draining the queue.
	Workers int

	// QueueSize bounds how many pending jobs may wait before Enqueue
	// blocks the caller.
	QueueSize int

	// RetryDelay is the backoff between attempts for a failing job.
	RetryDelay time.Duration

	// MaxRetries is how many attempts a job gets before it is logged and
	// dropped. Durable writeback is best-effort: the hot store (or the
	// in-memory broadcast) remains the source of truth for anything a
	// socket needs immediately.
	MaxRetries int
}

// DefaultWriteBehindQueueConfig returns production defaults.
func DefaultWriteBehindQueueConfig() WriteBehindQueueConfig {
	return WriteBehindQueueConfig{
		Workers:    4,
		QueueSize:  1024,
		RetryDelay: time.Second,
		MaxRetries: 5,
	}
}

// Job is a single unit of durable write work: persist a chat message,
// record a vote, write an analytics row. It must be idempotent enough to
// tolerate at-least-once execution under retry.
type Job struct {
	// Label identifies the job kind for logging (e.g. "chat.Add").
	Label string

	// Run performs the write. A returned error triggers a retry up to
	// MaxRetries.
	Run func(ctx context.Context) error
}

// WriteBehindQueue is a bounded worker pool for durable writes that must
// not block the socket read/write pumps, the Q&A/poll state machines, or
// snapshot computation on a database round trip. Adapted from a
// poll-retry-backoff outbox forwarder to a push-based in-process queue:
// this domain's durable writes are generated directly by Go calls, not
// routed through a message broker, so there is no outbox table to poll.
type WriteBehindQueue struct {
	cfg    WriteBehindQueueConfig
	logger zerolog.Logger
	jobs   chan Job

	wg      sync.WaitGroup
	stopCh  chan struct{}
	running bool
	mu      sync.Mutex
}

// NewWriteBehindQueue constructs a queue. Start must be called before jobs
// are drained.
func NewWriteBehindQueue(cfg WriteBehindQueueConfig, logger zerolog.Logger) *WriteBehindQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	return &WriteBehindQueue{
		cfg:    cfg,
		logger: logger.With().Str("component", "writebehind").Logger(),
		jobs:   make(chan Job, cfg.QueueSize),
		stopCh: make(chan struct{}),
	}
}

// Start launches the worker goroutines. Safe to call once; subsequent
// calls are no-ops.
func (q *WriteBehindQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.running = true

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	q.logger.Info().Int("workers", q.cfg.Workers).Msg("write-behind queue started")
}

// Stop signals workers to drain in-flight jobs and stop accepting new ones,
// then waits for them to exit.
func (q *WriteBehindQueue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.mu.Unlock()

	close(q.stopCh)
	q.wg.Wait()
	q.logger.Info().Msg("write-behind queue stopped")
}

// Enqueue submits a job for asynchronous durable execution. It blocks if
// the queue is full, applying natural backpressure to the caller, and
// returns an error if ctx is cancelled while waiting for room.
func (q *WriteBehindQueue) Enqueue(ctx context.Context, job Job) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *WriteBehindQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopCh:
			q.drainRemaining(ctx)
			return
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.runWithRetry(ctx, job)
		}
	}
}

// drainRemaining runs any jobs still queued at shutdown time without
// blocking on new arrivals, so a Stop doesn't silently drop recent writes.
func (q *WriteBehindQueue) drainRemaining(ctx context.Context) {
	for {
		select {
		case job := <-q.jobs:
			q.runWithRetry(ctx, job)
		default:
			return
		}
	}
}

func (q *WriteBehindQueue) runWithRetry(ctx context.Context, job Job) {
	var lastErr error
	for attempt := 0; attempt <= q.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(q.cfg.RetryDelay):
			case <-ctx.Done():
				return
			}
		}

		if err := job.Run(ctx); err != nil {
			lastErr = err
			q.logger.Warn().Err(err).Str("job", job.Label).Int("attempt", attempt).Msg("write-behind job failed")
			continue
		}
		return
	}

	q.logger.Error().Err(lastErr).Str("job", job.Label).
		Msg(fmt.Sprintf("write-behind job exhausted %d retries, dropping", q.cfg.MaxRetries))
}
