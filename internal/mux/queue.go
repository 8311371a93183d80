// Package mux provides the bounded fan-in queue between stream workers
// and the single session consumer.
//
// Back-pressure is handled by shedding: a full queue drops new points and
// counts them rather than blocking a producer, because workers must stay
// responsive to cancellation and cadence timing. The consumer reads with
// a timeout so it can interleave termination checks; a timed-out read is
// distinct from end-of-stream.
package mux

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrTimeout indicates no item arrived within the read timeout. The
	// queue is still live.
	ErrTimeout = errors.New("queue read timed out")

	// ErrClosed indicates the queue was closed and fully consumed.
	ErrClosed = errors.New("queue closed")
)

// Stats is a snapshot of queue activity.
type Stats struct {
	Depth     int
	Capacity  int
	Published int64
	Dropped   int64
	Delivered int64
}

// Queue is a bounded multi-producer single-consumer queue.
type Queue[T any] struct {
	ch     chan T
	logger *slog.Logger

	mu        sync.Mutex
	closed    bool
	published int64
	dropped   int64
	delivered int64
}

// New creates a queue with the given capacity.
func New[T any](capacity int, logger *slog.Logger) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue[T]{
		ch:     make(chan T, capacity),
		logger: logger,
	}
}

// Publish enqueues item without blocking. Returns false when the item was
// shed (queue full) or the queue is closed.
func (q *Queue[T]) Publish(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	select {
	case q.ch <- item:
		q.published++
		return true
	default:
		q.dropped++
		if q.dropped%100 == 1 {
			q.logger.Warn("stream queue full, dropping data", "dropped", q.dropped)
		}
		return false
	}
}

// Next returns the next queued item, waiting at most timeout. ErrTimeout
// means the queue is empty but live; ErrClosed terminates the read loop.
func (q *Queue[T]) Next(timeout time.Duration) (T, error) {
	var zero T

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case item, ok := <-q.ch:
		if !ok {
			return zero, ErrClosed
		}
		q.mu.Lock()
		q.delivered++
		q.mu.Unlock()
		return item, nil
	case <-timer.C:
		return zero, ErrTimeout
	}
}

// Close marks the queue closed and discards anything still buffered. The
// consumer's next read returns ErrClosed. Safe to call more than once.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)

	// Drain leftovers so the consumer observes ErrClosed promptly instead
	// of stale points from an ended session.
	for range q.ch {
	}
}

// Stats returns a snapshot of queue activity.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Depth:     len(q.ch),
		Capacity:  cap(q.ch),
		Published: q.published,
		Dropped:   q.dropped,
		Delivered: q.delivered,
	}
}
