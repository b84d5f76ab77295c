// Package queue provides the bounded in-memory job queue feeding the sweep
// workers.
package queue

import (
	"context"
	"sync"

	"github.com/okian/fedbench/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue[T any] interface {
	// Enqueue adds a job to the queue.
	// Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, job T) bool

	// Dequeue returns the channel jobs are delivered on.
	// The channel is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan T

	// Len returns the current number of queued jobs.
	Len() int

	// Close stops accepting jobs. Queued jobs are still delivered.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue[T any] struct {
	jobs     chan T
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue[T any](opts ...Option) *InMemoryQueue[T] {
	s := settings{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(&s)
	}
	metrics.UpdateSweepQueueSize(0)
	return &InMemoryQueue[T]{
		jobs:     make(chan T, s.capacity),
		capacity: s.capacity,
	}
}

// Capacity returns the maximum number of queued jobs.
func (q *InMemoryQueue[T]) Capacity() int { return q.capacity }

// Enqueue adds a job to the queue.
func (q *InMemoryQueue[T]) Enqueue(ctx context.Context, job T) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return false
	}

	select {
	case q.jobs <- job:
		metrics.UpdateSweepQueueSize(len(q.jobs))
		return true
	case <-ctx.Done():
		return false
	default:
		return false // queue is full
	}
}

// Dequeue returns the channel jobs are delivered on.
func (q *InMemoryQueue[T]) Dequeue(_ context.Context) <-chan T {
	return q.jobs
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue[T]) Len() int {
	size := len(q.jobs)
	metrics.UpdateSweepQueueSize(size)
	return size
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil // already closed
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue[T]) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
