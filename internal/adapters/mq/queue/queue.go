// Package queue buffers completed builds between intake and the scoring
// workers.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/cigame/internal/domain/model"
	"github.com/okian/cigame/pkg/metrics"
)

const defaultQueueCapacity = 10_000

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a build. It never blocks: a full queue returns ErrFull.
	Enqueue(ctx context.Context, b *model.Build) error

	// Dequeue returns a channel that receives builds until the queue is
	// closed and drained or ctx is done.
	Dequeue(ctx context.Context) <-chan *model.Build

	// Len returns the number of queued builds.
	Len() int

	// Close stops intake. Queued builds can still be dequeued.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	builds   chan *model.Build
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.builds = make(chan *model.Build, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)
	return q
}

// Enqueue adds a build to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, b *model.Build) error {
	start := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return fmt.Errorf("enqueue %s: %w", b.Key(), err)
	}

	select {
	case q.builds <- b:
		metrics.RecordQueueEnqueue()
		q.observe()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns a channel that will receive builds as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan *model.Build {
	out := make(chan *model.Build)
	go func() {
		defer close(out)
		for {
			select {
			case b, ok := <-q.builds:
				if !ok {
					return
				}
				select {
				case out <- b:
					metrics.RecordQueueDequeue()
					q.observe()
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued builds.
func (q *InMemoryQueue) Len() int {
	return len(q.builds)
}

// Close stops intake and lets consumers drain what is left.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.builds)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) observe() {
	size := len(q.builds)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
