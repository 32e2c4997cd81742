package bus

import (
	"context"
	"sync/atomic"

	"tradecore/pkg/exception"
)

// Queue is a bounded, non-blocking queue with a single consumer.
// Items are handed to the consumer in publish order.
type Queue[T any] struct {
	ch      chan T
	closed  atomic.Bool
	dropped atomic.Uint64
}

// NewQueue allocates a queue with the given capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// TryPublish enqueues an item without blocking.
func (q *Queue[T]) TryPublish(item T) (err error) {
	if q.closed.Load() {
		return exception.ErrQueueClosed
	}
	// Close may win the race after the check above.
	defer func() {
		if recover() != nil {
			err = exception.ErrQueueClosed
		}
	}()
	select {
	case q.ch <- item:
		return nil
	default:
		q.dropped.Add(1)
		return exception.ErrQueueFull
	}
}

// Publish enqueues an item, waiting for room until ctx is done.
func (q *Queue[T]) Publish(ctx context.Context, item T) (err error) {
	if q.closed.Load() {
		return exception.ErrQueueClosed
	}
	defer func() {
		if recover() != nil {
			err = exception.ErrQueueClosed
		}
	}()
	select {
	case q.ch <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Dropped returns the number of items rejected because the queue was full.
func (q *Queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}

// Close stops the queue from accepting new items. Queued items are still consumed.
func (q *Queue[T]) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.ch)
	}
}

// Run consumes items until the context is done or the queue is closed and drained.
func (q *Queue[T]) Run(ctx context.Context, handler func(T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-q.ch:
			if !ok {
				return
			}
			handler(item)
		}
	}
}
