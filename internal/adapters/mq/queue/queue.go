// Package queue funnels every mutation of the recognition view through one
// bounded in-memory queue so that a single applier applies them in order.
package queue

import (
	"context"
	"sync"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/reconcile"
	"github.com/okian/rollcall/pkg/metrics"
)

const defaultQueueCapacity = 256

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an update. It returns an error wrapping ErrFull,
	// ErrClosed or the context error when the update was dropped.
	Enqueue(ctx context.Context, u model.Update) error

	// Dequeue returns the channel updates are delivered on, in enqueue
	// order. It is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan model.Update

	Len(ctx context.Context) int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel. It also
// implements reconcile.Applier so producers can treat it as the store.
type InMemoryQueue struct {
	updates  chan model.Update
	capacity int

	mu     sync.RWMutex
	closed bool
}

var (
	_ Queue             = (*InMemoryQueue)(nil)
	_ reconcile.Applier = (*InMemoryQueue)(nil)
)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.updates = make(chan model.Update, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds an update without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, u model.Update) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return q.drop("closed", ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return q.drop("context_cancelled", err)
	}

	select {
	case q.updates <- u:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.updates))
		return nil
	default:
		return q.drop("full", ErrFull)
	}
}

func (q *InMemoryQueue) drop(reason string, err error) error {
	metrics.RecordQueueDrop(reason)
	metrics.RecordErrorByComponent("queue", reason)
	return err
}

// Dequeue returns the update channel.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan model.Update {
	return q.updates
}

// Len returns the number of pending updates.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.updates)
	metrics.UpdateQueueSize(size)
	return size
}

// Close stops accepting updates. Pending updates stay readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.updates)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// ApplyRecognition enqueues a recognition result.
func (q *InMemoryQueue) ApplyRecognition(ctx context.Context, result model.RecognitionResult) error {
	return q.Enqueue(ctx, model.RecognitionUpdate(result))
}

// ApplyLogSnapshot enqueues a polled log window.
func (q *InMemoryQueue) ApplyLogSnapshot(ctx context.Context, events []model.LogEvent) error {
	return q.Enqueue(ctx, model.SnapshotUpdate(events))
}

// ApplyLogPush enqueues a pushed log event.
func (q *InMemoryQueue) ApplyLogPush(ctx context.Context, event model.LogEvent) error {
	return q.Enqueue(ctx, model.PushUpdate(event))
}
