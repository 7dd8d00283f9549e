// Package worker drains the update queue into the reconciliation store.
// A single worker is the only writer of the view, which keeps updates in
// arrival order.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/reconcile"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

// Source defines how the worker receives updates.
type Source interface {
	Dequeue(ctx context.Context) <-chan model.Update
}

// Worker applies queued updates.
type Worker interface {
	// Run applies updates until ctx is canceled, Shutdown is called or the
	// source channel is closed.
	Run(ctx context.Context)

	// Shutdown waits for Run to drain a closed source. If ctx expires
	// first the loop is stopped without draining.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker on top of a reconcile.Applier.
type InMemoryWorker struct {
	source Source
	store  reconcile.Applier
	name   string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

var _ Worker = (*InMemoryWorker)(nil)

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(source Source, store reconcile.Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		source:   source,
		store:    store,
		name:     "applier",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	updates := w.source.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			if err := w.apply(ctx, u); err != nil {
				metrics.RecordApplierFailure()
				metrics.RecordErrorByComponent("applier", u.Kind.String())
				w.logger.Error(ctx, "error applying update", logger.String("kind", u.Kind.String()), logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.shutdownOnce.Do(func() { close(w.shutdown) })
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) apply(ctx context.Context, u model.Update) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordApplierLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	switch u.Kind {
	case model.UpdateRecognition:
		return w.store.ApplyRecognition(ctx, u.Recognition)
	case model.UpdateSnapshot:
		return w.store.ApplyLogSnapshot(ctx, u.Snapshot)
	case model.UpdatePush:
		return w.store.ApplyLogPush(ctx, u.Push)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownUpdate, u.Kind)
	}
}
