package models

import (
	"context"
	"sync"
)

// Result pairs a value with the error that produced it.
type Result[T any] struct {
	Value T
	Err   error
}

// Future is a handle to work executing on the scheduler. The worker
// resolves it exactly once; consumers poll it from their own loop, which
// keeps terminal-status observation on the control path.
type Future[T any] struct {
	mu       sync.Mutex
	resolved bool
	value    T
	done     chan struct{}
	cancel   context.CancelFunc
}

// NewFuture creates an unresolved future. cancel aborts the underlying
// work context when Stop is called.
func NewFuture[T any](cancel context.CancelFunc) *Future[T] {
	return &Future[T]{
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// Resolve sets the final value. Resolving twice is a no-op.
func (f *Future[T]) Resolve(value T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolved {
		return
	}
	f.value = value
	f.resolved = true
	close(f.done)
}

// Poll returns the value and true once the future is resolved.
func (f *Future[T]) Poll() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.resolved
}

func (f *Future[T]) IsResolved() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolved
}

// Stop requests cooperative cancellation of the underlying work. The
// future still resolves when the worker observes the cancellation.
func (f *Future[T]) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
}

// Wait blocks until the future resolves or ctx expires.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		value, _ := f.Poll()
		return value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
