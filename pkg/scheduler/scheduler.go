// Package scheduler runs units of work on a small worker pool and hands
// back futures. Blocking work (network, filesystem, subprocesses) runs
// here so the control path stays responsive.
package scheduler

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/openrail/provision-agent/internal/models"
)

// WorkFn is one unit of background work. It must honour ctx cancellation
// at its safe checkpoints and return promptly once ctx is done.
type WorkFn func(ctx context.Context) (any, error)

type workItem struct {
	ctx    context.Context
	fn     WorkFn
	future *models.Future[models.Result[any]]
}

type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	queue  chan *workItem
	done   chan struct{}

	// mu and sending order queue sends against Close so no send can
	// hit the closed channel.
	mu      sync.Mutex
	closed  bool
	sending sync.WaitGroup
}

// NewScheduler starts numWorkers workers. A single worker is enough for
// the provisioning session, which never runs two tasks concurrently.
func NewScheduler(numWorkers int) *Scheduler {
	if numWorkers < 1 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		queue:  make(chan *workItem, 16),
		done:   make(chan struct{}),
	}
	running := make(chan struct{}, numWorkers)
	go func() {
		defer close(s.done)
		for item := range s.queue {
			running <- struct{}{}
			go func(item *workItem) {
				defer func() { <-running }()
				s.run(item)
			}(item)
		}
		// Drain in-flight work before reporting closed.
		for i := 0; i < numWorkers; i++ {
			running <- struct{}{}
		}
	}()
	return s
}

// AddWork queues fn and returns a future the caller polls for the
// outcome. Stopping the future cancels fn's context.
func (s *Scheduler) AddWork(fn WorkFn) *models.Future[models.Result[any]] {
	workCtx, cancel := context.WithCancel(s.ctx)
	future := models.NewFuture[models.Result[any]](cancel)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		future.Resolve(models.Result[any]{Err: s.ctx.Err()})
		return future
	}
	s.sending.Add(1)
	s.mu.Unlock()
	defer s.sending.Done()

	s.queue <- &workItem{ctx: workCtx, fn: fn, future: future}
	return future
}

func (s *Scheduler) run(item *workItem) {
	// fn always runs, even with a cancelled context, so submitters that
	// track state inside fn observe every outcome.
	value, err := item.fn(item.ctx)
	if err != nil {
		zap.S().Debugw("work finished with error", "error", err)
	}
	item.future.Resolve(models.Result[any]{Value: value, Err: err})
}

// Close cancels all running work and waits for the workers to drain.
// Closing twice is a no-op.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	// Cancel before waiting so senders blocked on a full queue drain
	// as the workers wind down.
	s.cancel()
	s.sending.Wait()
	close(s.queue)
	<-s.done
}
