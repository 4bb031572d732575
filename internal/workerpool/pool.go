// Package workerpool runs tasks with bounded concurrency and fail-fast
// semantics: the first failing task cancels everything still pending.
package workerpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultCapacity is the number of tasks allowed to run at once.
const DefaultCapacity = 15

// Task is a unit of work. The context is cancelled when another task fails
// or the pool times out.
type Task func(ctx context.Context) error

// Pool is a fixed-capacity task runner. Submit queues without blocking;
// at most capacity tasks execute at the same time.
type Pool struct {
	name   string
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	sem    *semaphore.Weighted
	logger logging.Logger

	mu     sync.Mutex
	closed bool

	failOnce sync.Once
	failed   chan struct{}
	firstErr error
}

// New creates a pool bound to ctx.
func New(ctx context.Context, name string, capacity int, logger logging.Logger) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	return &Pool{
		name:   name,
		ctx:    gctx,
		cancel: cancel,
		group:  g,
		sem:    semaphore.NewWeighted(int64(capacity)),
		logger: logger.With("pool", name),
		failed: make(chan struct{}),
	}
}

// Submit schedules task. It fails with common.ErrPoolClosed once
// CloseAndWait has been called.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return common.ErrPoolClosed
	}

	p.group.Go(func() error {
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			return err
		}
		defer p.sem.Release(1)

		if err := p.run(task); err != nil {
			p.logger.Error(p.ctx, "task failed", "error", err)
			p.fail(err)
			return err
		}
		return nil
	})

	return nil
}

func (p *Pool) run(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(p.ctx)
}

// fail records the first task error and cancels every other task.
func (p *Pool) fail(err error) {
	p.failOnce.Do(func() {
		p.firstErr = err
		p.cancel()
		close(p.failed)
	})
}

func (p *Pool) taskFailed() error {
	return fmt.Errorf("%w: pool %s: %w", common.ErrTaskFailed, p.name, p.firstErr)
}

// CloseAndWait stops accepting tasks and waits for the submitted ones.
//
// It returns as soon as a task fails, with an error wrapping
// common.ErrTaskFailed and the first task error, without waiting for tasks
// still running; their context is cancelled. If the tasks do not finish
// within timeout it cancels them and returns common.ErrShutdownTimeout.
func (p *Pool) CloseAndWait(timeout time.Duration) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- p.group.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.failed:
		return p.taskFailed()
	case err := <-done:
		p.cancel()
		select {
		case <-p.failed:
			return p.taskFailed()
		default:
		}
		if err != nil {
			// Only the parent context can end the group without a task error.
			return fmt.Errorf("%w: pool %s: %w", common.ErrTaskFailed, p.name, err)
		}
		return nil
	case <-timer.C:
		p.cancel()
		p.logger.Error(p.ctx, "pool did not finish in time", "timeout", timeout)
		return fmt.Errorf("%w: pool %s after %s", common.ErrShutdownTimeout, p.name, timeout)
	}
}
