// Package worker runs queued benchmark jobs on a fixed pool of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/okian/fedbench/pkg/logger"
	"github.com/okian/fedbench/pkg/metrics"
)

// Sentinel errors for worker pools.
var (
	// ErrShutdownTimeout is returned when workers do not finish before the
	// shutdown context is done.
	ErrShutdownTimeout = errors.New("worker shutdown timed out")
	// ErrJobPanicked wraps a value recovered from a panicking handler.
	ErrJobPanicked = errors.New("job panicked")
)

// Handler processes one job.
type Handler[T any] func(ctx context.Context, job T) error

// Queue defines how workers receive jobs.
type Queue[T any] interface {
	Dequeue(ctx context.Context) <-chan T
}

// Pool manages a fixed number of workers draining one queue.
type Pool[T any] struct {
	size   int
	queue  Queue[T]
	handle Handler[T]
	name   string

	shutdown chan struct{}
	once     sync.Once
	wg       sync.WaitGroup

	logger logger.Logger
}

// NewPool creates a pool of size workers. A size below one uses one worker
// per CPU.
func NewPool[T any](size int, q Queue[T], h Handler[T], opts ...Option) *Pool[T] {
	if size < 1 {
		size = runtime.NumCPU()
	}
	s := settings{name: "worker", logger: logger.Nop()}
	for _, opt := range opts {
		opt(&s)
	}
	return &Pool[T]{
		size:     size,
		queue:    q,
		handle:   h,
		name:     s.name,
		shutdown: make(chan struct{}),
		logger:   s.logger,
	}
}

// Size returns the number of workers.
func (p *Pool[T]) Size() int { return p.size }

// Start launches every worker. Workers exit when the queue channel closes,
// ctx is done or Shutdown is called.
func (p *Pool[T]) Start(ctx context.Context) {
	p.wg.Add(p.size)
	metrics.AddSweepWorkers(p.size)
	for i := 0; i < p.size; i++ {
		go p.run(ctx, p.name+"-"+strconv.Itoa(i))
	}
}

func (p *Pool[T]) run(ctx context.Context, name string) {
	defer func() {
		metrics.AddSweepWorkers(-1)
		p.wg.Done()
	}()

	jobs := p.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := p.process(ctx, job); err != nil {
				metrics.RecordSweepJob("error")
				p.logger.Error(ctx, "job failed", logger.String("worker", name), logger.Error(err))
				continue
			}
			metrics.RecordSweepJob("ok")
		}
	}
}

func (p *Pool[T]) process(ctx context.Context, job T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return p.handle(ctx, job)
}

// Wait blocks until every worker has exited.
func (p *Pool[T]) Wait() {
	p.wg.Wait()
}

// Shutdown signals the workers to stop after their current job and waits
// for them or for ctx.
func (p *Pool[T]) Shutdown(ctx context.Context) error {
	p.once.Do(func() { close(p.shutdown) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("workers", p.size))
		return fmt.Errorf("%w: %w", ErrShutdownTimeout, ctx.Err())
	}
}
