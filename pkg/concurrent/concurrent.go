package concurrent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

var (
	ErrPoolClosed = errors.New("worker pool closed")
	ErrPoolFull   = errors.New("worker pool queue full")
)

// Pool runs a fixed number of workers draining a bounded job queue.
// Handler panics are recovered and reported through onError.
type Pool[T any] struct {
	jobs    chan T
	group   *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
	closed  atomic.Bool
	once    sync.Once
	handler func(context.Context, T) error
	onError func(T, error)
}

// NewPool starts workers goroutines. onError receives every error returned
// (or panic recovered) by handler; it may be nil.
func NewPool[T any](ctx context.Context, workers, queue int, handler func(context.Context, T) error, onError func(T, error)) *Pool[T] {
	if workers < 1 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)

	p := &Pool[T]{
		jobs:    make(chan T, queue),
		group:   group,
		ctx:     gctx,
		cancel:  cancel,
		handler: handler,
		onError: onError,
	}
	for i := 0; i < workers; i++ {
		group.Go(p.work)
	}
	return p
}

func (p *Pool[T]) work() error {
	for {
		select {
		case <-p.ctx.Done():
			return nil
		case job, ok := <-p.jobs:
			if !ok {
				return nil
			}
			if err := p.run(job); err != nil && p.onError != nil {
				p.onError(job, err)
			}
		}
	}
}

func (p *Pool[T]) run(job T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	return p.handler(p.ctx, job)
}

// TrySubmit enqueues job without blocking.
func (p *Pool[T]) TrySubmit(job T) (err error) {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	defer func() {
		// Close may race with a send on the closed channel.
		if recover() != nil {
			err = ErrPoolClosed
		}
	}()
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrPoolFull
	}
}

// Close stops accepting jobs, lets queued jobs finish and waits for workers.
func (p *Pool[T]) Close() error {
	var err error
	p.once.Do(func() {
		p.closed.Store(true)
		close(p.jobs)
		err = p.group.Wait()
		p.cancel()
	})
	return err
}

// Stop cancels the workers without draining the queue.
func (p *Pool[T]) Stop() error {
	p.cancel()
	return p.Close()
}
