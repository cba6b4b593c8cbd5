package terrain

import (
	"context"
	"errors"
	"sync"

	"github.com/zeusync/skyrace/pkg/concurrent"
)

var ErrBackendBusy = errors.New("terrain backend busy")

// Request asks a backend for one tile.
type Request struct {
	Coord  Coord
	Params Params
}

// Response carries either a mesh or the error that prevented it.
type Response struct {
	Coord Coord
	Mesh  *Mesh
	Err   error
}

// Backend generates tiles off the tick goroutine. Submit never blocks; it
// returns ErrBackendBusy when the backend cannot take more work right now.
type Backend interface {
	Submit(Request) error
	Responses() <-chan Response
	Close() error
}

var _ Backend = (*WorkerBackend)(nil)

// WorkerBackend runs generation on a fixed set of goroutines. Requests and
// responses are passed by value over channels; nothing is shared with the
// caller.
type WorkerBackend struct {
	pool      *concurrent.Pool[Request]
	responses chan Response
	gen       *Generator
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewWorkerBackend starts workers goroutines with room for queue pending
// requests.
func NewWorkerBackend(ctx context.Context, gen *Generator, workers, queue int) *WorkerBackend {
	if gen == nil {
		gen = NewGenerator(nil)
	}
	if queue < 1 {
		queue = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	b := &WorkerBackend{
		gen:       gen,
		responses: make(chan Response, queue+workers),
		ctx:       ctx,
		cancel:    cancel,
	}
	b.pool = concurrent.NewPool(ctx, workers, queue, b.handle, b.fail)
	return b
}

func (b *WorkerBackend) handle(_ context.Context, req Request) error {
	mesh, err := b.gen.Generate(req.Coord, req.Params)
	if err != nil {
		return err
	}
	b.send(Response{Coord: req.Coord, Mesh: mesh})
	return nil
}

func (b *WorkerBackend) fail(req Request, err error) {
	b.send(Response{Coord: req.Coord, Err: err})
}

func (b *WorkerBackend) send(resp Response) {
	select {
	case b.responses <- resp:
	case <-b.ctx.Done():
	}
}

func (b *WorkerBackend) Submit(req Request) error {
	err := b.pool.TrySubmit(req)
	if errors.Is(err, concurrent.ErrPoolFull) {
		return ErrBackendBusy
	}
	return err
}

func (b *WorkerBackend) Responses() <-chan Response {
	return b.responses
}

// Close stops the workers, dropping queued requests, and closes the response
// channel.
func (b *WorkerBackend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.cancel()
		err = b.pool.Close()
		close(b.responses)
	})
	return err
}
