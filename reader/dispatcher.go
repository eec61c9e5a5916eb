package reader

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"rdmark/bookmark"
)

var errDispatcherClosed = errors.New("bookmark request dispatcher is closed")

type request struct {
	op  string
	ctx context.Context
	run func(ctx context.Context)
}

// dispatcher executes repository requests one at a time in submission
// order, so a listing submitted after a deletion always observes it.
type dispatcher struct {
	repo bookmark.Repository
	log  *zap.Logger

	mu     sync.Mutex
	queue  []request
	closed bool

	signal  chan struct{}
	stopped chan struct{}
}

func newDispatcher(repo bookmark.Repository, log *zap.Logger) *dispatcher {
	d := &dispatcher{
		repo:    repo,
		log:     log,
		signal:  make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *dispatcher) loop() {
	defer close(d.stopped)
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			closed := d.closed
			d.mu.Unlock()
			if closed {
				return
			}
			<-d.signal
			continue
		}
		r := d.queue[0]
		d.queue[0] = request{}
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.log.Debug("Executing repository request", zap.String("op", r.op))
		r.run(r.ctx)
	}
}

func (d *dispatcher) enqueue(r request) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errDispatcherClosed
	}
	d.queue = append(d.queue, r)
	d.mu.Unlock()

	select {
	case d.signal <- struct{}{}:
	default:
	}
	return nil
}

// close stops accepting requests and waits for queued ones to complete.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	select {
	case d.signal <- struct{}{}:
	default:
	}
	<-d.stopped
}

type result[T any] struct {
	val T
	err error
}

// await submits request and waits for its result or for context to be
// done. Abandoned request still executes with the canceled context.
func await[T any](ctx context.Context, d *dispatcher, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	done := make(chan result[T], 1)
	err := d.enqueue(request{op: op, ctx: ctx, run: func(ctx context.Context) {
		v, err := fn(ctx)
		done <- result[T]{v, err}
	}})
	if err != nil {
		return zero, &bookmark.RepositoryError{Op: op, Err: err}
	}

	select {
	case res := <-done:
		if res.err != nil {
			return zero, repositoryError(op, res.err)
		}
		return res.val, nil
	case <-ctx.Done():
		return zero, &bookmark.RepositoryError{Op: op, Err: ctx.Err()}
	}
}

func (d *dispatcher) create(ctx context.Context, r bookmark.Range) (bookmark.MarkID, error) {
	return await(ctx, d, "create", func(ctx context.Context) (bookmark.MarkID, error) {
		return d.repo.CreateBookmark(ctx, r)
	})
}

func (d *dispatcher) list(ctx context.Context, bookID string, chapter int) ([]bookmark.Range, error) {
	return await(ctx, d, "list", func(ctx context.Context) ([]bookmark.Range, error) {
		return d.repo.ListBookmarks(ctx, bookID, chapter)
	})
}

// remove submits deletion and returns immediately, outcome is only logged.
func (d *dispatcher) remove(ctx context.Context, id bookmark.MarkID) {
	ctx = context.WithoutCancel(ctx)
	err := d.enqueue(request{op: "delete", ctx: ctx, run: func(ctx context.Context) {
		if err := d.repo.DeleteBookmark(ctx, id); err != nil {
			d.log.Warn("Unable to delete bookmark", zap.Int64("mark", int64(id)), zap.Error(err))
			return
		}
		d.log.Debug("Bookmark deleted", zap.Int64("mark", int64(id)))
	}})
	if err != nil {
		d.log.Warn("Unable to submit bookmark deletion", zap.Int64("mark", int64(id)), zap.Error(err))
	}
}

func repositoryError(op string, err error) error {
	var re *bookmark.RepositoryError
	if errors.As(err, &re) {
		return err
	}
	return &bookmark.RepositoryError{Op: op, Err: err}
}
