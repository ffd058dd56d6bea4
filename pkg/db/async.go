package db

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/kjrjay/vegabase/pkg/record"
)

// Future is the pending result of a unit of work started with Go.
type Future[T any] struct {
	done     chan struct{}
	val      T
	err      error
	panicked any
}

// Go runs fn on its own goroutine. A panic in fn is re-raised by Await, or
// by Gather on the goroutine that called it.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if p := recover(); p != nil {
				f.panicked = p
			}
		}()
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Done is closed when the unit has finished.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await waits for the result. If ctx ends first it returns ctx.Err(); the
// unit itself is governed by the context it was started with.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	v, p, err := f.wait(ctx)
	if p != nil {
		panic(p)
	}
	return v, err
}

// wait is Await with the unit's panic value returned instead of raised. A
// finished unit is reported even when ctx has already ended.
func (f *Future[T]) wait(ctx context.Context) (T, any, error) {
	select {
	case <-f.done:
		return f.val, f.panicked, f.err
	default:
	}
	select {
	case <-f.done:
	case <-ctx.Done():
		var zero T
		return zero, nil, ctx.Err()
	}
	return f.val, f.panicked, f.err
}

// errUnitPanicked stops a Gather early; the panic itself is re-raised on
// the caller's goroutine.
var errUnitPanicked = errors.New("unit panicked")

// Gather awaits every future and returns their results in order. It
// returns the first error; the other units still run to completion. If a
// unit panicked, Gather re-raises the panic of the earliest such future on
// the calling goroutine.
func Gather[T any](ctx context.Context, futures ...*Future[T]) ([]T, error) {
	out := make([]T, len(futures))
	panics := make([]any, len(futures))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range futures {
		g.Go(func() error {
			v, p, err := f.wait(gctx)
			if p != nil {
				panics[i] = p
				return errUnitPanicked
			}
			out[i] = v
			return err
		})
	}
	err := g.Wait()
	for _, p := range panics {
		if p != nil {
			panic(p)
		}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Async is the non-blocking view of a Database. Every method starts the
// unit on its own goroutine and returns immediately. Hooks, validation and
// contract checks run on that goroutine in the same order as the blocking
// calls; only the caller is freed.
type Async struct {
	db *Database
}

// Async returns the non-blocking view of d.
func (d *Database) Async() *Async { return &Async{db: d} }

// Connection runs fn on a dedicated session.
func (a *Async) Connection(ctx context.Context, fn func(*Conn) error) *Future[struct{}] {
	return Go(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.db.Connection(ctx, fn)
	})
}

// Transaction runs fn in one atomic unit. Cancelling ctx while fn runs
// rolls the unit back.
func (a *Async) Transaction(ctx context.Context, fn func(*Conn) error) *Future[struct{}] {
	return Go(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.db.Transaction(ctx, fn)
	})
}

func withConn[T any](ctx context.Context, d *Database, fn func(*Conn) (T, error)) *Future[T] {
	return Go(ctx, func(ctx context.Context) (T, error) {
		var out T
		err := d.Connection(ctx, func(c *Conn) error {
			var err error
			out, err = fn(c)
			return err
		})
		return out, err
	})
}

// One is the non-blocking form of Conn.One.
func (a *Async) One(ctx context.Context, q TypedQuery, opts ...CallOption) *Future[record.Record] {
	return withConn(ctx, a.db, func(c *Conn) (record.Record, error) {
		return c.One(ctx, q, opts...)
	})
}

// MaybeOne is the non-blocking form of Conn.MaybeOne. The result is nil
// when there is no row.
func (a *Async) MaybeOne(ctx context.Context, q TypedQuery, opts ...CallOption) *Future[*record.Record] {
	return withConn(ctx, a.db, func(c *Conn) (*record.Record, error) {
		rec, ok, err := c.MaybeOne(ctx, q, opts...)
		if err != nil || !ok {
			return nil, err
		}
		return &rec, nil
	})
}

// Many is the non-blocking form of Conn.Many.
func (a *Async) Many(ctx context.Context, q TypedQuery, opts ...CallOption) *Future[[]record.Record] {
	return withConn(ctx, a.db, func(c *Conn) ([]record.Record, error) {
		return c.Many(ctx, q, opts...)
	})
}

// Any is the non-blocking form of Conn.Any.
func (a *Async) Any(ctx context.Context, q TypedQuery, opts ...CallOption) *Future[[]record.Record] {
	return withConn(ctx, a.db, func(c *Conn) ([]record.Record, error) {
		return c.Any(ctx, q, opts...)
	})
}

// Execute is the non-blocking form of Conn.Execute.
func (a *Async) Execute(ctx context.Context, stmt Statement, opts ...CallOption) *Future[int64] {
	return withConn(ctx, a.db, func(c *Conn) (int64, error) {
		return c.Execute(ctx, stmt, opts...)
	})
}

// Scalar is the non-blocking form of Conn.Scalar.
func (a *Async) Scalar(ctx context.Context, stmt Statement, opts ...CallOption) *Future[any] {
	return withConn(ctx, a.db, func(c *Conn) (any, error) {
		return c.Scalar(ctx, stmt, opts...)
	})
}
