package hook

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// BeforeHook runs before the statement is sent to the engine.
type BeforeHook interface {
	BeforeExecute(ctx context.Context, qc *QueryContext) error
}

// AfterHook runs on the raw rows of a successful typed execution and may
// transform them. Each after hook receives the previous hook's output.
type AfterHook interface {
	AfterExecute(ctx context.Context, qc *QueryContext, rows []Row) ([]Row, error)
}

// ErrorHook runs when an execution fails. It may replace, wrap or return
// the error unchanged. Returning nil does not suppress the error.
type ErrorHook interface {
	OnError(ctx context.Context, qc *QueryContext, err error) error
}

// ErrNotAHook is returned by Chain.Add for values implementing no hook interface.
var ErrNotAHook = errors.New("value implements none of BeforeHook, AfterHook, ErrorHook")

// Chain is an ordered list of hooks. It is safe for concurrent use;
// every run iterates over a snapshot taken when the run starts.
type Chain struct {
	mu    sync.RWMutex
	hooks []any
}

// NewChain creates a chain from the given hooks, in order.
func NewChain(hooks ...any) (*Chain, error) {
	c := &Chain{}
	for _, h := range hooks {
		if err := c.Add(h); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add appends a hook to the end of the chain.
func (c *Chain) Add(h any) error {
	switch h.(type) {
	case BeforeHook, AfterHook, ErrorHook:
	default:
		return fmt.Errorf("cannot add %T: %w", h, ErrNotAHook)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, h)
	return nil
}

// Len returns the number of registered hooks.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.hooks)
}

func (c *Chain) snapshot() []any {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]any, len(c.hooks))
	copy(out, c.hooks)
	return out
}

// RunBefore calls every BeforeHook in chain order. It stops at the first
// hook that returns an error.
func (c *Chain) RunBefore(ctx context.Context, qc *QueryContext) error {
	for _, h := range c.snapshot() {
		if bh, ok := h.(BeforeHook); ok {
			if err := bh.BeforeExecute(ctx, qc); err != nil {
				return err
			}
		}
	}
	return nil
}

// RunAfter threads rows through every AfterHook in chain order.
func (c *Chain) RunAfter(ctx context.Context, qc *QueryContext, rows []Row) ([]Row, error) {
	for _, h := range c.snapshot() {
		if ah, ok := h.(AfterHook); ok {
			out, err := ah.AfterExecute(ctx, qc, rows)
			if err != nil {
				return nil, err
			}
			rows = out
		}
	}
	return rows, nil
}

// RunOnError passes err through every ErrorHook in chain order and returns
// the final error. A hook returning nil leaves the current error in place.
func (c *Chain) RunOnError(ctx context.Context, qc *QueryContext, err error) error {
	for _, h := range c.snapshot() {
		if eh, ok := h.(ErrorHook); ok {
			if remapped := eh.OnError(ctx, qc, err); remapped != nil {
				err = remapped
			}
		}
	}
	return err
}

// Funcs adapts plain functions to the hook interfaces. Nil fields are
// treated as pass-through.
type Funcs struct {
	Before func(ctx context.Context, qc *QueryContext) error
	After  func(ctx context.Context, qc *QueryContext, rows []Row) ([]Row, error)
	OnErr  func(ctx context.Context, qc *QueryContext, err error) error
}

// BeforeExecute implements BeforeHook.
func (f Funcs) BeforeExecute(ctx context.Context, qc *QueryContext) error {
	if f.Before == nil {
		return nil
	}
	return f.Before(ctx, qc)
}

// AfterExecute implements AfterHook.
func (f Funcs) AfterExecute(ctx context.Context, qc *QueryContext, rows []Row) ([]Row, error) {
	if f.After == nil {
		return rows, nil
	}
	return f.After(ctx, qc, rows)
}

// OnError implements ErrorHook.
func (f Funcs) OnError(ctx context.Context, qc *QueryContext, err error) error {
	if f.OnErr == nil {
		return err
	}
	return f.OnErr(ctx, qc, err)
}
