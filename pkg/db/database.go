package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kjrjay/vegabase/pkg/adapter"
	"github.com/kjrjay/vegabase/pkg/hook"
)

// Database is the shared handle: a connection pool, the engine adapter and
// the hook chain used by every connection. It is safe for concurrent use.
type Database struct {
	db     *sql.DB
	engine adapter.Engine
	owner  adapter.Adapter
	hooks  *hook.Chain
	logger *slog.Logger
	txOpts *sql.TxOptions
}

// New wraps an open pool. engine supplies the dialect and introspection used
// by the schema package and may be nil for query-only use.
func New(sqlDB *sql.DB, engine adapter.Engine, opts ...Option) (*Database, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database pool is nil")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	chain, err := hook.NewChain(o.hooks...)
	if err != nil {
		return nil, err
	}

	return &Database{
		db:     sqlDB,
		engine: engine,
		hooks:  chain,
		logger: o.logger,
		txOpts: o.txOpts,
	}, nil
}

// Open creates the adapter named by cfg.Type, connects it and wraps its pool.
// Close releases the adapter.
func Open(ctx context.Context, cfg adapter.Config, opts ...Option) (*Database, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	adp, err := adapter.NewAdapter(cfg, o.logger)
	if err != nil {
		return nil, err
	}
	if err := adp.Connect(ctx, cfg); err != nil {
		return nil, err
	}

	d, err := New(adp.Handle(), adp, opts...)
	if err != nil {
		_ = adp.Close()
		return nil, err
	}
	d.owner = adp
	return d, nil
}

// AddHook appends a hook to the shared chain. It affects executions that
// start after it returns.
func (d *Database) AddHook(h any) error {
	return d.hooks.Add(h)
}

// Hooks returns the shared hook chain.
func (d *Database) Hooks() *hook.Chain { return d.hooks }

// Engine returns the engine adapter, or nil.
func (d *Database) Engine() adapter.Engine { return d.engine }

// DB returns the underlying pool.
func (d *Database) DB() *sql.DB { return d.db }

// Logger returns the database logger.
func (d *Database) Logger() *slog.Logger { return d.logger }

// Conn acquires a dedicated session from the pool. The caller must Close it.
func (d *Database) Conn(ctx context.Context) (*Conn, error) {
	raw, err := d.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &Conn{db: d, sess: raw, raw: raw}, nil
}

// Connection runs fn with a dedicated session and releases it afterwards.
// Statements run in autocommit mode; there is no commit or rollback.
func (d *Database) Connection(ctx context.Context, fn func(*Conn) error) error {
	c, err := d.Conn(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	return fn(c)
}

// Transaction runs fn inside one atomic unit. It commits when fn returns
// nil. When fn returns an error or panics, or ctx is cancelled, it rolls
// back and returns the error (or re-panics) unchanged.
func (d *Database) Transaction(ctx context.Context, fn func(*Conn) error) error {
	tx, err := d.db.BeginTx(ctx, d.txOpts)
	if err != nil {
		return err
	}
	return d.runTx(ctx, tx, &Conn{db: d, sess: tx, tx: tx}, fn)
}

func (d *Database) runTx(ctx context.Context, tx *sql.Tx, c *Conn, fn func(*Conn) error) error {
	panicked := true
	defer func() {
		if panicked {
			d.rollback(tx, "panic")
		}
	}()

	err := fn(c)
	panicked = false
	if err != nil {
		d.rollback(tx, err.Error())
		return err
	}

	if err := ctx.Err(); err != nil {
		d.rollback(tx, err.Error())
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	d.logger.Debug("transaction committed")
	return nil
}

// rollback never replaces the error that caused it. Failures are logged.
func (d *Database) rollback(tx *sql.Tx, cause string) {
	err := tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		d.logger.Warn("transaction rollback failed", slog.String("cause", cause), slog.Any("error", err))
		return
	}
	d.logger.Debug("transaction rolled back", slog.String("cause", cause))
}

// Close closes the pool when Open created it. A Database built with New
// leaves the pool to its owner.
func (d *Database) Close() error {
	if d.owner != nil {
		return d.owner.Close()
	}
	return nil
}
