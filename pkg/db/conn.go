package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kjrjay/vegabase/pkg/adapter"
	"github.com/kjrjay/vegabase/pkg/hook"
	"github.com/kjrjay/vegabase/pkg/record"
)

// session is the engine effect the runtime executes against. *sql.Conn and
// *sql.Tx both provide it.
type session interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Conn is one database session plus the shared hook chain. It must not be
// used by more than one goroutine at a time.
type Conn struct {
	db   *Database
	sess session
	raw  *sql.Conn
	tx   *sql.Tx
}

// One returns the single row of q. Zero rows is a *NotFoundError, more than
// one a *TooManyRowsError.
func (c *Conn) One(ctx context.Context, q TypedQuery, opts ...CallOption) (record.Record, error) {
	recs, err := c.typed(ctx, q, ContractOne, opts)
	if err != nil {
		return record.Record{}, err
	}
	return recs[0], nil
}

// MaybeOne returns the row of q, or ok=false when there is none. More than
// one row is a *TooManyRowsError.
func (c *Conn) MaybeOne(ctx context.Context, q TypedQuery, opts ...CallOption) (rec record.Record, ok bool, err error) {
	recs, err := c.typed(ctx, q, ContractMaybeOne, opts)
	if err != nil || len(recs) == 0 {
		return record.Record{}, false, err
	}
	return recs[0], true, nil
}

// Many returns the rows of q and requires at least one.
func (c *Conn) Many(ctx context.Context, q TypedQuery, opts ...CallOption) ([]record.Record, error) {
	return c.typed(ctx, q, ContractMany, opts)
}

// Any returns the rows of q, possibly none.
func (c *Conn) Any(ctx context.Context, q TypedQuery, opts ...CallOption) ([]record.Record, error) {
	return c.typed(ctx, q, ContractAny, opts)
}

// All is an alias for Any.
func (c *Conn) All(ctx context.Context, q TypedQuery, opts ...CallOption) ([]record.Record, error) {
	return c.Any(ctx, q, opts...)
}

// ReturningOne runs a mutation with a RETURNING clause that must yield
// exactly one row.
func (c *Conn) ReturningOne(ctx context.Context, q TypedQuery, opts ...CallOption) (record.Record, error) {
	return c.One(ctx, q, opts...)
}

// ReturningMany runs a mutation with a RETURNING clause that must yield at
// least one row.
func (c *Conn) ReturningMany(ctx context.Context, q TypedQuery, opts ...CallOption) ([]record.Record, error) {
	return c.Many(ctx, q, opts...)
}

// Execute runs a statement and returns the number of affected rows.
// Only before and error hooks run.
func (c *Conn) Execute(ctx context.Context, stmt Statement, opts ...CallOption) (int64, error) {
	qc := c.untypedContext(stmt, hook.KindExec, opts)
	n, err := c.execute(ctx, qc)
	if err != nil {
		return 0, c.db.hooks.RunOnError(ctx, qc, err)
	}
	return n, nil
}

func (c *Conn) execute(ctx context.Context, qc *hook.QueryContext) (int64, error) {
	if err := c.db.hooks.RunBefore(ctx, qc); err != nil {
		return 0, err
	}
	res, err := c.sess.ExecContext(ctx, qc.SQL, qc.Args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Scalar returns the first column of the first row, or nil when the
// statement returns no rows. Only before and error hooks run.
func (c *Conn) Scalar(ctx context.Context, stmt Statement, opts ...CallOption) (any, error) {
	qc := c.untypedContext(stmt, hook.KindScalar, opts)
	v, err := c.scalar(ctx, qc)
	if err != nil {
		return nil, c.db.hooks.RunOnError(ctx, qc, err)
	}
	return v, nil
}

func (c *Conn) scalar(ctx context.Context, qc *hook.QueryContext) (any, error) {
	if err := c.db.hooks.RunBefore(ctx, qc); err != nil {
		return nil, err
	}
	rows, err := c.sess.QueryContext(ctx, qc.SQL, qc.Args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, rows.Err()
	}
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return vals[0], nil
}

// ExecuteMany runs one statement once per argument set through a single
// prepared statement and returns the summed affected-row count. The
// QueryContext seen by hooks holds one []any per set in Args. Only before
// and error hooks run.
func (c *Conn) ExecuteMany(ctx context.Context, stmt Statement, argSets [][]any) (int64, error) {
	args := make([]any, len(argSets))
	for i, set := range argSets {
		args[i] = set
	}
	qc := hook.NewQueryContext("", stmt.SQL, args, hook.KindBulk)
	n, err := c.executeMany(ctx, qc)
	if err != nil {
		return 0, c.db.hooks.RunOnError(ctx, qc, err)
	}
	return n, nil
}

func (c *Conn) executeMany(ctx context.Context, qc *hook.QueryContext) (int64, error) {
	if err := c.db.hooks.RunBefore(ctx, qc); err != nil {
		return 0, err
	}
	if len(qc.Args) == 0 {
		return 0, nil
	}

	ps, err := c.sess.PrepareContext(ctx, qc.SQL)
	if err != nil {
		return 0, err
	}
	defer func() { _ = ps.Close() }()

	var total int64
	for i, a := range qc.Args {
		set, ok := a.([]any)
		if !ok {
			return total, fmt.Errorf("argument set %d is %T, want []any", i, a)
		}
		res, err := ps.ExecContext(ctx, set...)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (c *Conn) untypedContext(stmt Statement, kind hook.Kind, opts []CallOption) *hook.QueryContext {
	cl := newCall(opts)
	args := append(append([]any(nil), stmt.Args...), cl.args...)
	return hook.NewQueryContext("", stmt.SQL, args, kind)
}

// Transaction runs fn in one atomic unit on this session, with the same
// commit and rollback rules as Database.Transaction. On a Conn that is
// already inside a transaction, fn joins the enclosing unit.
func (c *Conn) Transaction(ctx context.Context, fn func(*Conn) error) error {
	if c.tx != nil {
		return fn(c)
	}
	tx, err := c.raw.BeginTx(ctx, c.db.txOpts)
	if err != nil {
		return err
	}
	return c.db.runTx(ctx, tx, &Conn{db: c.db, sess: tx, tx: tx}, fn)
}

// InTransaction reports whether the Conn is bound to a transaction.
func (c *Conn) InTransaction() bool { return c.tx != nil }

// Database returns the handle the Conn was acquired from.
func (c *Conn) Database() *Database { return c.db }

// Dialect returns the engine dialect, or nil without an engine.
func (c *Conn) Dialect() *adapter.Dialect {
	if c.db.engine == nil {
		return nil
	}
	return c.db.engine.Dialect()
}

// Introspect reads the live table inventory through this session, so it
// sees uncommitted DDL of the Conn's own transaction.
func (c *Conn) Introspect(ctx context.Context) (*adapter.Inventory, error) {
	if c.db.engine == nil {
		return nil, ErrNoEngine
	}
	return c.db.engine.Introspect(ctx, c.sess)
}

// Close returns a dedicated session to the pool. It is a no-op for the
// Conn of a transaction, whose lifetime the transaction scope owns.
func (c *Conn) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}
