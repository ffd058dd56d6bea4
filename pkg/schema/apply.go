package schema

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kjrjay/vegabase/pkg/adapter"
	"github.com/kjrjay/vegabase/pkg/db"
)

// ApplyError reports the change that failed. Applied holds the changes
// committed before it, which stay in place.
type ApplyError struct {
	Change  Change
	Applied []Change
	Err     error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("failed to apply %s (%d applied before it): %v", e.Change, len(e.Applied), e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// Apply plans against declared and executes the plan. It returns the changes
// actually applied; an empty plan performs no writes.
func Apply(ctx context.Context, conn *db.Conn, declared *Schema) ([]Change, error) {
	changes, err := Plan(ctx, conn, declared)
	if err != nil {
		return nil, err
	}
	return ApplyPlan(ctx, conn, changes, declared)
}

// ApplyPlan executes a previously computed plan in order. Every change runs
// in its own transaction, so a failure leaves the earlier changes committed:
// the applied prefix is returned together with an *ApplyError. When conn is
// already inside a transaction the changes join it instead.
func ApplyPlan(ctx context.Context, conn *db.Conn, changes []Change, declared *Schema) ([]Change, error) {
	dialect := conn.Dialect()
	if dialect == nil {
		return nil, db.ErrNoEngine
	}
	logger := conn.Database().Logger()

	applied := []Change{}
	for _, ch := range changes {
		stmt, err := changeSQL(dialect, declared, ch)
		if err == nil {
			err = conn.Transaction(ctx, func(tx *db.Conn) error {
				_, err := tx.Execute(ctx, db.SQL(stmt))
				return err
			})
		}
		if err != nil {
			logger.Warn("schema change failed", slog.String("change", ch.String()), slog.Any("error", err))
			return applied, &ApplyError{Change: ch, Applied: applied, Err: err}
		}
		logger.Info("schema change applied", slog.String("change", ch.String()))
		applied = append(applied, ch)
	}
	return applied, nil
}

// CreateAll creates every declared table that does not exist yet, in one
// transaction. Existing tables are left untouched, missing columns included.
func CreateAll(ctx context.Context, conn *db.Conn, declared *Schema) error {
	dialect := conn.Dialect()
	if dialect == nil {
		return db.ErrNoEngine
	}

	return conn.Transaction(ctx, func(tx *db.Conn) error {
		for i := range declared.Tables {
			t := &declared.Tables[i]
			if _, err := tx.Execute(ctx, db.SQL(dialect.CreateTableSQL(t.Name, t.defs()))); err != nil {
				return fmt.Errorf("failed to create table %s: %w", t.Name, err)
			}
		}
		return nil
	})
}

func changeSQL(d *adapter.Dialect, declared *Schema, ch Change) (string, error) {
	t, ok := declared.Table(ch.Table)
	if !ok {
		return "", fmt.Errorf("table %s is not declared", ch.Table)
	}

	switch ch.Type {
	case CreateTable:
		return d.CreateTableSQL(t.Name, t.defs()), nil
	case AddColumn:
		c, ok := t.Column(ch.Detail)
		if !ok {
			return "", fmt.Errorf("column %s.%s is not declared", ch.Table, ch.Detail)
		}
		return d.AddColumnSQL(t.Name, c.def()), nil
	default:
		return "", fmt.Errorf("unknown change type %q", ch.Type)
	}
}
