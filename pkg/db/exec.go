package db

import (
	"context"
	"slices"

	"github.com/kjrjay/vegabase/pkg/hook"
	"github.com/kjrjay/vegabase/pkg/record"
)

// typed runs one typed execution: before hooks, statement, after hooks,
// validation and the contract check. Any error from those steps goes
// through the error hooks before it is returned.
func (c *Conn) typed(ctx context.Context, q TypedQuery, contract Contract, opts []CallOption) ([]record.Record, error) {
	cl := newCall(opts)
	qc := hook.NewQueryContext(q.schema.Name(), q.stmt.SQL, slices.Concat(q.stmt.Args, cl.args), hook.KindTyped)
	qc.SkipValidation = cl.skip

	recs, err := runTyped(ctx, c.sess, c.db.hooks, qc, q.schema, contract)
	if err != nil {
		return nil, c.db.hooks.RunOnError(ctx, qc, err)
	}
	return recs, nil
}

func runTyped(ctx context.Context, sess session, hooks *hook.Chain, qc *hook.QueryContext, s record.Schema, contract Contract) ([]record.Record, error) {
	if err := hooks.RunBefore(ctx, qc); err != nil {
		return nil, err
	}

	cols, raw, err := queryRows(ctx, sess, qc.SQL, qc.Args)
	if err != nil {
		return nil, err
	}
	qc.Columns = cols

	raw, err = hooks.RunAfter(ctx, qc, raw)
	if err != nil {
		return nil, err
	}

	recs := make([]record.Record, 0, len(raw))
	for _, row := range raw {
		rec, err := record.Validate(s, row, qc.SkipValidation)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	if err := contract.check(s.Name(), len(recs)); err != nil {
		return nil, err
	}
	return recs, nil
}

// queryRows collects every result row as a column-name keyed map, along
// with the column names in select order.
func queryRows(ctx context.Context, sess session, query string, args []any) ([]string, []hook.Row, error) {
	rows, err := sess.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	out := []hook.Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make(hook.Row, len(cols))
		for i, col := range cols {
			row[col] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, out, nil
}
