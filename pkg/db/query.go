// Package db is the typed query runtime: it binds statements to record
// schemas, runs them through the database's hook chain and enforces the
// row-count contract of the call.
//
// A Database is created once and shared. Callers acquire a short-lived Conn
// for each unit of work, either directly with Connection or scoped to one
// atomic unit with Transaction:
//
//	users := record.New("User", record.Required("id", record.Int), record.Required("name", record.String))
//	byID := db.Query(users, "SELECT id, name FROM users WHERE id = ?")
//
//	err := database.Transaction(ctx, func(c *db.Conn) error {
//		u, err := c.One(ctx, byID, db.Params(42))
//		...
//	})
package db

import (
	"slices"

	"github.com/kjrjay/vegabase/pkg/record"
)

// Statement is a query and its positional arguments. The runtime passes it
// to the engine without interpreting it.
type Statement struct {
	SQL  string
	Args []any
}

// SQL builds a Statement.
func SQL(query string, args ...any) Statement {
	return Statement{SQL: query, Args: args}
}

// TypedQuery is a statement bound to the record schema its rows must fit.
// It is immutable: hooks may rewrite the statement of one execution, never
// the binding.
type TypedQuery struct {
	schema record.Schema
	stmt   Statement
}

// Bind pairs a schema with a statement. It performs no I/O and does not
// check the statement against the schema; rows are checked when they
// come back.
func Bind(s record.Schema, stmt Statement) TypedQuery {
	stmt.Args = slices.Clone(stmt.Args)
	return TypedQuery{schema: s, stmt: stmt}
}

// Query is shorthand for Bind(s, SQL(query, args...)).
func Query(s record.Schema, query string, args ...any) TypedQuery {
	return Bind(s, SQL(query, args...))
}

// Schema returns the bound record schema.
func (q TypedQuery) Schema() record.Schema { return q.schema }

// Statement returns a copy of the bound statement.
func (q TypedQuery) Statement() Statement {
	return Statement{SQL: q.stmt.SQL, Args: slices.Clone(q.stmt.Args)}
}

func (q TypedQuery) String() string {
	return q.schema.Name() + ": " + q.stmt.SQL
}

type call struct {
	args []any
	skip bool
}

// CallOption adjusts a single execution.
type CallOption func(*call)

// Params appends arguments to the bound statement's own arguments.
func Params(args ...any) CallOption {
	return func(c *call) {
		c.args = append(c.args, args...)
	}
}

// SkipValidation builds records from raw rows without presence or type
// checks. Malformed rows then surface when the record is decoded.
func SkipValidation() CallOption {
	return func(c *call) {
		c.skip = true
	}
}

func newCall(opts []CallOption) call {
	var c call
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
