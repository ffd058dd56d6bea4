// Package hook provides the observer chain that wraps every query execution.
//
// A hook is any value implementing one or more of BeforeHook, AfterHook and
// ErrorHook. Hooks are registered once on a database handle and shared by
// every connection created from it, so implementations must be safe for
// concurrent use.
package hook

import (
	"time"
)

// Kind identifies which connection primitive produced an execution.
type Kind int

const (
	// KindTyped is a cardinality call (one, maybe_one, many, any) returning validated records.
	KindTyped Kind = iota
	// KindExec is a raw mutation returning an affected-row count.
	KindExec
	// KindScalar reads a single value.
	KindScalar
	// KindBulk runs one statement against many parameter sets.
	KindBulk
)

func (k Kind) String() string {
	switch k {
	case KindTyped:
		return "typed"
	case KindExec:
		return "exec"
	case KindScalar:
		return "scalar"
	case KindBulk:
		return "bulk"
	default:
		return "unknown"
	}
}

// Row is one raw result row keyed by column name, before validation.
type Row = map[string]any

// QueryContext describes one execution. It is created at the start of a
// call and discarded when the call returns.
//
// Before hooks may rewrite SQL and Args. The record binding is fixed for
// the whole chain.
type QueryContext struct {
	SQL            string
	Args           []any
	SkipValidation bool
	Kind           Kind
	StartedAt      time.Time

	// Columns lists the result columns in select order. It is set for typed
	// executions once the statement has run, before the after hooks.
	Columns []string

	recordName string
	values     map[any]any
}

// NewQueryContext creates a context for one execution.
func NewQueryContext(recordName, sql string, args []any, kind Kind) *QueryContext {
	return &QueryContext{
		SQL:        sql,
		Args:       args,
		Kind:       kind,
		StartedAt:  time.Now(),
		recordName: recordName,
	}
}

// RecordName returns the name of the record schema bound to the query.
// It is empty for untyped primitives.
func (c *QueryContext) RecordName() string { return c.recordName }

// Set stores a value for later hooks of the same execution.
func (c *QueryContext) Set(key, value any) {
	if c.values == nil {
		c.values = make(map[any]any)
	}
	c.values[key] = value
}

// Value returns a value stored with Set, or nil.
func (c *QueryContext) Value(key any) any {
	return c.values[key]
}

// Elapsed returns the time since the execution started.
func (c *QueryContext) Elapsed() time.Duration {
	return time.Since(c.StartedAt)
}
