package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/kjrjay/vegabase/pkg/adapter"
	"github.com/kjrjay/vegabase/pkg/db"
)

// ChangeType is the kind of a schema change.
type ChangeType string

const (
	// CreateTable creates a declared table that does not exist live.
	CreateTable ChangeType = "create_table"
	// AddColumn adds a declared column missing from an existing table.
	AddColumn ChangeType = "add_column"
)

// Change is one step of a plan. Detail holds the column name of an
// AddColumn and is empty for CreateTable.
type Change struct {
	Type   ChangeType
	Table  string
	Detail string
}

// String renders the change as "<type>: <table>[.<detail>]", for example
// "add_column: users.email".
func (c Change) String() string {
	if c.Detail == "" {
		return fmt.Sprintf("%s: %s", c.Type, c.Table)
	}
	return fmt.Sprintf("%s: %s.%s", c.Type, c.Table, c.Detail)
}

// Policy selects which differences the differ reports.
type Policy int

const (
	// Additive reports missing tables and missing columns only.
	Additive Policy = iota
)

func (p Policy) String() string {
	if p == Additive {
		return "additive"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ErrUnsupportedPolicy is returned by PlanWith for any policy other than Additive.
var ErrUnsupportedPolicy = errors.New("unsupported schema policy")

// Plan lists the changes that bring the database behind conn in line with
// declared, under the Additive policy. CreateTable changes come first, in
// declaration order, followed by the AddColumn changes of existing tables in
// table and column declaration order. A database that already matches
// yields an empty, non-nil slice.
func Plan(ctx context.Context, conn *db.Conn, declared *Schema) ([]Change, error) {
	return PlanWith(ctx, conn, declared, Additive)
}

// PlanWith is Plan with an explicit policy.
func PlanWith(ctx context.Context, conn *db.Conn, declared *Schema, policy Policy) ([]Change, error) {
	if policy != Additive {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPolicy, policy)
	}

	live, err := conn.Introspect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect database: %w", err)
	}
	return diff(declared, live), nil
}

func diff(declared *Schema, live *adapter.Inventory) []Change {
	creates := []Change{}
	var adds []Change

	for _, t := range declared.Tables {
		lt, ok := live.Table(t.Name)
		if !ok {
			creates = append(creates, Change{Type: CreateTable, Table: t.Name})
			continue
		}
		for _, c := range t.Columns {
			if _, ok := lt.Column(c.Name, live.FoldCase); !ok {
				adds = append(adds, Change{Type: AddColumn, Table: t.Name, Detail: c.Name})
			}
		}
	}
	return append(creates, adds...)
}
