// Package duckdb provides a DuckDB database adapter for vegabase.
package duckdb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kjrjay/vegabase/pkg/adapter"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// DriverName is the database/sql driver name registered by go-duckdb.
const DriverName = "duckdb"

var dialect = &adapter.Dialect{
	Name:          "duckdb",
	DefaultSchema: "main",
	Placeholder:   adapter.PlaceholderQuestion,
	Quote:         `"`,
	FoldCase:      true,
	Types: func() map[string]string {
		t := adapter.StandardTypes()
		t["string"] = "VARCHAR"
		t["text"] = "VARCHAR"
		t["float"] = "DOUBLE"
		t["double"] = "DOUBLE"
		return t
	}(),
}

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	return &Adapter{BaseSQLAdapter: adapter.NewBase(logger)}
}

// DriverName returns the database/sql driver name.
func (a *Adapter) DriverName() string {
	return DriverName
}

// Dialect returns the DuckDB dialect.
func (a *Adapter) Dialect() *adapter.Dialect {
	return dialect
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" as the path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := parseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to duckdb", slog.String("path", path))

	if err := a.Open(ctx, DriverName, path, cfg); err != nil {
		return err
	}
	if path == ":memory:" {
		a.DB.SetMaxOpenConns(1)
	}

	for _, stmt := range setupStatements(params) {
		if _, err := a.DB.ExecContext(ctx, stmt); err != nil {
			_ = a.Close()
			return fmt.Errorf("failed to configure duckdb: %w", err)
		}
	}
	return nil
}

// Introspect reads the base tables of the configured schema, or of
// current_schema() when none is configured.
func (a *Adapter) Introspect(ctx context.Context, q adapter.Querier) (*adapter.Inventory, error) {
	return adapter.IntrospectInformationSchema(ctx, q, dialect, a.Cfg.Schema, "current_schema()")
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
