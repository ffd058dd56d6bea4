// Package adapter provides the engine boundary for vegabase: connecting to a
// relational database through database/sql, rendering the DDL the schema
// applier needs, and introspecting the live table inventory.
//
// This package contains the public contract that all database adapters must implement.
// Concrete adapter implementations are in pkg/adapters/ subdirectories and
// register themselves from init().
package adapter

import (
	"context"
	"database/sql"
)

// Config holds configuration for connecting to a database.
type Config struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	Options  map[string]string
	Params   map[string]any
}

// Querier is the read side of a database session. *sql.DB, *sql.Conn and
// *sql.Tx all satisfy it, so introspection can run inside a transaction.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Engine is the engine-specific behavior the query runtime and the schema
// differ depend on. It needs no open connection of its own.
type Engine interface {
	// DriverName returns the database/sql driver name, e.g. "sqlite" or "pgx".
	DriverName() string

	// Dialect returns the identifier quoting and DDL rendering rules.
	Dialect() *Dialect

	// Introspect reads the live table and column inventory through q.
	Introspect(ctx context.Context, q Querier) (*Inventory, error)
}

// Adapter defines the interface that all database adapters must implement.
type Adapter interface {
	Engine

	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Handle returns the connection pool opened by Connect, or nil.
	Handle() *sql.DB
}
