// Package postgres provides a PostgreSQL database adapter for vegabase.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kjrjay/vegabase/pkg/adapter"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

// DriverName is the database/sql driver name registered by pgx.
const DriverName = "pgx"

var dialect = &adapter.Dialect{
	Name:          "postgres",
	DefaultSchema: "public",
	Placeholder:   adapter.PlaceholderDollar,
	Quote:         `"`,
	Types: func() map[string]string {
		t := adapter.StandardTypes()
		t["bytes"] = "BYTEA"
		t["blob"] = "BYTEA"
		t["json"] = "JSONB"
		t["datetime"] = "TIMESTAMPTZ"
		return t
	}(),
}

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	return &Adapter{BaseSQLAdapter: adapter.NewBase(logger)}
}

// DriverName returns the database/sql driver name.
func (a *Adapter) DriverName() string {
	return DriverName
}

// Dialect returns the PostgreSQL dialect.
func (a *Adapter) Dialect() *adapter.Dialect {
	return dialect
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildPostgresDSN(cfg)

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	return a.Open(ctx, DriverName, dsn, cfg)
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg adapter.Config) string {
	// Build key=value format: host=localhost port=5432 user=postgres ...
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if cfg.Options != nil {
		if mode, ok := cfg.Options["sslmode"]; ok {
			sslmode = mode
		}
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	if cfg.Schema != "" {
		dsn += fmt.Sprintf(" search_path=%s", cfg.Schema)
	}

	return dsn
}

// Introspect reads the base tables of the configured schema, or of
// current_schema() when none is configured.
func (a *Adapter) Introspect(ctx context.Context, q adapter.Querier) (*adapter.Inventory, error) {
	return adapter.IntrospectInformationSchema(ctx, q, dialect, a.Cfg.Schema, "current_schema()")
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
