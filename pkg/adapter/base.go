package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Open, Close and Handle implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// NewBase returns a BaseSQLAdapter with a non-nil logger.
func NewBase(logger *slog.Logger) BaseSQLAdapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return BaseSQLAdapter{Logger: logger}
}

// Open opens a pool for driver/dsn, pings it and keeps it on success.
func (b *BaseSQLAdapter) Open(ctx context.Context, driver, dsn string, cfg Config) error {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", driver, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping %s: %w", driver, err)
	}

	b.DB = db
	b.Cfg = cfg
	return nil
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		err := b.DB.Close()
		b.DB = nil
		return err
	}
	return nil
}

// Handle returns the open connection pool, or nil before Connect.
func (b *BaseSQLAdapter) Handle() *sql.DB {
	return b.DB
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// IntrospectInformationSchema reads the base tables and columns of one
// schema from information_schema. schemaExpr is a SQL expression for the
// schema name, such as "current_schema()" or "DATABASE()", used when
// schema is empty.
func IntrospectInformationSchema(ctx context.Context, q Querier, d *Dialect, schema, schemaExpr string) (*Inventory, error) {
	var args []any
	filter := schemaExpr
	if schema != "" {
		filter = d.FormatPlaceholder(1)
		args = append(args, schema)
	}

	//nolint:gosec // filter is a placeholder or a fixed expression supplied by the adapter
	query := fmt.Sprintf(`
		SELECT
			c.table_schema,
			c.table_name,
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.ordinal_position
		FROM information_schema.columns c
		JOIN information_schema.tables t
			ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = %s AND t.table_type = 'BASE TABLE'
		ORDER BY c.table_name, c.ordinal_position
	`, filter)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	inv := &Inventory{FoldCase: d.FoldCase}
	index := make(map[string]int)
	for rows.Next() {
		var tableSchema, tableName, nullable string
		var col Column
		if err := rows.Scan(&tableSchema, &tableName, &col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"

		i, ok := index[tableName]
		if !ok {
			i = len(inv.Tables)
			index[tableName] = i
			inv.Tables = append(inv.Tables, Table{Schema: tableSchema, Name: tableName})
		}
		inv.Tables[i].Columns = append(inv.Tables[i].Columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}

	return inv, nil
}
