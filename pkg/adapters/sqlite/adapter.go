// Package sqlite provides a SQLite database adapter for vegabase, backed by
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kjrjay/vegabase/pkg/adapter"

	_ "modernc.org/sqlite" // sqlite driver
)

// DriverName is the database/sql driver name registered by modernc.org/sqlite.
const DriverName = "sqlite"

var dialect = &adapter.Dialect{
	Name:        "sqlite",
	Placeholder: adapter.PlaceholderQuestion,
	Quote:       `"`,
	FoldCase:    true,
	Types: func() map[string]string {
		t := adapter.StandardTypes()
		t["float"] = "REAL"
		t["double"] = "REAL"
		t["json"] = "TEXT"
		t["uuid"] = "TEXT"
		return t
	}(),
}

// Adapter implements the adapter.Adapter interface for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	return &Adapter{BaseSQLAdapter: adapter.NewBase(logger)}
}

// DriverName returns the database/sql driver name.
func (a *Adapter) DriverName() string {
	return DriverName
}

// Dialect returns the SQLite dialect.
func (a *Adapter) Dialect() *adapter.Dialect {
	return dialect
}

// Connect opens the database file at cfg.Path, or an in-memory database
// when the path is empty or ":memory:".
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn, memory := buildDSN(cfg)

	a.Logger.Debug("connecting to sqlite", slog.String("path", dsn))

	if err := a.Open(ctx, DriverName, dsn, cfg); err != nil {
		return err
	}
	if memory {
		// Every pooled connection to :memory: is a separate database.
		a.DB.SetMaxOpenConns(1)
	}
	return nil
}

// buildDSN appends the connection pragmas to a file path.
func buildDSN(cfg adapter.Config) (dsn string, memory bool) {
	path := cfg.Path
	if path == "" || path == ":memory:" {
		return ":memory:", true
	}

	pragmas := []string{"_pragma=busy_timeout(5000)", "_pragma=foreign_keys(1)"}
	if mode, ok := cfg.Options["journal_mode"]; ok {
		pragmas = append(pragmas, fmt.Sprintf("_pragma=journal_mode(%s)", mode))
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(pragmas, "&"), false
}

const introspectQuery = `
	SELECT
		m.name,
		p.name,
		p.type,
		p."notnull",
		p.pk,
		p.cid
	FROM sqlite_master m
	JOIN pragma_table_info(m.name) p
	WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%'
	ORDER BY m.name, p.cid
`

// Introspect reads every user table and its columns through q.
func (a *Adapter) Introspect(ctx context.Context, q adapter.Querier) (*adapter.Inventory, error) {
	rows, err := q.QueryContext(ctx, introspectQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query sqlite schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	inv := &adapter.Inventory{FoldCase: dialect.FoldCase}
	index := make(map[string]int)
	for rows.Next() {
		var table string
		var col adapter.Column
		var notNull, pk int
		if err := rows.Scan(&table, &col.Name, &col.Type, &notNull, &pk, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan sqlite column: %w", err)
		}
		col.Nullable = notNull == 0 && pk == 0
		col.PrimaryKey = pk > 0
		col.Position++

		i, ok := index[table]
		if !ok {
			i = len(inv.Tables)
			index[table] = i
			inv.Tables = append(inv.Tables, adapter.Table{Schema: "main", Name: table})
		}
		inv.Tables[i].Columns = append(inv.Tables[i].Columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sqlite schema: %w", err)
	}
	return inv, nil
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
