package adapter

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (DuckDB, MySQL, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. for parameters (PostgreSQL).
	PlaceholderDollar
)

// Dialect holds the engine rules needed to render schema DDL.
type Dialect struct {
	Name string

	// DefaultSchema is the default schema name ("main" for DuckDB, "public" for Postgres).
	DefaultSchema string

	// Placeholder defines how query parameters are formatted.
	Placeholder PlaceholderStyle

	// Quote and QuoteEnd delimit identifiers. An embedded QuoteEnd is doubled.
	Quote    string
	QuoteEnd string

	// FoldCase is true when the engine compares identifiers case-insensitively.
	FoldCase bool

	// Types maps lowercase logical column types ("text", "integer", ...) to
	// the engine's type names. Types not listed are emitted as written.
	Types map[string]string
}

// StandardTypes returns a fresh copy of the logical type table shared by
// all dialects. Adapters override the entries their engine spells differently.
func StandardTypes() map[string]string {
	return maps.Clone(standardTypes)
}

var standardTypes = map[string]string{
	"string":    "TEXT",
	"text":      "TEXT",
	"int":       "INTEGER",
	"integer":   "INTEGER",
	"bigint":    "BIGINT",
	"smallint":  "SMALLINT",
	"float":     "DOUBLE PRECISION",
	"double":    "DOUBLE PRECISION",
	"real":      "REAL",
	"decimal":   "DECIMAL",
	"numeric":   "NUMERIC",
	"bool":      "BOOLEAN",
	"boolean":   "BOOLEAN",
	"date":      "DATE",
	"time":      "TIMESTAMP",
	"timestamp": "TIMESTAMP",
	"datetime":  "TIMESTAMP",
	"bytes":     "BLOB",
	"blob":      "BLOB",
	"json":      "JSON",
	"uuid":      "UUID",
}

// ColumnDef describes one column to be created.
type ColumnDef struct {
	Name       string
	Type       string
	Nullable   bool
	PrimaryKey bool
	// Default is a raw SQL expression, emitted verbatim when non-empty.
	Default string
}

// QuoteIdent quotes an identifier.
func (d *Dialect) QuoteIdent(name string) string {
	end := d.QuoteEnd
	if end == "" {
		end = d.Quote
	}
	return d.Quote + strings.ReplaceAll(name, end, end+end) + end
}

// FormatPlaceholder returns the placeholder for the n-th (1-based) parameter.
func (d *Dialect) FormatPlaceholder(n int) string {
	if d.Placeholder == PlaceholderDollar {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// ColumnType maps a logical type to the engine's type name.
func (d *Dialect) ColumnType(logical string) string {
	key := strings.ToLower(strings.TrimSpace(logical))
	if t, ok := d.Types[key]; ok {
		return t
	}
	if key == "" {
		return d.ColumnType("text")
	}
	return strings.TrimSpace(logical)
}

func (d *Dialect) columnSQL(col ColumnDef, inlinePK bool) string {
	var b strings.Builder
	b.WriteString(d.QuoteIdent(col.Name))
	b.WriteByte(' ')
	b.WriteString(d.ColumnType(col.Type))
	if inlinePK && col.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if !col.Nullable {
		b.WriteString(" NOT NULL")
	}
	if col.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(col.Default)
	}
	return b.String()
}

// CreateTableSQL renders a CREATE TABLE IF NOT EXISTS statement. A single
// primary key column is declared inline, a composite key as a table constraint.
func (d *Dialect) CreateTableSQL(table string, cols []ColumnDef) string {
	var pk []string
	for _, c := range cols {
		if c.PrimaryKey {
			pk = append(pk, d.QuoteIdent(c.Name))
		}
	}
	inline := len(pk) == 1

	defs := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		defs = append(defs, d.columnSQL(c, inline))
	}
	if len(pk) > 1 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pk, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.QuoteIdent(table), strings.Join(defs, ", "))
}

// AddColumnSQL renders an ALTER TABLE ... ADD COLUMN statement. Added
// columns are always nullable and carry no default, whatever the
// declaration says, so existing rows stay valid.
func (d *Dialect) AddColumnSQL(table string, col ColumnDef) string {
	col.Nullable = true
	col.PrimaryKey = false
	col.Default = ""
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QuoteIdent(table), d.columnSQL(col, false))
}
