// Package schema keeps a live database in step with a declared schema.
//
// Plan introspects the database behind a db.Conn and lists the changes
// needed to reach the declared tables and columns. Apply executes those
// changes, each in its own transaction. The policy is additive: tables and
// columns that exist only in the database are never reported or dropped,
// and column type changes are not detected.
package schema

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kjrjay/vegabase/pkg/adapter"
	"github.com/kjrjay/vegabase/pkg/record"
)

// Schema is the declared source of truth: the tables a database must have.
type Schema struct {
	Tables []Table `yaml:"tables"`
}

// Table is one declared table.
type Table struct {
	Name    string   `yaml:"name"`
	Columns []Column `yaml:"columns"`
}

// Column is one declared column. Type is a logical type such as "text",
// "integer" or "timestamp", or an engine type name passed through as written.
type Column struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Nullable   bool   `yaml:"nullable,omitempty"`
	PrimaryKey bool   `yaml:"primary_key,omitempty"`
	// Default is a raw SQL expression used when the table is created.
	Default string `yaml:"default,omitempty"`
}

// Table returns the declared table with the given name.
func (s *Schema) Table(name string) (*Table, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// Validate checks that every table has a name and at least one column, and
// that table and column names are unique.
func (s *Schema) Validate() error {
	tables := make(map[string]bool, len(s.Tables))
	for i, t := range s.Tables {
		if t.Name == "" {
			return fmt.Errorf("table %d: name is required", i)
		}
		key := strings.ToLower(t.Name)
		if tables[key] {
			return fmt.Errorf("table %s: declared more than once", t.Name)
		}
		tables[key] = true

		if len(t.Columns) == 0 {
			return fmt.Errorf("table %s: at least one column is required", t.Name)
		}
		cols := make(map[string]bool, len(t.Columns))
		for j, c := range t.Columns {
			if c.Name == "" {
				return fmt.Errorf("table %s: column %d: name is required", t.Name, j)
			}
			ckey := strings.ToLower(c.Name)
			if cols[ckey] {
				return fmt.Errorf("table %s: column %s declared more than once", t.Name, c.Name)
			}
			cols[ckey] = true
		}
	}
	return nil
}

// Column returns the declared column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// RecordSchema derives the record schema of a full-width row of t. Primary
// keys, and non-nullable columns with a default, are required. Any other
// column may hold NULL in rows written before Apply added it, since added
// columns are always nullable with no default.
func (t *Table) RecordSchema() record.Schema {
	fields := make([]record.Field, 0, len(t.Columns))
	for _, c := range t.Columns {
		ft := recordType(c.Type)
		if c.required() {
			fields = append(fields, record.Required(c.Name, ft))
		} else {
			fields = append(fields, record.Optional(c.Name, ft))
		}
	}
	return record.New(t.Name, fields...)
}

func (c Column) required() bool {
	return c.PrimaryKey || (!c.Nullable && c.Default != "")
}

func (c Column) def() adapter.ColumnDef {
	return adapter.ColumnDef{
		Name:       c.Name,
		Type:       c.Type,
		Nullable:   c.Nullable,
		PrimaryKey: c.PrimaryKey,
		Default:    c.Default,
	}
}

func (t *Table) defs() []adapter.ColumnDef {
	defs := make([]adapter.ColumnDef, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = c.def()
	}
	return defs
}

// recordType maps a logical column type to the record field type used for
// validation. Parameterised types such as VARCHAR(255) match on their base
// name. Unknown types validate as Any.
func recordType(logical string) record.Type {
	base := strings.ToLower(strings.TrimSpace(logical))
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	switch base {
	case "", "string", "text", "varchar", "char", "uuid":
		return record.String
	case "int", "integer", "bigint", "smallint", "tinyint":
		return record.Int
	case "float", "double", "double precision", "real", "decimal", "numeric":
		return record.Float
	case "bool", "boolean":
		return record.Bool
	case "date", "time", "timestamp", "timestamptz", "datetime":
		return record.Time
	case "bytes", "blob", "bytea":
		return record.Bytes
	default:
		return record.Any
	}
}

// Parse decodes a YAML schema document and validates it.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &s, nil
}

// LoadFile reads and parses a YAML schema file.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from user config
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
