package adapter

import "strings"

// Column represents a column in a live database table.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	PrimaryKey bool
	Position   int
}

// Table holds the introspected columns of one live table.
type Table struct {
	Schema  string
	Name    string
	Columns []Column
}

// Column looks up a column by name.
func (t *Table) Column(name string, fold bool) (*Column, bool) {
	for i := range t.Columns {
		if sameIdent(t.Columns[i].Name, name, fold) {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Inventory is a snapshot of the live tables visible to a session. It is
// built fresh by every Introspect call.
type Inventory struct {
	Tables []Table

	// FoldCase makes table and column lookups case-insensitive, for engines
	// whose identifiers are.
	FoldCase bool
}

// Table looks up a table by name.
func (inv *Inventory) Table(name string) (*Table, bool) {
	for i := range inv.Tables {
		if sameIdent(inv.Tables[i].Name, name, inv.FoldCase) {
			return &inv.Tables[i], true
		}
	}
	return nil, false
}

// HasColumn reports whether table has a column with the given name.
func (inv *Inventory) HasColumn(table, column string) bool {
	t, ok := inv.Table(table)
	if !ok {
		return false
	}
	_, ok = t.Column(column, inv.FoldCase)
	return ok
}

// TableNames returns the live table names in inventory order.
func (inv *Inventory) TableNames() []string {
	names := make([]string, len(inv.Tables))
	for i, t := range inv.Tables {
		names[i] = t.Name
	}
	return names
}

func sameIdent(a, b string, fold bool) bool {
	if fold {
		return strings.EqualFold(a, b)
	}
	return a == b
}
