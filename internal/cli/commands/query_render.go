package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/kjrjay/vegabase/pkg/adapter"
)

// resultSet is a query result with its columns in select order.
type resultSet struct {
	Columns []string
	Rows    []map[string]any
}

// cells formats every row in column order.
func (rs resultSet) cells() [][]string {
	out := make([][]string, len(rs.Rows))
	for i, row := range rs.Rows {
		out[i] = make([]string, len(rs.Columns))
		for j, col := range rs.Columns {
			out[i][j] = formatValue(row[col])
		}
	}
	return out
}

func renderResults(w io.Writer, rs resultSet, format string) error {
	switch format {
	case "json":
		return renderJSON(w, rs.Rows)
	case "csv":
		return renderCSV(w, rs)
	case "md", "markdown":
		return renderMarkdown(w, rs)
	default:
		return renderTable(w, rs)
	}
}

func renderTable(w io.Writer, rs resultSet) error {
	if len(rs.Rows) > 0 {
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(toRow(rs.Columns))
		for _, c := range rs.cells() {
			tw.AppendRow(toRow(c))
		}
		tw.Render()
	}
	_, err := fmt.Fprintf(w, "(%d rows)\n", len(rs.Rows))
	return err
}

func toRow(values []string) table.Row {
	row := make(table.Row, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

// renderJSON writes rows as an array of objects. Byte slices are written as
// text rather than base64.
func renderJSON(w io.Writer, rows []map[string]any) error {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = make(map[string]any, len(row))
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			out[i][k] = v
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func renderCSV(w io.Writer, rs resultSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rs.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(rs.cells()); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func renderMarkdown(w io.Writer, rs resultSet) error {
	if len(rs.Rows) > 0 {
		line := func(values []string) {
			escaped := make([]string, len(values))
			for i, v := range values {
				escaped[i] = strings.ReplaceAll(strings.ReplaceAll(v, "|", `\|`), "\n", " ")
			}
			_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(escaped, " | "))
		}
		line(rs.Columns)
		_, _ = fmt.Fprintf(w, "|%s\n", strings.Repeat(" --- |", len(rs.Columns)))
		for _, c := range rs.cells() {
			line(c)
		}
		_, _ = fmt.Fprintln(w)
	}
	_, err := fmt.Fprintf(w, "(%d rows)\n", len(rs.Rows))
	return err
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// renderTables lists the tables of an inventory.
func renderTables(w io.Writer, inv *adapter.Inventory, format string) error {
	rs := resultSet{Columns: []string{"schema", "name", "columns"}, Rows: []map[string]any{}}
	for _, t := range inv.Tables {
		rs.Rows = append(rs.Rows, map[string]any{"schema": t.Schema, "name": t.Name, "columns": len(t.Columns)})
	}
	return renderResults(w, rs, format)
}

type columnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable string `json:"nullable"`
	PK       bool   `json:"pk"`
}

type schemaOutput struct {
	Name    string       `json:"name"`
	Columns []columnInfo `json:"columns"`
}

// renderTableSchema shows the columns of one live table.
func renderTableSchema(w io.Writer, inv *adapter.Inventory, tableName, format string) error {
	t, ok := inv.Table(tableName)
	if !ok {
		return fmt.Errorf("table '%s' not found", tableName)
	}

	out := schemaOutput{Name: t.Name, Columns: make([]columnInfo, len(t.Columns))}
	for i, c := range t.Columns {
		nullable := "NO"
		if c.Nullable {
			nullable = "YES"
		}
		out.Columns[i] = columnInfo{Name: c.Name, Type: c.Type, Nullable: nullable, PK: c.PrimaryKey}
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	rs := resultSet{Columns: []string{"column", "type", "nullable", "key"}}
	for _, c := range out.Columns {
		key := ""
		if c.PK {
			key = "PK"
		}
		rs.Rows = append(rs.Rows, map[string]any{"column": c.Name, "type": c.Type, "nullable": c.Nullable, "key": key})
	}
	_, _ = fmt.Fprintf(w, "Table: %s\n", t.Name)
	return renderResults(w, rs, format)
}
