package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kjrjay/vegabase/pkg/adapter"
	"github.com/kjrjay/vegabase/pkg/db"
	"github.com/kjrjay/vegabase/pkg/hook"
	"github.com/kjrjay/vegabase/pkg/record"
)

// resultRecord binds ad-hoc statements. Rows are kept as returned.
var resultRecord = record.New("Result")

// rowsStatement matches statements that produce a result set.
var rowsStatement = regexp.MustCompile(`(?is)^\s*(select|with|values|pragma|show|explain|describe|table)\b|\breturning\b`)

// columnsKey carries a *[]string that receives the result columns.
type columnsKey struct{}

// captureColumns reports the select-order columns of a typed execution to
// the sink stored in the caller's context, if any.
var captureColumns = hook.Funcs{
	After: func(ctx context.Context, qc *hook.QueryContext, rows []hook.Row) ([]hook.Row, error) {
		if sink, ok := ctx.Value(columnsKey{}).(*[]string); ok {
			*sink = slices.Clone(qc.Columns)
		}
		return rows, nil
	},
}

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	Input  string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run SQL against the target database",
		Long: `Run SQL against the configured target database.

Statements go through the same hook chain as application queries, so
--verbose logs each statement with its duration and row count.

When invoked without arguments on a terminal, enters interactive REPL mode.`,
		Example: `  # Execute SQL directly
  vegabase query "SELECT * FROM users"

  # List tables and show a table's columns
  vegabase query tables
  vegabase query schema users

  # Output as JSON
  vegabase query "SELECT * FROM users" --format json

  # Interactive mode
  vegabase query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv, md")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "csv", "md"}, cobra.ShellCompDirectiveNoFileComp
	})

	cmd.AddCommand(newQueryTablesCommand(opts))
	cmd.AddCommand(newQuerySchemaCommand(opts))

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cc, cleanup, err := NewCommandContext(cmd, captureColumns)
	if err != nil {
		return err
	}
	defer cleanup()

	var sqlQuery string
	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !isTerminal(os.Stdin):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	default:
		return runQueryREPL(cmd, cc, opts)
	}

	return executeAndRender(cmd.Context(), cmd.OutOrStdout(), cc.DB, sqlQuery, opts.Format)
}

// executeStatement runs one ad-hoc statement. Statements that return rows
// come back as a result set; others report the affected row count.
func executeStatement(ctx context.Context, database *db.Database, sqlQuery string) (resultSet, int64, error) {
	sqlQuery = strings.TrimSuffix(strings.TrimSpace(sqlQuery), ";")

	var rs resultSet
	var affected int64
	err := database.Connection(ctx, func(c *db.Conn) error {
		if !rowsStatement.MatchString(sqlQuery) {
			n, err := c.Execute(ctx, db.SQL(sqlQuery))
			affected = n
			return err
		}

		var cols []string
		recs, err := c.Any(context.WithValue(ctx, columnsKey{}, &cols), db.Query(resultRecord, sqlQuery), db.SkipValidation())
		if err != nil {
			return err
		}
		rs.Columns = cols
		rs.Rows = make([]map[string]any, len(recs))
		for i, rec := range recs {
			rs.Rows[i] = rec.Map()
		}
		if rs.Columns == nil && len(recs) > 0 {
			rs.Columns = recs[0].Fields()
		}
		return nil
	})
	return rs, affected, err
}

func executeAndRender(ctx context.Context, w io.Writer, database *db.Database, sqlQuery, format string) error {
	rs, affected, err := executeStatement(ctx, database, sqlQuery)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if rs.Columns == nil && rs.Rows == nil {
		_, _ = fmt.Fprintf(w, "OK (%d rows affected)\n", affected)
		return nil
	}
	return renderResults(w, rs, format)
}

// newQueryTablesCommand creates the tables subcommand.
func newQueryTablesCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables of the target database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return withInventory(cmd.Context(), cc.DB, func(inv *adapter.Inventory) error {
				return renderTables(cmd.OutOrStdout(), inv, opts.Format)
			})
		},
	}
}

// newQuerySchemaCommand creates the schema subcommand.
func newQuerySchemaCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <table>",
		Short: "Show the live columns of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return withInventory(cmd.Context(), cc.DB, func(inv *adapter.Inventory) error {
				return renderTableSchema(cmd.OutOrStdout(), inv, args[0], opts.Format)
			})
		},
	}
}

// withInventory introspects the target and passes the live tables to fn.
func withInventory(ctx context.Context, database *db.Database, fn func(*adapter.Inventory) error) error {
	return database.Connection(ctx, func(c *db.Conn) error {
		inv, err := c.Introspect(ctx)
		if err != nil {
			return fmt.Errorf("failed to introspect database: %w", err)
		}
		return fn(inv)
	})
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}
