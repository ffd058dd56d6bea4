package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/kjrjay/vegabase/pkg/adapter"
	"github.com/kjrjay/vegabase/pkg/db"
)

const (
	replPrompt         = "vegabase> "
	replContinuePrompt = "     ...> "
)

// replSession holds the state of one interactive query session.
type replSession struct {
	db      *db.Database
	format  string
	out     io.Writer
	errOut  io.Writer
	pending strings.Builder
}

type dotCommand struct {
	usage string
	help  string
	run   func(ctx context.Context, s *replSession, args []string) (quit bool)
}

var dotCommands = map[string]dotCommand{
	".tables": {".tables", "List the tables of the target", func(ctx context.Context, s *replSession, _ []string) bool {
		s.report(withInventory(ctx, s.db, func(inv *adapter.Inventory) error {
			return renderTables(s.out, inv, s.format)
		}))
		return false
	}},
	".schema": {".schema <name>", "Show the columns of a table", func(ctx context.Context, s *replSession, args []string) bool {
		if len(args) == 0 {
			_, _ = fmt.Fprintln(s.errOut, "Usage: .schema <table>")
			return false
		}
		s.report(withInventory(ctx, s.db, func(inv *adapter.Inventory) error {
			return renderTableSchema(s.out, inv, args[0], s.format)
		}))
		return false
	}},
	".clear": {".clear", "Clear the screen", func(_ context.Context, s *replSession, _ []string) bool {
		_, _ = fmt.Fprint(s.out, "\033[H\033[2J")
		return false
	}},
	".quit": {".quit", "Exit (also .exit or Ctrl-D)", func(context.Context, *replSession, []string) bool {
		return true
	}},
	".exit": {".exit", "", func(context.Context, *replSession, []string) bool {
		return true
	}},
}

func init() {
	dotCommands[".help"] = dotCommand{".help", "Show this help message", func(_ context.Context, s *replSession, _ []string) bool {
		s.printHelp()
		return false
	}}
}

func runQueryREPL(cmd *cobra.Command, cc *CommandContext, opts *QueryOptions) error {
	ctx := cmd.Context()
	s := &replSession{db: cc.DB, format: opts.Format, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     filepath.Join(filepath.Dir(cc.Cfg.StatePath), "query_history"),
		AutoComplete:    newTableCompleter(ctx, cc.DB),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(s.out, "vegabase query (target: %s)\nEnd statements with ';'. Type .help for commands.\n\n", cc.Cfg.Target)

	for {
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			s.pending.Reset()
			rl.SetPrompt(replPrompt)
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("failed to read input: %w", err)
		}

		quit, waiting := s.feed(ctx, line)
		if quit {
			return nil
		}
		if waiting {
			rl.SetPrompt(replContinuePrompt)
		} else {
			rl.SetPrompt(replPrompt)
		}
	}
}

// feed consumes one input line. It reports whether the session should end
// and whether a statement is still waiting for its terminating semicolon.
func (s *replSession) feed(ctx context.Context, line string) (quit, waiting bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, s.pending.Len() > 0
	}

	if s.pending.Len() == 0 && strings.HasPrefix(line, ".") {
		fields := strings.Fields(line)
		dc, ok := dotCommands[strings.ToLower(fields[0])]
		if !ok {
			_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s (type .help for commands)\n", fields[0])
			return false, false
		}
		return dc.run(ctx, s, fields[1:]), false
	}

	if s.pending.Len() > 0 {
		s.pending.WriteByte(' ')
	}
	s.pending.WriteString(line)
	if !strings.HasSuffix(line, ";") {
		return false, true
	}

	query := s.pending.String()
	s.pending.Reset()
	s.report(executeAndRender(ctx, s.out, s.db, query, s.format))
	_, _ = fmt.Fprintln(s.out)
	return false, false
}

func (s *replSession) report(err error) {
	if err != nil {
		_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
	}
}

func (s *replSession) printHelp() {
	names := make([]string, 0, len(dotCommands))
	for name, dc := range dotCommands {
		if dc.help != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	_, _ = fmt.Fprintln(s.out, "Commands:")
	for _, name := range names {
		dc := dotCommands[name]
		_, _ = fmt.Fprintf(s.out, "  %-16s %s\n", dc.usage, dc.help)
	}
	_, _ = fmt.Fprintln(s.out, "\nStatements may span lines and run when a line ends with ';'.")
}

// newTableCompleter completes dot-commands and table names. Introspection
// failures leave only the dot-commands.
func newTableCompleter(ctx context.Context, database *db.Database) *readline.PrefixCompleter {
	var tables []readline.PrefixCompleterInterface
	_ = withInventory(ctx, database, func(inv *adapter.Inventory) error {
		for _, name := range inv.TableNames() {
			tables = append(tables, readline.PcItem(name))
		}
		return nil
	})

	items := append([]readline.PrefixCompleterInterface{}, tables...)
	for name := range dotCommands {
		if name == ".schema" {
			items = append(items, readline.PcItem(name, tables...))
		} else {
			items = append(items, readline.PcItem(name))
		}
	}
	return readline.NewPrefixCompleter(items...)
}
