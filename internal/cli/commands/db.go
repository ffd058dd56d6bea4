package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kjrjay/vegabase/internal/cli/output"
	"github.com/kjrjay/vegabase/internal/state"
	"github.com/kjrjay/vegabase/pkg/db"
	"github.com/kjrjay/vegabase/pkg/schema"
)

// noChangesMessage is printed when the database already matches the schema.
const noChangesMessage = "No changes. Database matches schema."

// PlanOptions holds options for the db plan command.
type PlanOptions struct {
	Watch bool
}

// HistoryOptions holds options for the db history command.
type HistoryOptions struct {
	Limit int
}

// NewDBCommand creates the db command group.
func NewDBCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Plan and apply the declared schema",
		Long: `Compare the declared schema file against the target database and
apply the additive difference: missing tables are created and missing
columns are added. Nothing is ever dropped or altered.`,
	}

	cmd.AddCommand(newPlanCommand())
	cmd.AddCommand(newApplyCommand())
	cmd.AddCommand(newCreateAllCommand())
	cmd.AddCommand(newHistoryCommand())

	return cmd
}

func newPlanCommand() *cobra.Command {
	opts := &PlanOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the changes apply would make",
		Example: `  vegabase db plan
  vegabase db plan --watch
  vegabase db plan -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-plan whenever the schema file changes")
	return cmd
}

func runPlan(cmd *cobra.Command, opts *PlanOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	err = planAndRender(ctx, cc, cc.Cfg.SchemaFile)
	if !opts.Watch {
		return err
	}
	if err != nil {
		cc.Renderer.Errorf("Error: %v", err)
	}
	return watchPlan(ctx, cc)
}

// planAndRender plans the schema at path against the target and prints it.
func planAndRender(ctx context.Context, cc *CommandContext, path string) error {
	declared, err := loadSchemaFile(cc.Cfg, path)
	if err != nil {
		return err
	}

	changes, err := schema.PlanAsync(ctx, cc.DB, declared).Await(ctx)
	if err != nil {
		return fmt.Errorf("failed to plan: %w", err)
	}
	return renderPlan(cc.Renderer, "Plan", changes)
}

func newApplyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Apply the declared schema to the target",
		Long: `Plan the declared schema against the target and apply each change in
its own transaction. Every run is recorded in the state database; see
'vegabase db history'.`,
		RunE: runApply,
	}
}

func runApply(cmd *cobra.Command, _ []string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	declared, err := cc.loadSchema()
	if err != nil {
		return err
	}

	store, err := cc.openState(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	run, err := store.StartRun(ctx, cc.Cfg.Target.String())
	if err != nil {
		return err
	}

	var applied []schema.Change
	applyErr := cc.DB.Connection(ctx, func(c *db.Conn) error {
		var err error
		applied, err = schema.Apply(ctx, c, declared)
		return err
	})

	// The run is recorded even when ctx was canceled mid-apply.
	recordCtx := context.WithoutCancel(ctx)
	if err := store.RecordChanges(recordCtx, run.ID, applied); err != nil {
		cc.Logger.Error("failed to record applied changes", slog.String("run", run.ID), slog.Any("error", err))
	}

	status, errMsg := state.RunStatusCompleted, ""
	if applyErr != nil {
		status, errMsg = state.RunStatusFailed, applyErr.Error()
	}
	if err := store.CompleteRun(recordCtx, run.ID, status, errMsg); err != nil {
		cc.Logger.Error("failed to complete run", slog.String("run", run.ID), slog.Any("error", err))
	}

	if err := renderPlan(cc.Renderer, "Applied", applied); err != nil {
		return err
	}

	var ae *schema.ApplyError
	if errors.As(applyErr, &ae) {
		return fmt.Errorf("%w\nHint: %d change(s) were committed; re-run 'vegabase db apply' after fixing the cause", applyErr, len(ae.Applied))
	}
	return applyErr
}

func newCreateAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create-all",
		Short: "Create every declared table that does not exist",
		Long: `Issue CREATE TABLE IF NOT EXISTS for every declared table in one
transaction. Existing tables are left untouched, including missing columns.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			declared, err := cc.loadSchema()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := cc.DB.Connection(ctx, func(c *db.Conn) error {
				return schema.CreateAll(ctx, c, declared)
			}); err != nil {
				return err
			}

			cc.Renderer.Println(cc.Renderer.Success(fmt.Sprintf("Ensured %d table(s) exist.", len(declared.Tables))))
			return nil
		},
	}
}

func newHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded apply runs",
		Long: `List apply runs recorded in the state database, newest first.
With a run id, show the changes that run applied.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContextWithoutDB(cmd)
			ctx := cmd.Context()

			store, err := cc.openState(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if len(args) == 1 {
				return renderRun(ctx, cc.Renderer, store, args[0])
			}

			runs, err := store.ListRuns(ctx, opts.Limit)
			if err != nil {
				return err
			}
			return renderRuns(cc.Renderer, runs)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	return cmd
}

// changeJSON is the machine-readable form of a schema change.
type changeJSON struct {
	Type   schema.ChangeType `json:"type"`
	Table  string            `json:"table"`
	Detail string            `json:"detail,omitempty"`
	Change string            `json:"change"`
}

func toChangeJSON(changes []schema.Change) []changeJSON {
	out := make([]changeJSON, len(changes))
	for i, ch := range changes {
		out[i] = changeJSON{Type: ch.Type, Table: ch.Table, Detail: ch.Detail, Change: ch.String()}
	}
	return out
}

// renderPlan prints a list of changes under title.
func renderPlan(r *output.Renderer, title string, changes []schema.Change) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(toChangeJSON(changes))
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(2, title))
		r.Println("")
		if len(changes) == 0 {
			r.Println(noChangesMessage)
			return nil
		}
		for _, ch := range changes {
			r.Printf("- `%s`\n", ch)
		}
		return nil
	default:
		if len(changes) == 0 {
			r.Println(r.Success(noChangesMessage))
			return nil
		}
		styles := r.Styles()
		r.Println(styles.Header1.Render(fmt.Sprintf("%s (%d change(s))", title, len(changes))))
		for _, ch := range changes {
			line := "  + " + ch.String()
			if ch.Type == schema.AddColumn {
				r.Println(r.Warning(line))
			} else {
				r.Println(r.Success(line))
			}
		}
		return nil
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func renderRuns(r *output.Renderer, runs []*state.Run) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(runs)
	}
	if len(runs) == 0 {
		r.Println("No apply runs recorded.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Target", "Status", "Started", "Completed", "Changes"})
	for _, run := range runs {
		started := run.StartedAt
		t.AppendRow(table.Row{run.ID, run.Target, run.Status, formatTime(&started), formatTime(run.CompletedAt), run.Changes})
	}
	if r.EffectiveMode() == output.ModeMarkdown {
		t.RenderMarkdown()
	} else {
		t.Render()
	}
	return nil
}

func renderRun(ctx context.Context, r *output.Renderer, store *state.Store, id string) error {
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	recorded, err := store.ListChanges(ctx, id)
	if err != nil {
		return err
	}

	changes := make([]schema.Change, len(recorded))
	for i, rc := range recorded {
		changes[i] = rc.Change()
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(struct {
			*state.Run
			Applied []changeJSON `json:"applied"`
		}{run, toChangeJSON(changes)})
	}

	r.Printf("Run %s against %s: %s\n", run.ID, run.Target, run.Status)
	if run.Error != "" {
		r.Println(r.Warning("  " + run.Error))
	}
	return renderPlan(r, "Applied", changes)
}
