package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kjrjay/vegabase/internal/cli/config"
	"github.com/kjrjay/vegabase/internal/cli/output"
	"github.com/kjrjay/vegabase/internal/state"
	"github.com/kjrjay/vegabase/pkg/adapter"
	"github.com/kjrjay/vegabase/pkg/db"
	"github.com/kjrjay/vegabase/pkg/schema"
)

// Check status values.
const (
	statusPass = "pass"
	statusWarn = "warn"
	statusFail = "error"
	statusSkip = "skip"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format string // Output format: text, markdown, json
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the project configuration, schema, target and state",
		Long: `Check that a vegabase project is ready to plan and apply.

The doctor command reports:
- Whether a config file was found
- Whether the schema file parses and uses portable column types
- Whether the target is reachable and in sync with the schema
- Whether the state database opens and the last apply succeeded

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Run health check
  vegabase doctor

  # Output as JSON
  vegabase doctor --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, markdown, json")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         ProjectSummary `json:"summary"`
	HealthChecks    []HealthCheck  `json:"health_checks"`
	Score           int            `json:"score"`
	Recommendations []string       `json:"recommendations"`
	IssueCount      int            `json:"issue_count"`
}

// ProjectSummary contains project-level facts.
type ProjectSummary struct {
	ConfigFile     string `json:"config_file,omitempty"`
	SchemaFile     string `json:"schema_file"`
	Target         string `json:"target"`
	Tables         int    `json:"tables"`
	Columns        int    `json:"columns"`
	PendingChanges int    `json:"pending_changes"`
	Runs           int    `json:"runs"`
}

// HealthCheck represents a single check result.
type HealthCheck struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Group   string   `json:"group"`
	Status  string   `json:"status"`
	Details []string `json:"details,omitempty"`
}

func (c *HealthCheck) issues() int {
	if c.Status != statusWarn && c.Status != statusFail {
		return 0
	}
	if len(c.Details) == 0 {
		return 1
	}
	return len(c.Details)
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cc := NewCommandContextWithoutDB(cmd)
	r := cc.Renderer
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	out := diagnose(cmd.Context(), cc)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, out)
	default:
		return renderDoctorText(r, out)
	}
}

// diagnose runs every check. Checks that depend on a failed check are skipped.
func diagnose(ctx context.Context, cc *CommandContext) *DoctorOutput {
	cfg := cc.Cfg
	summary := ProjectSummary{
		ConfigFile: config.GetConfigFileUsed(),
		SchemaFile: cfg.SchemaFile,
		Target:     cfg.Target.String(),
	}
	var checks []HealthCheck

	configCheck := HealthCheck{ID: "CF01", Name: "Config file found", Group: "config", Status: statusPass}
	if summary.ConfigFile == "" {
		configCheck.Status = statusWarn
		configCheck.Details = []string{"no vegabase.yaml found; using defaults"}
	}
	checks = append(checks, configCheck)

	declared, err := loadSchemaFile(cfg, cfg.SchemaFile)
	schemaCheck := HealthCheck{ID: "SC01", Name: "Schema file is valid", Group: "schema", Status: statusPass}
	if err != nil {
		schemaCheck.Status = statusFail
		schemaCheck.Details = []string{err.Error()}
	} else {
		summary.Tables = len(declared.Tables)
		for _, t := range declared.Tables {
			summary.Columns += len(t.Columns)
		}
	}
	checks = append(checks, schemaCheck)

	database, err := openTarget(ctx, cfg, cc.Logger)
	targetCheck := HealthCheck{ID: "TG01", Name: "Target is reachable", Group: "target", Status: statusPass}
	var live *adapter.Inventory
	if err == nil {
		defer func() { _ = database.Close() }()
		err = database.Connection(ctx, func(c *db.Conn) error {
			var ierr error
			live, ierr = c.Introspect(ctx)
			return ierr
		})
	}
	if err != nil {
		targetCheck.Status = statusFail
		targetCheck.Details = []string{err.Error()}
	}
	checks = append(checks, targetCheck)

	checks = append(checks, portableTypesCheck(declared, database))
	syncCheck := syncStatusCheck(ctx, declared, database, live)
	if syncCheck.Status == statusWarn {
		summary.PendingChanges = len(syncCheck.Details)
	}
	checks = append(checks, syncCheck)

	stateChecks, runs := stateHealth(ctx, cfg.StatePath, cc.Logger)
	summary.Runs = runs
	checks = append(checks, stateChecks...)

	issues := 0
	for i := range checks {
		issues += checks[i].issues()
	}

	return &DoctorOutput{
		Summary:         summary,
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issues,
	}
}

// sqlStandardTypes are parameterised ANSI types every supported engine accepts.
var sqlStandardTypes = map[string]bool{"varchar": true, "char": true, "decimal": true, "numeric": true}

// portableTypesCheck warns about declared column types the target dialect
// passes through verbatim, since they may not exist on other engines.
func portableTypesCheck(declared *schema.Schema, database *db.Database) HealthCheck {
	check := HealthCheck{ID: "SC02", Name: "Column types are portable", Group: "schema", Status: statusPass}
	if declared == nil || database == nil {
		check.Status = statusSkip
		return check
	}

	d := database.Engine().Dialect()
	for _, t := range declared.Tables {
		for _, c := range t.Columns {
			base := strings.ToLower(strings.TrimSpace(c.Type))
			if i := strings.IndexByte(base, '('); i >= 0 {
				base = strings.TrimSpace(base[:i])
			}
			if base == "" || sqlStandardTypes[base] {
				continue
			}
			if _, ok := d.Types[base]; !ok {
				check.Details = append(check.Details, fmt.Sprintf("%s.%s uses engine type %q", t.Name, c.Name, c.Type))
			}
		}
	}
	if len(check.Details) > 0 {
		check.Status = statusWarn
	}
	return check
}

// syncStatusCheck plans the declared schema against the live inventory.
func syncStatusCheck(ctx context.Context, declared *schema.Schema, database *db.Database, live *adapter.Inventory) HealthCheck {
	check := HealthCheck{ID: "TG02", Name: "Target matches schema", Group: "target", Status: statusPass}
	if declared == nil || live == nil {
		check.Status = statusSkip
		return check
	}

	var changes []schema.Change
	err := database.Connection(ctx, func(c *db.Conn) error {
		var err error
		changes, err = schema.Plan(ctx, c, declared)
		return err
	})
	if err != nil {
		check.Status = statusFail
		check.Details = []string{err.Error()}
		return check
	}
	for _, ch := range changes {
		check.Details = append(check.Details, ch.String())
	}
	if len(changes) > 0 {
		check.Status = statusWarn
	}
	return check
}

// stateHealth opens the apply history and inspects the latest run.
func stateHealth(ctx context.Context, path string, logger *slog.Logger) ([]HealthCheck, int) {
	openCheck := HealthCheck{ID: "ST01", Name: "State database opens", Group: "state", Status: statusPass}
	lastCheck := HealthCheck{ID: "ST02", Name: "Last apply succeeded", Group: "state", Status: statusPass}

	store, err := state.Open(ctx, path, logger)
	if err != nil {
		openCheck.Status = statusFail
		openCheck.Details = []string{err.Error()}
		lastCheck.Status = statusSkip
		return []HealthCheck{openCheck, lastCheck}, 0
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		lastCheck.Status = statusFail
		lastCheck.Details = []string{err.Error()}
		return []HealthCheck{openCheck, lastCheck}, 0
	}
	switch {
	case len(runs) == 0:
		lastCheck.Status = statusSkip
	case runs[0].Status == state.RunStatusFailed:
		lastCheck.Status = statusWarn
		lastCheck.Details = []string{fmt.Sprintf("run %s: %s", runs[0].ID, runs[0].Error)}
	case runs[0].Status == state.RunStatusRunning:
		lastCheck.Status = statusWarn
		lastCheck.Details = []string{fmt.Sprintf("run %s never completed", runs[0].ID)}
	}
	return []HealthCheck{openCheck, lastCheck}, len(runs)
}

// calculateHealthScore computes a score from 0-100. Errors cost 25 points
// per issue and warnings 10.
func calculateHealthScore(checks []HealthCheck) int {
	score := 100
	for i := range checks {
		switch checks[i].Status {
		case statusFail:
			score -= 25 * checks[i].issues()
		case statusWarn:
			score -= 10 * checks[i].issues()
		}
	}
	return max(score, 0)
}

// generateRecommendations returns one recommendation per failing check.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	for i := range checks {
		if checks[i].issues() == 0 {
			continue
		}
		if rec := getRecommendation(checks[i].ID); rec != "" {
			recommendations = append(recommendations, rec)
		}
	}
	return recommendations
}

func getRecommendation(id string) string {
	switch id {
	case "CF01":
		return "Run 'vegabase init' to create vegabase.yaml"
	case "SC01":
		return "Fix the schema file or point --schema-file at the right one"
	case "SC02":
		return "Use logical types (text, integer, timestamp, ...) for portable schemas"
	case "TG01":
		return "Check the target settings and credentials in vegabase.yaml"
	case "TG02":
		return "Run 'vegabase db apply' to create the missing tables and columns"
	case "ST01":
		return "Check that the state path is writable or set --state"
	case "ST02":
		return "Inspect the failed run with 'vegabase db history <run-id>' and re-apply"
	default:
		return ""
	}
}

func statusLabel(status string) string {
	switch status {
	case statusWarn:
		return "WARN"
	case statusFail:
		return "ERROR"
	case statusSkip:
		return "SKIP"
	default:
		return "PASS"
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("vegabase Project Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	r.Println(styles.Header2.Render("Project Summary"))
	r.Printf("   Target: %s\n", out.Summary.Target)
	r.Printf("   Schema: %s (%d tables, %d columns)\n", out.Summary.SchemaFile, out.Summary.Tables, out.Summary.Columns)
	r.Printf("   Pending changes: %d | Recorded runs: %d\n", out.Summary.PendingChanges, out.Summary.Runs)
	r.Println("")

	r.Println(styles.Header2.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		var icon string
		switch check.Status {
		case statusWarn:
			icon = styles.Warning.Render("!")
		case statusFail:
			icon = styles.Error.Render("x")
		case statusSkip:
			icon = styles.Muted.Render("-")
		default:
			icon = styles.Success.Render("✓")
		}
		r.Printf("   %s %s: %s\n", icon, check.ID, check.Name)

		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# vegabase Project Health Report")
	r.Println("")

	r.Println("## Project Summary")
	r.Println("")
	r.Printf("- **Target**: %s\n", out.Summary.Target)
	r.Printf("- **Schema file**: %s\n", out.Summary.SchemaFile)
	r.Printf("- **Tables**: %d\n", out.Summary.Tables)
	r.Printf("- **Columns**: %d\n", out.Summary.Columns)
	r.Printf("- **Pending changes**: %d\n", out.Summary.PendingChanges)
	r.Printf("- **Recorded runs**: %d\n", out.Summary.Runs)
	r.Println("")

	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}

		r.Printf("- **[%s]** %s: %s\n", statusLabel(check.Status), check.ID, check.Name)
		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}
