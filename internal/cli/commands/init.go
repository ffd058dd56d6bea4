package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/kjrjay/vegabase/internal/cli/output"
	sharedcfg "github.com/kjrjay/vegabase/internal/config"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Force   bool
	Example bool
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	opts := &InitOptions{}

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new vegabase project",
		Long: `Initialize a new vegabase project with a configuration file and a
declared schema.

This creates:
  - vegabase.yaml with a SQLite target and a sample prod environment
  - schema.yaml declaring a users table
  - .gitignore for the state directory and database files

Use --example for a three-table schema and a seed.sql file with sample rows.`,
		Example: `  # Initialize in current directory
  vegabase init

  # Initialize a new directory with the example schema
  vegabase init my-project --example

  # Overwrite existing files
  vegabase init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
			return runInit(r, dir, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&opts.Example, "example", false, "Create the example project with a multi-table schema")

	return cmd
}

func runInit(r *output.Renderer, dir string, opts *InitOptions) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if existing := sharedcfg.FindConfigFile(dir); existing != "" && !opts.Force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", filepath.Base(existing))
	}

	name := "minimal"
	if opts.Example {
		name = "example"
	}
	if !slices.Contains(templateNames(), name) {
		return fmt.Errorf("template %q not found", name)
	}

	files, err := copyTemplate(name, dir, opts.Force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(struct {
			Directory string   `json:"directory"`
			Template  string   `json:"template"`
			Files     []string `json:"files"`
		}{dir, name, files})
	}

	r.Header(2, "Created")
	for _, f := range files {
		r.Println(r.Success("  + " + f))
	}
	r.Println("")
	r.Println(r.Success("vegabase project initialized!"))
	r.Println("")
	r.Println("Next steps:")
	r.Println("  vegabase db plan       Show the tables the target is missing")
	r.Println("  vegabase db apply      Create them")
	if opts.Example {
		r.Println("  vegabase query --input seed.sql")
	}
	r.Println("  vegabase query tables  List the live tables")

	return nil
}
