package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kjrjay/vegabase/internal/cli/config"
	"github.com/kjrjay/vegabase/internal/cli/output"
	"github.com/kjrjay/vegabase/internal/state"
	"github.com/kjrjay/vegabase/pkg/db"
	"github.com/kjrjay/vegabase/pkg/hook"
	"github.com/kjrjay/vegabase/pkg/schema"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	DB       *db.Database
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext connected to the configured target.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command, hooks ...any) (*CommandContext, func(), error) {
	cc := NewCommandContextWithoutDB(cmd)

	database, err := openTarget(cmd.Context(), cc.Cfg, cc.Logger, hooks...)
	if err != nil {
		return nil, nil, err
	}
	cc.DB = database

	cleanup := func() {
		_ = database.Close()
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutDB creates a CommandContext without a database.
// Useful for commands that only read local state.
func NewCommandContextWithoutDB(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// getConfig returns the loaded configuration, or defaults when the root
// command did not load one (commands executed directly in tests).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		SchemaFile:   config.DefaultSchemaFile,
		StatePath:    config.DefaultStateFile,
		Environment:  config.DefaultEnv,
		OutputFormat: config.DefaultOutput,
		Target:       &config.TargetConfig{Type: config.DefaultTargetType},
	}
}

// openTarget connects to the configured target. Every statement passes
// through the logging hook ahead of any extra hooks.
func openTarget(ctx context.Context, cfg *config.Config, logger *slog.Logger, hooks ...any) (*db.Database, error) {
	all := append([]any{&hook.Logging{Logger: logger, Prefix: "[sql]", Level: slog.LevelDebug, LogSQL: true}}, hooks...)

	database, err := db.Open(ctx, cfg.Target.AdapterConfig(),
		db.WithLogger(logger),
		db.WithHooks(all...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Target, err)
	}
	logger.Debug("connected", slog.String("target", cfg.Target.String()))
	return database, nil
}

// openState opens the apply history store.
func (cc *CommandContext) openState(ctx context.Context) (*state.Store, error) {
	return state.Open(ctx, cc.Cfg.StatePath, cc.Logger)
}

// loadSchema reads the declared schema from the configured schema file.
func (cc *CommandContext) loadSchema() (*schema.Schema, error) {
	return loadSchemaFile(cc.Cfg, cc.Cfg.SchemaFile)
}

func loadSchemaFile(cfg *config.Config, path string) (*schema.Schema, error) {
	check := *cfg
	check.SchemaFile = path
	if err := check.ValidateSchemaFile(); err != nil {
		return nil, err
	}
	return schema.LoadFile(path)
}
