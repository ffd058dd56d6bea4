package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
)

// OutputModes lists the accepted values of the output setting.
var OutputModes = []string{"auto", "text", "markdown", "json"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.SchemaFile == "" {
		return fmt.Errorf("schema_file is required")
	}
	if c.OutputFormat != "" && !slices.Contains(OutputModes, c.OutputFormat) {
		return fmt.Errorf("invalid output %q: must be one of %s", c.OutputFormat, strings.Join(OutputModes, ", "))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ValidateSchemaFile checks that the declared schema file exists.
// Only commands that read the schema call it, so help and query work without one.
func (c *Config) ValidateSchemaFile() error {
	if _, err := os.Stat(c.SchemaFile); os.IsNotExist(err) {
		return fmt.Errorf("schema file does not exist: %s\nHint: Create it or use --schema-file to specify a different path", c.SchemaFile)
	}
	return nil
}

// ParseLogLevel converts a level name (debug, info, warn, error) to a slog level.
// An empty name means the default level.
func ParseLogLevel(name string) (slog.Level, error) {
	if name == "" {
		name = DefaultLogLevel
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", name, err)
	}
	return level, nil
}

// Level returns the effective log level. Verbose lowers it to debug.
func (c *Config) Level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return level
}
