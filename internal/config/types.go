// Package config provides the shared target configuration for vegabase.
// It is decoupled from CLI concerns so that anything holding a project
// directory can resolve the database a project points at.
package config

import (
	"fmt"
	"maps"
	"strings"

	"github.com/kjrjay/vegabase/pkg/adapter"
)

// TargetConfig holds database target configuration.
type TargetConfig struct {
	Type string `koanf:"type"` // sqlite, duckdb, postgres, mysql

	// File-based databases (SQLite, DuckDB)
	Database string `koanf:"database"` // file path or database name

	// Network databases
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Common
	Schema string `koanf:"schema"`

	// Additional driver-specific options, appended to the DSN
	Options map[string]string `koanf:"options"`

	// Params holds adapter-specific configuration (e.g., DuckDB extensions, secrets, settings)
	Params map[string]any `koanf:"params"`
}

// DefaultSchemaForType returns the default schema for a database type.
// It asks the registered adapter's dialect; unknown types and dialects
// without a default schema fall back to "main".
func DefaultSchemaForType(dbType string) string {
	if factory, ok := adapter.Get(strings.ToLower(dbType)); ok {
		if a := factory(nil); a != nil && a.Dialect().DefaultSchema != "" {
			return a.Dialect().DefaultSchema
		}
	}
	return "main"
}

// Validate checks if the target configuration is valid.
// It uses the adapter registry to determine which adapter types are available.
func (t *TargetConfig) Validate() error {
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}

	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}

	return nil
}

// AdapterConfig converts the target into the adapter connection config.
// File-based engines receive Database as their path.
func (t *TargetConfig) AdapterConfig() adapter.Config {
	cfg := adapter.Config{
		Type:     strings.ToLower(t.Type),
		Host:     t.Host,
		Port:     t.Port,
		Database: t.Database,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  maps.Clone(t.Options),
		Params:   maps.Clone(t.Params),
	}
	if t.Host == "" {
		cfg.Path = t.Database
	}
	return cfg
}

// String describes the target without credentials.
func (t *TargetConfig) String() string {
	switch {
	case t.Host != "":
		return fmt.Sprintf("%s://%s:%d/%s", t.Type, t.Host, t.Port, t.Database)
	case t.Database != "":
		return fmt.Sprintf("%s:%s", t.Type, t.Database)
	default:
		return t.Type + ":memory"
	}
}

// ProjectConfig holds the project settings shared by every command.
type ProjectConfig struct {
	SchemaFile string        `koanf:"schema_file"`
	StatePath  string        `koanf:"state_path"`
	Target     *TargetConfig `koanf:"target"`
}
