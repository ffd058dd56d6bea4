// Package config provides configuration management for the vegabase CLI.
//
// This package extends the shared target configuration from internal/config
// with CLI-specific fields. The shared TargetConfig is re-exported here via
// a type alias for convenience.
package config

import (
	sharedcfg "github.com/kjrjay/vegabase/internal/config"
)

// TargetConfig is an alias for the shared target configuration.
type TargetConfig = sharedcfg.TargetConfig

// Config holds all CLI configuration options.
type Config struct {
	SchemaFile   string               `koanf:"schema_file"`
	StatePath    string               `koanf:"state_path"`
	Environment  string               `koanf:"environment"`
	LogLevel     string               `koanf:"log_level"`
	Verbose      bool                 `koanf:"verbose"`
	OutputFormat string               `koanf:"output"`
	Target       *TargetConfig        `koanf:"target"`
	Environments map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot is the directory relative paths were resolved against.
	ProjectRoot string `koanf:"-"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	SchemaFile string        `koanf:"schema_file"`
	Target     *TargetConfig `koanf:"target"`
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultSchemaFile = sharedcfg.DefaultSchemaFile
	DefaultStateFile  = sharedcfg.DefaultStatePath
	DefaultTargetType = sharedcfg.DefaultTargetType
	DefaultEnv        = "dev"
	DefaultLogLevel   = "warn"
	DefaultOutput     = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)
