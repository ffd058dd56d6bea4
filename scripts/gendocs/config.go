package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	cliconfig "github.com/kjrjay/vegabase/internal/cli/config"
	"github.com/kjrjay/vegabase/internal/config"
	"github.com/kjrjay/vegabase/pkg/adapter"
)

// ConfigField represents a configuration field definition.
type ConfigField struct {
	Name        string
	Type        string
	Default     string
	Description string
	Category    string // "project" or "target"
}

// getConfigSchema returns the fields of vegabase.yaml. Defaults come from
// the config packages so the reference cannot drift from the loader.
func getConfigSchema() []ConfigField {
	return []ConfigField{
		{Name: "schema_file", Type: "string", Default: cliconfig.DefaultSchemaFile, Description: "Declared schema file, relative to the project root", Category: "project"},
		{Name: "state_path", Type: "string", Default: cliconfig.DefaultStateFile, Description: "Apply history database", Category: "project"},
		{Name: "environment", Type: "string", Default: cliconfig.DefaultEnv, Description: "Environment whose target overrides the base target", Category: "project"},
		{Name: "log_level", Type: "string", Default: cliconfig.DefaultLogLevel, Description: "debug, info, warn or error", Category: "project"},
		{Name: "output", Type: "string", Default: cliconfig.DefaultOutput, Description: "auto, text, markdown or json", Category: "project"},
		{Name: "environments", Type: "map", Description: "Named overrides with their own schema_file and target", Category: "project"},

		{Name: "type", Type: "string", Default: config.DefaultTargetType, Description: "Adapter name", Category: "target"},
		{Name: "database", Type: "string", Description: "File path for sqlite and duckdb, database name otherwise; empty for in-memory", Category: "target"},
		{Name: "host", Type: "string", Description: "Server host", Category: "target"},
		{Name: "port", Type: "int", Description: "Server port; defaults per adapter", Category: "target"},
		{Name: "user", Type: "string", Description: "Username", Category: "target"},
		{Name: "password", Type: "string", Description: "Password; `${VAR}` is expanded", Category: "target"},
		{Name: "schema", Type: "string", Description: "Schema to introspect and create tables in; defaults per adapter", Category: "target"},
		{Name: "options", Type: "map[string]string", Description: "Driver connection options", Category: "target"},
		{Name: "params", Type: "map[string]any", Description: "Adapter-specific settings (DuckDB extensions and settings)", Category: "target"},
	}
}

// generateConfigDocs generates the configuration reference page.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating config docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()
	w.Frontmatter("Configuration", "vegabase.yaml reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph(fmt.Sprintf("vegabase reads %s from the project root. The project root is the nearest directory at or above the working directory that holds one.", InlineCode(config.ConfigFileName)))

	fields := getConfigSchema()
	for _, section := range []struct {
		category string
		title    string
	}{
		{"project", "Project Settings"},
		{"target", "Target"},
	} {
		w.Header(2, section.title)
		var rows [][]string
		for _, f := range fields {
			if f.Category != section.category {
				continue
			}
			defVal := "-"
			if f.Default != "" {
				defVal = InlineCode(f.Default)
			}
			rows = append(rows, []string{InlineCode(f.Name), f.Type, defVal, f.Description})
		}
		w.Table([]string{"Field", "Type", "Default", "Description"}, rows)
	}

	w.Header(2, "Adapters")
	var rows [][]string
	for _, name := range adapter.ListAdapters() {
		t := &config.TargetConfig{Type: name, Host: "localhost"}
		config.ApplyTargetDefaults(t)
		port := "-"
		if t.Port != 0 {
			port = strconv.Itoa(t.Port)
		}
		rows = append(rows, []string{InlineCode(name), InlineCode(config.DefaultSchemaForType(name)), port})
	}
	w.Table([]string{"Type", "Default schema", "Default port"}, rows)

	w.Header(2, "Full Configuration Example")
	w.CodeBlock("yaml", `schema_file: schema.yaml
state_path: .vegabase/state.db
environment: dev

target:
  type: sqlite
  database: app.db

environments:
  analytics:
    target:
      type: duckdb
      database: warehouse.duckdb
      params:
        extensions:
          - httpfs
  prod:
    target:
      type: postgres
      host: db.example.com
      database: app
      user: ${PGUSER}
      password: ${PGPASSWORD}`)

	w.Header(2, "Precedence")
	w.Paragraph("Flags override environment variables, which override vegabase.yaml, which overrides the built-in defaults. `--target <name>` selects an entry of `environments`.")

	return os.WriteFile(filepath.Join(outDir, "configuration.md"), w.Bytes(), 0600)
}
