// Package main provides tests for the vegabase CLI.
package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kjrjay/vegabase/internal/cli"
	"github.com/kjrjay/vegabase/internal/cli/config"
	"github.com/kjrjay/vegabase/internal/cli/testutil"
)

// run executes the root command with args and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	config.ResetConfig()
	cmd := cli.NewRootCmd()
	out := new(bytes.Buffer)
	errOut := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersionCommand(t *testing.T) {
	output, _, err := run(t, "version")
	if err != nil {
		t.Errorf("version command error = %v", err)
	}
	if !strings.Contains(output, "vegabase "+cli.Version) {
		t.Errorf("version output should contain the version, got: %s", output)
	}
}

func TestHelpCommand(t *testing.T) {
	output, _, err := run(t, "--help")
	if err != nil {
		t.Errorf("help command error = %v", err)
	}

	for _, expected := range []string{"db", "query", "completion", "version"} {
		if !strings.Contains(output, expected) {
			t.Errorf("help output should contain '%s', got: %s", expected, output)
		}
	}
}

func TestDBApplyCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	cfgPath := filepath.Join(dir, "vegabase.yaml")

	output, _, err := run(t, "db", "apply", "--config", cfgPath, "-o", "json")
	if err != nil {
		t.Fatalf("db apply error = %v", err)
	}

	var applied []map[string]any
	if err := json.Unmarshal([]byte(output), &applied); err != nil {
		t.Fatalf("db apply output is not JSON: %v\n%s", err, output)
	}
	if len(applied) != 2 {
		t.Errorf("expected 2 applied changes, got %d", len(applied))
	}

	output, _, err = run(t, "db", "plan", "--config", cfgPath)
	if err != nil {
		t.Fatalf("db plan error = %v", err)
	}
	if !strings.Contains(output, "No changes") {
		t.Errorf("plan after apply should report no changes, got: %s", output)
	}
}

func TestDBPlanFlagOverrides(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	other := filepath.Join(t.TempDir(), "other.db")

	_, _, err := run(t, "db", "apply",
		"--project-dir", dir,
		"--database", other,
		"--state", filepath.Join(t.TempDir(), "state.db"),
	)
	if err != nil {
		t.Fatalf("db apply error = %v", err)
	}

	if _, err := os.Stat(other); err != nil {
		t.Errorf("--database should select the target file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "app.db")); err == nil {
		t.Error("configured database should not be touched when --database is set")
	}
}

func TestQueryCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	cfgPath := filepath.Join(dir, "vegabase.yaml")

	if _, _, err := run(t, "db", "apply", "--config", cfgPath); err != nil {
		t.Fatalf("db apply error = %v", err)
	}
	if _, _, err := run(t, "query", "--config", cfgPath,
		"INSERT INTO users (id, name) VALUES (1, 'alice')"); err != nil {
		t.Fatalf("insert error = %v", err)
	}

	output, _, err := run(t, "query", "--config", cfgPath, "-f", "csv", "SELECT name, id FROM users")
	if err != nil {
		t.Fatalf("query error = %v", err)
	}
	if !strings.HasPrefix(output, "name,id\nalice,1\n") {
		t.Errorf("unexpected csv output: %q", output)
	}

	output, _, err = run(t, "query", "tables", "--config", cfgPath)
	if err != nil {
		t.Fatalf("query tables error = %v", err)
	}
	for _, table := range []string{"users", "posts"} {
		if !strings.Contains(output, table) {
			t.Errorf("tables output should contain %s, got: %s", table, output)
		}
	}
}

func TestInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "vegabase.yaml")
	testutil.WriteFile(t, cfgPath, "target:\n  type: oracle\n")

	_, _, err := run(t, "db", "plan", "--config", cfgPath)
	if err == nil {
		t.Fatal("unknown target type should fail")
	}
	if !strings.Contains(err.Error(), "oracle") {
		t.Errorf("error should name the target type, got: %v", err)
	}
}

func TestCompletionCommand(t *testing.T) {
	shells := []string{"bash", "zsh", "fish", "powershell"}

	for _, shell := range shells {
		t.Run(shell, func(t *testing.T) {
			if _, _, err := run(t, "completion", shell); err != nil {
				t.Errorf("completion %s command error = %v", shell, err)
			}
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	if _, _, err := run(t, "unknown-command"); err == nil {
		t.Error("unknown command should return an error")
	}
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
