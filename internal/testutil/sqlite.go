package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kjrjay/vegabase/pkg/adapter"
	"github.com/kjrjay/vegabase/pkg/adapters/sqlite"
)

// NewSQLite connects a SQLite adapter to a fresh database file under
// t.TempDir() and closes it when the test ends. A file is used rather than
// :memory: so the pool may hold several connections.
func NewSQLite(t testing.TB) *sqlite.Adapter {
	t.Helper()

	adp := sqlite.New(NewTestLogger(t))
	path := filepath.Join(t.TempDir(), "test.db")
	if err := adp.Connect(context.Background(), adapter.Config{Type: "sqlite", Path: path}); err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = adp.Close() })
	return adp
}

// Exec runs setup statements against the adapter's pool, failing the test
// on the first error.
func Exec(t testing.TB, adp adapter.Adapter, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		if _, err := adp.Handle().ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("setup statement failed: %v\n%s", err, stmt)
		}
	}
}
