package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kjrjay/vegabase/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name   string
		config adapter.Config
		dsn    string
		memory bool
	}{
		{
			name:   "empty path is memory",
			config: adapter.Config{},
			dsn:    ":memory:",
			memory: true,
		},
		{
			name:   "explicit memory",
			config: adapter.Config{Path: ":memory:"},
			dsn:    ":memory:",
			memory: true,
		},
		{
			name:   "file path",
			config: adapter.Config{Path: "app.db"},
			dsn:    "app.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		},
		{
			name:   "journal mode option",
			config: adapter.Config{Path: "file:app.db?mode=rwc", Options: map[string]string{"journal_mode": "WAL"}},
			dsn:    "file:app.db?mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn, memory := buildDSN(tt.config)
			assert.Equal(t, tt.dsn, dsn)
			assert.Equal(t, tt.memory, memory)
		})
	}
}

func TestAdapter_Connect(t *testing.T) {
	tests := []struct {
		name      string
		setupPath func(t *testing.T) string
		verify    func(t *testing.T, path string)
	}{
		{
			name: "in-memory",
			setupPath: func(_ *testing.T) string {
				return ":memory:"
			},
		},
		{
			name: "file-based",
			setupPath: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "test.db")
			},
			verify: func(t *testing.T, path string) {
				_, err := os.Stat(path)
				assert.False(t, os.IsNotExist(err), "database file was not created")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			adp := New(nil)

			dbPath := tt.setupPath(t)
			require.NoError(t, adp.Connect(ctx, adapter.Config{Path: dbPath}))
			defer func() { _ = adp.Close() }()
			require.True(t, adp.IsConnected())

			_, err := adp.Handle().ExecContext(ctx, "CREATE TABLE t (id INTEGER)")
			require.NoError(t, err)

			if tt.verify != nil {
				tt.verify(t, dbPath)
			}
		})
	}
}

func TestAdapter_Introspect(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)
	require.NoError(t, adp.Connect(ctx, adapter.Config{}))
	defer func() { _ = adp.Close() }()

	db := adp.Handle()
	_, err := db.ExecContext(ctx, `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE TABLE "Posts" (id INTEGER, body BLOB)`)
	require.NoError(t, err)

	inv, err := adp.Introspect(ctx, db)
	require.NoError(t, err)

	assert.Equal(t, []string{"Posts", "users"}, inv.TableNames())

	users, ok := inv.Table("USERS")
	require.True(t, ok, "sqlite identifiers compare case-insensitively")
	require.Len(t, users.Columns, 3)

	tests := []struct {
		column     string
		typ        string
		nullable   bool
		primaryKey bool
		position   int
	}{
		{"id", "INTEGER", false, true, 1},
		{"name", "TEXT", false, false, 2},
		{"email", "TEXT", true, false, 3},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			col, ok := users.Column(tt.column, inv.FoldCase)
			require.True(t, ok)
			assert.Equal(t, tt.typ, col.Type)
			assert.Equal(t, tt.nullable, col.Nullable)
			assert.Equal(t, tt.primaryKey, col.PrimaryKey)
			assert.Equal(t, tt.position, col.Position)
		})
	}
}

func TestAdapter_IntrospectEmpty(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)
	require.NoError(t, adp.Connect(ctx, adapter.Config{}))
	defer func() { _ = adp.Close() }()

	inv, err := adp.Introspect(ctx, adp.Handle())
	require.NoError(t, err)
	assert.Empty(t, inv.Tables)
}

func TestDialect_DDLRoundTrip(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)
	require.NoError(t, adp.Connect(ctx, adapter.Config{}))
	defer func() { _ = adp.Close() }()

	d := adp.Dialect()
	db := adp.Handle()

	_, err := db.ExecContext(ctx, d.CreateTableSQL("users", []adapter.ColumnDef{
		{Name: "id", Type: "integer", PrimaryKey: true},
		{Name: "name", Type: "string"},
	}))
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, d.AddColumnSQL("users", adapter.ColumnDef{Name: "score", Type: "float"}))
	require.NoError(t, err)

	inv, err := adp.Introspect(ctx, db)
	require.NoError(t, err)
	users, ok := inv.Table("users")
	require.True(t, ok)
	score, ok := users.Column("score", true)
	require.True(t, ok)
	assert.Equal(t, "REAL", score.Type)
	assert.True(t, score.Nullable)
}

func TestRegistered(t *testing.T) {
	assert.True(t, adapter.IsRegistered("sqlite"))

	adp, err := adapter.ForDriver(DriverName, nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", adp.Dialect().Name)
}
