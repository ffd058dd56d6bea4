package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjrjay/vegabase/internal/testutil"
	"github.com/kjrjay/vegabase/pkg/schema"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := Open(context.Background(), path, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_Migrates(t *testing.T) {
	store := setupStore(t)

	version, err := store.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	store, err := Open(ctx, path, nil)
	require.NoError(t, err)
	run, err := store.StartRun(ctx, "sqlite")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
}

func TestStore_RunLifecycle(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	run, err := store.StartRun(ctx, "postgres")
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.Equal(t, "postgres", run.Target)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.True(t, run.StartedAt.After(before))
	assert.Nil(t, run.CompletedAt)
	assert.Zero(t, run.Changes)

	changes := []schema.Change{
		{Type: schema.CreateTable, Table: "posts"},
		{Type: schema.AddColumn, Table: "users", Detail: "email"},
	}
	require.NoError(t, store.RecordChanges(ctx, run.ID, changes))
	require.NoError(t, store.RecordChange(ctx, run.ID, schema.Change{Type: schema.AddColumn, Table: "users", Detail: "bio"}))
	require.NoError(t, store.CompleteRun(ctx, run.ID, RunStatusCompleted, ""))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.False(t, got.CompletedAt.Before(got.StartedAt))
	assert.Empty(t, got.Error)
	assert.Equal(t, 3, got.Changes)

	recorded, err := store.ListChanges(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, recorded, 3)
	for i, rc := range recorded {
		assert.Equal(t, i+1, rc.Seq)
		assert.Equal(t, run.ID, rc.RunID)
	}
	assert.Equal(t, "create_table: posts", recorded[0].Change().String())
	assert.Equal(t, "add_column: users.email", recorded[1].Change().String())
	assert.Equal(t, "add_column: users.bio", recorded[2].Change().String())
}

func TestStore_FailedRun(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	run, err := store.StartRun(ctx, "duckdb")
	require.NoError(t, err)
	require.NoError(t, store.CompleteRun(ctx, run.ID, RunStatusFailed, "failed to apply create_table: posts"))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "failed to apply create_table: posts", got.Error)
}

func TestStore_NotFound(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	err = store.CompleteRun(ctx, "missing", RunStatusCompleted, "")
	assert.ErrorIs(t, err, ErrRunNotFound)

	err = store.RecordChange(ctx, "missing", schema.Change{Type: schema.CreateTable, Table: "posts"})
	assert.Error(t, err, "changes require an existing run")

	changes, err := store.ListChanges(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestStore_ListRuns(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	var ids []string
	for _, target := range []string{"sqlite", "postgres", "mysql"} {
		run, err := store.StartRun(ctx, target)
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"all", 0, []string{ids[2], ids[1], ids[0]}},
		{"limited", 2, []string{ids[2], ids[1]}},
		{"beyond count", 10, []string{ids[2], ids[1], ids[0]}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := store.ListRuns(ctx, tt.limit)
			require.NoError(t, err)

			got := make([]string, len(runs))
			for i, r := range runs {
				got[i] = r.ID
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_RecordNoChanges(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	run, err := store.StartRun(ctx, "sqlite")
	require.NoError(t, err)
	require.NoError(t, store.RecordChanges(ctx, run.ID, nil))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Changes)
}
