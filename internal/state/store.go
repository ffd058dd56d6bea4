// Package state records the history of schema apply runs in a local SQLite
// database. Its tables are managed by embedded goose migrations and read
// back through the typed query runtime.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kjrjay/vegabase/pkg/adapter"
	"github.com/kjrjay/vegabase/pkg/adapters/sqlite"
	"github.com/kjrjay/vegabase/pkg/db"
	"github.com/kjrjay/vegabase/pkg/hook"
	"github.com/kjrjay/vegabase/pkg/record"
	"github.com/kjrjay/vegabase/pkg/schema"
)

// DefaultPath is the state database location relative to the project.
const DefaultPath = ".vegabase/state.db"

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// RunStatus represents the status of an apply run.
type RunStatus string

// Run status values.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one invocation of apply against a target.
type Run struct {
	ID          string     `db:"id" json:"id"`
	Target      string     `db:"target" json:"target"`
	Status      RunStatus  `db:"status" json:"status"`
	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	Error       string     `db:"error" json:"error,omitempty"`
	// Changes is the number of changes recorded for the run.
	Changes int `db:"changes" json:"changes"`
}

// RecordedChange is a schema change applied during a run.
type RecordedChange struct {
	RunID     string            `db:"run_id"`
	Seq       int               `db:"seq"`
	Type      schema.ChangeType `db:"change_type"`
	Table     string            `db:"table_name"`
	Detail    string            `db:"detail"`
	AppliedAt time.Time         `db:"applied_at"`
}

// Change returns the schema change that was applied.
func (c RecordedChange) Change() schema.Change {
	return schema.Change{Type: c.Type, Table: c.Table, Detail: c.Detail}
}

var (
	runRecord = record.New("ApplyRun",
		record.Required("id", record.String),
		record.Required("target", record.String),
		record.Required("status", record.String),
		record.Required("started_at", record.Time),
		record.Optional("completed_at", record.Time),
		record.Optional("error", record.String),
		record.Required("changes", record.Int),
	)

	changeRecord = record.New("ApplyChange",
		record.Required("run_id", record.String),
		record.Required("seq", record.Int),
		record.Required("change_type", record.String),
		record.Required("table_name", record.String),
		record.Optional("detail", record.String),
		record.Required("applied_at", record.Time),
	)
)

const runColumns = `r.id, r.target, r.status, r.started_at, r.completed_at, r.error,
	(SELECT COUNT(*) FROM apply_changes c WHERE c.run_id = r.id) AS changes`

var (
	startRunQuery = db.Query(runRecord, `INSERT INTO apply_runs (id, target, status, started_at)
	VALUES (?, ?, ?, ?)
	RETURNING id, target, status, started_at, completed_at, error, 0 AS changes`)

	getRunQuery = db.Query(runRecord, `SELECT `+runColumns+`
	FROM apply_runs r WHERE r.id = ?`)

	listRunsQuery = db.Query(runRecord, `SELECT `+runColumns+`
	FROM apply_runs r ORDER BY r.rowid DESC LIMIT ?`)

	listChangesQuery = db.Query(changeRecord, `SELECT run_id, seq, change_type, table_name, detail, applied_at
	FROM apply_changes WHERE run_id = ? ORDER BY seq`)
)

const insertChangeSQL = `INSERT INTO apply_changes (run_id, seq, change_type, table_name, detail, applied_at)
	SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ? FROM apply_changes WHERE run_id = ?`

// Store is the apply history database.
type Store struct {
	adp    *sqlite.Adapter
	db     *db.Database
	logger *slog.Logger
}

// Open opens the state database at path, creating the file and its parent
// directory if needed, and runs pending migrations. An empty path or
// ":memory:" opens an in-memory store.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	adp := sqlite.New(logger)
	if err := adp.Connect(ctx, adapter.Config{Type: "sqlite", Path: path}); err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	if err := Migrate(adp.Handle(), logger); err != nil {
		_ = adp.Close()
		return nil, err
	}

	database, err := db.New(adp.Handle(), adp,
		db.WithLogger(logger),
		db.WithHooks(&hook.Logging{Logger: logger, Prefix: "[state]", Level: slog.LevelDebug}),
	)
	if err != nil {
		_ = adp.Close()
		return nil, err
	}

	logger.Debug("state database opened", slog.String("path", path))
	return &Store{adp: adp, db: database, logger: logger}, nil
}

// Close closes the state database.
func (s *Store) Close() error {
	return s.adp.Close()
}

func generateID() string {
	return uuid.New().String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeRun(rec record.Record) (*Run, error) {
	run, err := record.As[Run](rec)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// StartRun records the start of an apply run against target.
func (s *Store) StartRun(ctx context.Context, target string) (*Run, error) {
	id := generateID()
	s.logger.Debug("starting run", slog.String("id", id), slog.String("target", target))

	var run *Run
	err := s.db.Connection(ctx, func(c *db.Conn) error {
		rec, err := c.ReturningOne(ctx, startRunQuery,
			db.Params(id, target, string(RunStatusRunning), formatTime(time.Now())))
		if err != nil {
			return err
		}
		run, err = decodeRun(rec)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// RecordChange appends one applied change to a run.
func (s *Store) RecordChange(ctx context.Context, runID string, change schema.Change) error {
	return s.RecordChanges(ctx, runID, []schema.Change{change})
}

// RecordChanges appends applied changes to a run, in order, atomically.
func (s *Store) RecordChanges(ctx context.Context, runID string, changes []schema.Change) error {
	if len(changes) == 0 {
		return nil
	}

	now := formatTime(time.Now())
	argSets := make([][]any, len(changes))
	for i, ch := range changes {
		var detail any
		if ch.Detail != "" {
			detail = ch.Detail
		}
		argSets[i] = []any{runID, string(ch.Type), ch.Table, detail, now, runID}
	}

	err := s.db.Transaction(ctx, func(c *db.Conn) error {
		_, err := c.ExecuteMany(ctx, db.SQL(insertChangeSQL), argSets)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to record changes: %w", err)
	}
	return nil
}

// CompleteRun marks a run as finished with the given status.
func (s *Store) CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error {
	var errValue any
	if errMsg != "" {
		errValue = errMsg
	}

	var n int64
	err := s.db.Connection(ctx, func(c *db.Conn) error {
		var err error
		n, err = c.Execute(ctx, db.SQL(
			`UPDATE apply_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
			string(status), formatTime(time.Now()), errValue, id))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var run *Run
	err := s.db.Connection(ctx, func(c *db.Conn) error {
		rec, ok, err := c.MaybeOne(ctx, getRunQuery, db.Params(id))
		if err != nil || !ok {
			return err
		}
		run, err = decodeRun(rec)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}

	var runs []*Run
	err := s.db.Connection(ctx, func(c *db.Conn) error {
		recs, err := c.Any(ctx, listRunsQuery, db.Params(limit))
		if err != nil {
			return err
		}
		runs = make([]*Run, 0, len(recs))
		for _, rec := range recs {
			run, err := decodeRun(rec)
			if err != nil {
				return err
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// ListChanges returns the changes recorded for a run in application order.
func (s *Store) ListChanges(ctx context.Context, runID string) ([]RecordedChange, error) {
	var changes []RecordedChange
	err := s.db.Connection(ctx, func(c *db.Conn) error {
		recs, err := c.Any(ctx, listChangesQuery, db.Params(runID))
		if err != nil {
			return err
		}
		changes, err = record.AllAs[RecordedChange](recs)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list changes: %w", err)
	}
	return changes, nil
}
