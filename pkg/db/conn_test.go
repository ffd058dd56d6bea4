package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/kjrjay/vegabase/internal/testutil"
	"github.com/kjrjay/vegabase/pkg/hook"
	"github.com/kjrjay/vegabase/pkg/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userSchema = record.New("User",
	record.Required("id", record.Int),
	record.Required("name", record.String),
	record.Optional("email", record.String),
)

func newTestDB(t *testing.T, opts ...Option) *Database {
	t.Helper()

	adp := testutil.NewSQLite(t)
	testutil.Exec(t, adp,
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT)`,
		`INSERT INTO users (id, name, email) VALUES (1, 'alice', 'alice@example.com'), (2, 'bob', NULL)`,
	)

	opts = append([]Option{WithLogger(testutil.NewTestLogger(t))}, opts...)
	d, err := New(adp.Handle(), adp, opts...)
	require.NoError(t, err)
	return d
}

func countUsers(t *testing.T, d *Database) int64 {
	t.Helper()
	var n int64
	require.NoError(t, d.Connection(context.Background(), func(c *Conn) error {
		v, err := c.Scalar(context.Background(), SQL("SELECT COUNT(*) FROM users"))
		if err != nil {
			return err
		}
		n = v.(int64)
		return nil
	}))
	return n
}

func TestConn_CardinalityContracts(t *testing.T) {
	// maxID selects 0, 1 or 2 rows.
	q := Query(userSchema, "SELECT id, name, email FROM users WHERE id <= ? ORDER BY id")

	type result struct {
		err   error
		count int
	}
	tests := []struct {
		name     string
		maxID    int
		call     func(ctx context.Context, c *Conn, opts ...CallOption) (int, error)
		wantErr  error
		wantRows int
	}{
		{"one/0", 0, callOne(q), ErrNotFound, 0},
		{"one/1", 1, callOne(q), nil, 1},
		{"one/2", 2, callOne(q), ErrTooManyRows, 0},
		{"maybe_one/0", 0, callMaybeOne(q), nil, 0},
		{"maybe_one/1", 1, callMaybeOne(q), nil, 1},
		{"maybe_one/2", 2, callMaybeOne(q), ErrTooManyRows, 0},
		{"many/0", 0, callMany(q), ErrNotFound, 0},
		{"many/1", 1, callMany(q), nil, 1},
		{"many/2", 2, callMany(q), nil, 2},
		{"any/0", 0, callAny(q), nil, 0},
		{"any/1", 1, callAny(q), nil, 1},
		{"any/2", 2, callAny(q), nil, 2},
	}

	d := newTestDB(t)
	ctx := context.Background()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got result
			require.NoError(t, d.Connection(ctx, func(c *Conn) error {
				got.count, got.err = tt.call(ctx, c, Params(tt.maxID))
				return nil
			}))

			if tt.wantErr != nil {
				assert.ErrorIs(t, got.err, tt.wantErr)
				return
			}
			require.NoError(t, got.err)
			assert.Equal(t, tt.wantRows, got.count)
		})
	}
}

func callOne(q TypedQuery) func(context.Context, *Conn, ...CallOption) (int, error) {
	return func(ctx context.Context, c *Conn, opts ...CallOption) (int, error) {
		_, err := c.One(ctx, q, opts...)
		return 1, err
	}
}

func callMaybeOne(q TypedQuery) func(context.Context, *Conn, ...CallOption) (int, error) {
	return func(ctx context.Context, c *Conn, opts ...CallOption) (int, error) {
		_, ok, err := c.MaybeOne(ctx, q, opts...)
		if ok {
			return 1, err
		}
		return 0, err
	}
}

func callMany(q TypedQuery) func(context.Context, *Conn, ...CallOption) (int, error) {
	return func(ctx context.Context, c *Conn, opts ...CallOption) (int, error) {
		recs, err := c.Many(ctx, q, opts...)
		return len(recs), err
	}
}

func callAny(q TypedQuery) func(context.Context, *Conn, ...CallOption) (int, error) {
	return func(ctx context.Context, c *Conn, opts ...CallOption) (int, error) {
		recs, err := c.Any(ctx, q, opts...)
		return len(recs), err
	}
}

func TestConn_ContractErrors(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	err := d.Connection(ctx, func(c *Conn) error {
		_, err := c.One(ctx, Query(userSchema, "SELECT id, name, email FROM users"))
		return err
	})
	var tooMany *TooManyRowsError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, "User", tooMany.Record)
	assert.Equal(t, ContractOne, tooMany.Contract)
	assert.Equal(t, 2, tooMany.Count)
	assert.Equal(t, "one: expected at most one User row, got 2", err.Error())

	err = d.Connection(ctx, func(c *Conn) error {
		_, err := c.Many(ctx, Query(userSchema, "SELECT id, name, email FROM users WHERE id > 10"))
		return err
	})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, ContractMany, notFound.Contract)
}

func TestConn_OneDecodes(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	type user struct {
		ID    int64   `db:"id"`
		Name  string  `db:"name"`
		Email *string `db:"email"`
	}

	require.NoError(t, d.Connection(ctx, func(c *Conn) error {
		rec, err := c.One(ctx, Query(userSchema, "SELECT id, name, email FROM users WHERE id = ?", 2))
		require.NoError(t, err)

		u, err := record.As[user](rec)
		require.NoError(t, err)
		assert.Equal(t, user{ID: 2, Name: "bob"}, u)

		all, err := c.All(ctx, Query(userSchema, "SELECT id, name, email FROM users ORDER BY id"))
		require.NoError(t, err)
		users, err := record.AllAs[user](all)
		require.NoError(t, err)
		require.Len(t, users, 2)
		require.NotNil(t, users[0].Email)
		assert.Equal(t, "alice@example.com", *users[0].Email)
		return nil
	}))
}

func TestConn_Validation(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	// name is required but not selected.
	q := Query(userSchema, "SELECT id FROM users WHERE id = 1")

	tests := []struct {
		name    string
		opts    []CallOption
		wantErr bool
	}{
		{"validated", nil, true},
		{"skipped", []CallOption{SkipValidation()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.Connection(ctx, func(c *Conn) error {
				rec, err := c.One(ctx, q, tt.opts...)
				if err == nil {
					assert.Equal(t, int64(1), rec.Get("id"))
				}
				return err
			})
			if tt.wantErr {
				var verr *record.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "User", verr.Schema)
				assert.ErrorIs(t, err, record.ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConn_WidthProjection(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	ids := record.New("UserID", record.Required("id", record.Int))

	require.NoError(t, d.Connection(ctx, func(c *Conn) error {
		recs, err := c.Many(ctx, Query(ids, "SELECT * FROM users ORDER BY id"))
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, []string{"id"}, recs[0].Fields())
		return nil
	}))
}

type orderHook struct {
	name  string
	mu    *sync.Mutex
	calls *[]string
}

func (h orderHook) record(s string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.calls = append(*h.calls, h.name+"."+s)
}

func (h orderHook) BeforeExecute(_ context.Context, _ *hook.QueryContext) error {
	h.record("before")
	return nil
}

func (h orderHook) AfterExecute(_ context.Context, _ *hook.QueryContext, rows []hook.Row) ([]hook.Row, error) {
	h.record("after")
	return rows, nil
}

func (h orderHook) OnError(_ context.Context, _ *hook.QueryContext, err error) error {
	h.record("error")
	return err
}

func TestConn_HookOrder(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	h1 := orderHook{name: "H1", mu: &mu, calls: &calls}
	h2 := orderHook{name: "H2", mu: &mu, calls: &calls}

	d := newTestDB(t, WithHooks(h1))
	require.NoError(t, d.AddHook(h2))
	ctx := context.Background()

	tests := []struct {
		name string
		run  func(c *Conn) error
		want []string
	}{
		{
			name: "typed success",
			run: func(c *Conn) error {
				_, err := c.One(ctx, Query(userSchema, "SELECT id, name, email FROM users WHERE id = 1"))
				return err
			},
			want: []string{"H1.before", "H2.before", "H1.after", "H2.after"},
		},
		{
			name: "typed contract failure",
			run: func(c *Conn) error {
				_, err := c.One(ctx, Query(userSchema, "SELECT id, name, email FROM users"))
				if !errors.Is(err, ErrTooManyRows) {
					return fmt.Errorf("unexpected: %v", err)
				}
				return nil
			},
			want: []string{"H1.before", "H2.before", "H1.after", "H2.after", "H1.error", "H2.error"},
		},
		{
			name: "execute skips after",
			run: func(c *Conn) error {
				_, err := c.Execute(ctx, SQL("UPDATE users SET name = name"))
				return err
			},
			want: []string{"H1.before", "H2.before"},
		},
		{
			name: "engine error",
			run: func(c *Conn) error {
				_, err := c.Scalar(ctx, SQL("SELECT * FROM missing_table"))
				if err == nil {
					return errors.New("expected engine error")
				}
				return nil
			},
			want: []string{"H1.before", "H2.before", "H1.error", "H2.error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mu.Lock()
			calls = nil
			mu.Unlock()

			require.NoError(t, d.Connection(ctx, tt.run))
			assert.Equal(t, tt.want, calls)
		})
	}
}

func TestConn_ErrorHookRemaps(t *testing.T) {
	errMissing := errors.New("user missing")
	remap := hook.Funcs{OnErr: func(_ context.Context, qc *hook.QueryContext, err error) error {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%s: %w", qc.RecordName(), errMissing)
		}
		return err
	}}
	swallow := hook.Funcs{OnErr: func(_ context.Context, _ *hook.QueryContext, _ error) error {
		return nil
	}}

	d := newTestDB(t, WithHooks(remap, swallow))
	ctx := context.Background()

	err := d.Connection(ctx, func(c *Conn) error {
		_, err := c.One(ctx, Query(userSchema, "SELECT id, name, email FROM users WHERE id = 99"))
		return err
	})
	require.Error(t, err, "a hook returning nil must not suppress the error")
	assert.ErrorIs(t, err, errMissing)
	assert.Equal(t, "User: user missing", err.Error())
}

func TestConn_BeforeHookRewrites(t *testing.T) {
	limit := hook.Funcs{Before: func(_ context.Context, qc *hook.QueryContext) error {
		if qc.Kind == hook.KindTyped {
			qc.SQL += " LIMIT 1"
		}
		return nil
	}}

	d := newTestDB(t, WithHooks(limit))
	ctx := context.Background()
	q := Query(userSchema, "SELECT id, name, email FROM users ORDER BY id")

	require.NoError(t, d.Connection(ctx, func(c *Conn) error {
		rec, err := c.One(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, "alice", rec.Get("name"))
		return nil
	}))
	assert.Equal(t, "SELECT id, name, email FROM users ORDER BY id", q.Statement().SQL, "binding is not rewritten")
}

func TestConn_AfterHookSeesColumns(t *testing.T) {
	var cols []string
	d := newTestDB(t, WithHooks(hook.Funcs{After: func(_ context.Context, qc *hook.QueryContext, rows []hook.Row) ([]hook.Row, error) {
		cols = append([]string(nil), qc.Columns...)
		return rows, nil
	}}))
	ctx := context.Background()

	require.NoError(t, d.Connection(ctx, func(c *Conn) error {
		_, err := c.Any(ctx, Query(userSchema, "SELECT email, name, id FROM users"))
		return err
	}))
	assert.Equal(t, []string{"email", "name", "id"}, cols)
}

func TestConn_BeforeHookError(t *testing.T) {
	denied := errors.New("denied")
	var seen error
	d := newTestDB(t, WithHooks(
		hook.Funcs{Before: func(_ context.Context, _ *hook.QueryContext) error { return denied }},
		hook.Funcs{OnErr: func(_ context.Context, _ *hook.QueryContext, err error) error {
			seen = err
			return err
		}},
	))
	ctx := context.Background()

	err := d.Connection(ctx, func(c *Conn) error {
		_, err := c.Any(ctx, Query(userSchema, "SELECT id, name, email FROM users"))
		return err
	})
	assert.ErrorIs(t, err, denied)
	assert.ErrorIs(t, seen, denied)
}

func TestConn_CamelCaseHook(t *testing.T) {
	d := newTestDB(t, WithHooks(hook.CamelCase{}))
	ctx := context.Background()
	s := record.New("Profile", record.Required("userId", record.Int), record.Required("userName", record.String))

	require.NoError(t, d.Connection(ctx, func(c *Conn) error {
		rec, err := c.One(ctx, Query(s, "SELECT id AS user_id, name AS user_name FROM users WHERE id = 1"))
		require.NoError(t, err)
		assert.Equal(t, "alice", rec.Get("userName"))
		return nil
	}))
}

func TestConn_CamelCaseCollisionReachesErrorHooks(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	d := newTestDB(t, WithHooks(hook.CamelCase{}, orderHook{name: "H", mu: &mu, calls: &calls}))
	ctx := context.Background()
	s := record.New("Profile", record.Required("userId", record.Int))

	err := d.Connection(ctx, func(c *Conn) error {
		_, err := c.One(ctx, Query(s, "SELECT id AS user_id, name AS userId FROM users WHERE id = 1"))
		return err
	})
	require.ErrorIs(t, err, hook.ErrKeyCollision)
	assert.Contains(t, err.Error(), `"userId" and "user_id" both become "userId"`)
	assert.Equal(t, []string{"H.before", "H.error"}, calls)
}

func TestConn_LoggingHook(t *testing.T) {
	logger, buf := testutil.NewBufferLogger()
	d := newTestDB(t, WithHooks(&hook.Logging{Logger: logger, Prefix: "[SQL]"}))
	ctx := context.Background()

	require.NoError(t, d.Connection(ctx, func(c *Conn) error {
		_, err := c.Many(ctx, Query(userSchema, "SELECT id, name, email FROM users"))
		return err
	}))
	assert.Contains(t, buf.String(), "[SQL] query executed")
	assert.Contains(t, buf.String(), "record=User")
	assert.Contains(t, buf.String(), "rows=2")
}

func TestConn_UntypedPrimitives(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.Connection(ctx, func(c *Conn) error {
		n, err := c.Execute(ctx, SQL("UPDATE users SET email = ? WHERE email IS NULL", "bob@example.com"))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		v, err := c.Scalar(ctx, SQL("SELECT name FROM users WHERE id = ?"), Params(1))
		require.NoError(t, err)
		assert.Equal(t, "alice", v)

		v, err = c.Scalar(ctx, SQL("SELECT name FROM users WHERE id = 99"))
		require.NoError(t, err)
		assert.Nil(t, v)

		n, err = c.ExecuteMany(ctx, SQL("INSERT INTO users (id, name) VALUES (?, ?)"), [][]any{
			{3, "carol"},
			{4, "dave"},
			{5, "erin"},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		n, err = c.ExecuteMany(ctx, SQL("INSERT INTO users (id, name) VALUES (?, ?)"), nil)
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	}))
	assert.Equal(t, int64(5), countUsers(t, d))
}

func TestConn_Returning(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.Connection(ctx, func(c *Conn) error {
		rec, err := c.ReturningOne(ctx, Query(userSchema,
			"INSERT INTO users (id, name) VALUES (?, ?) RETURNING id, name, email"), Params(10, "zoe"))
		require.NoError(t, err)
		assert.Equal(t, int64(10), rec.Get("id"))
		assert.Nil(t, rec.Get("email"))

		recs, err := c.ReturningMany(ctx, Query(userSchema,
			"UPDATE users SET email = 'x@example.com' WHERE id < 3 RETURNING id, name, email"))
		require.NoError(t, err)
		assert.Len(t, recs, 2)
		return nil
	}))
}

func TestBind_Immutable(t *testing.T) {
	args := []any{1}
	q := Bind(userSchema, Statement{SQL: "SELECT 1", Args: args})
	args[0] = 2

	assert.Equal(t, []any{1}, q.Statement().Args)

	stmt := q.Statement()
	stmt.Args[0] = 3
	assert.Equal(t, []any{1}, q.Statement().Args)
	assert.Equal(t, "User", q.Schema().Name())
	assert.Equal(t, "User: SELECT 1", q.String())
}
