package db

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjrjay/vegabase/internal/testutil"
)

func insertUser(ctx context.Context, c *Conn, id int, name string) error {
	_, err := c.Execute(ctx, SQL("INSERT INTO users (id, name) VALUES (?, ?)", id, name))
	return err
}

func TestTransaction_Commit(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	err := d.Transaction(ctx, func(c *Conn) error {
		assert.True(t, c.InTransaction())
		if err := insertUser(ctx, c, 3, "carol"); err != nil {
			return err
		}
		rec, err := c.One(ctx, Query(userSchema, "SELECT id, name, email FROM users WHERE id = 3"))
		if err != nil {
			return err
		}
		assert.Equal(t, "carol", rec.Get("name"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), countUsers(t, d))
}

func TestTransaction_RollbackOnError(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := d.Transaction(ctx, func(c *Conn) error {
		if err := insertUser(ctx, c, 3, "carol"); err != nil {
			return err
		}
		return boom
	})
	assert.Same(t, boom, err)
	assert.Equal(t, int64(2), countUsers(t, d))
}

func TestTransaction_RollbackOnContractError(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	err := d.Transaction(ctx, func(c *Conn) error {
		if err := insertUser(ctx, c, 3, "carol"); err != nil {
			return err
		}
		_, err := c.One(ctx, Query(userSchema, "SELECT id, name, email FROM users WHERE id = 99"))
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(2), countUsers(t, d))
}

func TestTransaction_RollbackOnPanic(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = d.Transaction(ctx, func(c *Conn) error {
			if err := insertUser(ctx, c, 3, "carol"); err != nil {
				return err
			}
			panic("kaboom")
		})
	})
	assert.Equal(t, int64(2), countUsers(t, d))
}

func TestTransaction_RollbackOnCancel(t *testing.T) {
	d := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := d.Transaction(ctx, func(c *Conn) error {
		if err := insertUser(ctx, c, 3, "carol"); err != nil {
			return err
		}
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(2), countUsers(t, d))
}

func TestConn_TransactionJoins(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := d.Transaction(ctx, func(outer *Conn) error {
		if err := insertUser(ctx, outer, 3, "carol"); err != nil {
			return err
		}
		err := outer.Transaction(ctx, func(inner *Conn) error {
			assert.Same(t, outer, inner)
			return insertUser(ctx, inner, 4, "dave")
		})
		if err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(2), countUsers(t, d), "inner work rolls back with the enclosing unit")
}

func TestConn_TransactionOnConnection(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.Connection(ctx, func(c *Conn) error {
		assert.False(t, c.InTransaction())

		err := c.Transaction(ctx, func(tx *Conn) error {
			if err := insertUser(ctx, tx, 3, "carol"); err != nil {
				return err
			}
			return errors.New("undo")
		})
		assert.EqualError(t, err, "undo")

		return c.Transaction(ctx, func(tx *Conn) error {
			return insertUser(ctx, tx, 4, "dave")
		})
	}))
	assert.Equal(t, int64(3), countUsers(t, d))
}

func TestConn_Introspect(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.Transaction(ctx, func(c *Conn) error {
		_, err := c.Execute(ctx, SQL("CREATE TABLE posts (id INTEGER PRIMARY KEY, title TEXT)"))
		require.NoError(t, err)

		inv, err := c.Introspect(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"posts", "users"}, inv.TableNames())
		assert.True(t, inv.HasColumn("users", "email"))
		return nil
	}))

	assert.Equal(t, "sqlite", d.Engine().Dialect().Name)
}

func TestConn_NoEngine(t *testing.T) {
	adp := testutil.NewSQLite(t)
	d, err := New(adp.Handle(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, d.Connection(ctx, func(c *Conn) error {
		assert.Nil(t, c.Dialect())
		_, err := c.Introspect(ctx)
		assert.ErrorIs(t, err, ErrNoEngine)
		return nil
	}))
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)

	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	_, err = New(sqlDB, nil, WithHooks("not a hook"))
	assert.Error(t, err)
}

func TestTransaction_RollbackFailureIsLogged(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	logger, buf := testutil.NewBufferLogger()
	d, err := New(sqlDB, nil, WithLogger(logger))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users")).
		WillReturnError(errors.New("constraint violated"))
	mock.ExpectRollback().WillReturnError(errors.New("connection reset"))

	ctx := context.Background()
	err = d.Transaction(ctx, func(c *Conn) error {
		_, err := c.Execute(ctx, SQL("DELETE FROM users"))
		return err
	})

	require.Error(t, err)
	assert.Equal(t, "constraint violated", err.Error())
	assert.Contains(t, buf.String(), "transaction rollback failed")
	assert.Contains(t, buf.String(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction_CommitPath(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	d, err := New(sqlDB, nil, WithTxOptions(&sql.TxOptions{Isolation: sql.LevelDefault}))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email FROM users WHERE id = ?")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).AddRow(int64(1), "alice", nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET name = ? WHERE id = ?")).
		WithArgs("alicia", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	err = d.Transaction(ctx, func(c *Conn) error {
		rec, err := c.One(ctx, Query(userSchema, "SELECT id, name, email FROM users WHERE id = ?"), Params(1))
		if err != nil {
			return err
		}
		assert.Equal(t, "alice", rec.Get("name"))
		n, err := c.Execute(ctx, SQL("UPDATE users SET name = ? WHERE id = ?", "alicia", 1))
		assert.Equal(t, int64(1), n)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction_CommitFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	d, err := New(sqlDB, nil)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err = d.Transaction(context.Background(), func(*Conn) error { return nil })
	assert.EqualError(t, err, "serialization failure")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_EngineErrorPassesThrough(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	d, err := New(sqlDB, nil)
	require.NoError(t, err)

	engineErr := errors.New("relation \"users\" does not exist")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email FROM users")).WillReturnError(engineErr)

	ctx := context.Background()
	err = d.Connection(ctx, func(c *Conn) error {
		_, err := c.Any(ctx, Query(userSchema, "SELECT id, name, email FROM users"))
		return err
	})
	assert.ErrorIs(t, err, engineErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}
