package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestSession(t *testing.T) (*replSession, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	return &replSession{db: setupTestDB(t), format: "csv", out: out, errOut: errOut}, out, errOut
}

func TestREPL_MultiLineStatement(t *testing.T) {
	s, out, _ := newTestSession(t)
	ctx := context.Background()

	quit, waiting := s.feed(ctx, "SELECT name")
	assert.False(t, quit)
	assert.True(t, waiting)

	_, waiting = s.feed(ctx, "")
	assert.True(t, waiting, "blank lines keep the pending statement")

	_, waiting = s.feed(ctx, "FROM users ORDER BY id;")
	assert.False(t, waiting)
	assert.Equal(t, "name\nalice\nbob\n\n", out.String())
}

func TestREPL_DotCommands(t *testing.T) {
	s, out, errOut := newTestSession(t)
	ctx := context.Background()

	s.feed(ctx, ".tables")
	assert.Contains(t, out.String(), ",users,3")

	out.Reset()
	s.feed(ctx, ".schema users")
	assert.Contains(t, out.String(), "Table: users")
	assert.Contains(t, out.String(), "email,TEXT,YES,")

	s.feed(ctx, ".schema")
	assert.Contains(t, errOut.String(), "Usage: .schema <table>")

	s.feed(ctx, ".bogus")
	assert.Contains(t, errOut.String(), "Unknown command: .bogus")

	out.Reset()
	s.feed(ctx, ".help")
	assert.Contains(t, out.String(), ".schema <name>")

	quit, _ := s.feed(ctx, ".QUIT")
	assert.True(t, quit)
}

func TestREPL_DotCommandInsideStatementIsSQL(t *testing.T) {
	s, _, errOut := newTestSession(t)
	ctx := context.Background()

	s.feed(ctx, "SELECT 1")
	quit, waiting := s.feed(ctx, ".quit;")
	assert.False(t, quit)
	assert.False(t, waiting)
	assert.Contains(t, errOut.String(), "Error:")
}

func TestREPL_ErrorsDoNotEndSession(t *testing.T) {
	s, _, errOut := newTestSession(t)

	quit, _ := s.feed(context.Background(), "SELECT * FROM missing;")
	assert.False(t, quit)
	assert.Contains(t, errOut.String(), "query failed")
}
