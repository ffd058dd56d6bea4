package commands

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runVersion(t *testing.T, version string, args ...string) string {
	t.Helper()

	cmd := NewVersionCommand(version)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return buf.String()
}

func TestVersionCommand(t *testing.T) {
	out := runVersion(t, "1.2.3")

	assert.Contains(t, out, "vegabase 1.2.3\n")
	assert.Contains(t, out, runtime.Version())
	assert.Contains(t, out, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestVersionCommand_Short(t *testing.T) {
	assert.Equal(t, "dev\n", runVersion(t, "dev", "--short"))
}

func TestVersionCommand_RejectsArgs(t *testing.T) {
	cmd := NewVersionCommand("dev")
	cmd.SetArgs([]string{"extra"})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	assert.Error(t, cmd.Execute())
}
