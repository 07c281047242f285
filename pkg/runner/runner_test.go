//go:build !windows

package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExec(t *testing.T) {
	L := hclog.New(&hclog.LoggerOptions{Level: hclog.Info})

	t.Run("captures stdout and stderr", func(t *testing.T) {
		var out bytes.Buffer

		e := &Exec{L: L, Output: &out, OutputPrefix: "sh"}

		res, err := e.Run(context.TODO(), Command{
			Name: "sh",
			Args: []string{"-c", "echo hello; echo oops >&2"},
		})
		require.NoError(t, err)

		assert.Equal(t, "hello\n", res.Stdout)
		assert.Equal(t, "oops\n", res.Stderr)
		assert.Equal(t, 0, res.ExitCode)

		assert.Contains(t, out.String(), "sh │ hello")
		assert.Contains(t, out.String(), "sh │ oops")
	})

	t.Run("logs output at debug level without an output writer", func(t *testing.T) {
		var logs bytes.Buffer

		dl := hclog.New(&hclog.LoggerOptions{Level: hclog.Debug, Output: &logs})

		e := &Exec{L: dl, OutputPrefix: "pip"}

		res, err := e.Run(context.TODO(), Command{
			Name: "sh",
			Args: []string{"-c", "echo hello"},
		})
		require.NoError(t, err)

		assert.Equal(t, "hello\n", res.Stdout)
		assert.Contains(t, logs.String(), "line=hello")
		assert.Contains(t, logs.String(), "prefix=pip")
	})

	t.Run("returns a subprocess error on non-zero exit", func(t *testing.T) {
		e := &Exec{L: L}

		res, err := e.Run(context.TODO(), Command{
			Name: "sh",
			Args: []string{"-c", "echo broken >&2; exit 3"},
		})
		require.Error(t, err)

		var se *SubprocessError
		require.True(t, errors.As(err, &se))

		assert.Equal(t, 3, se.ExitCode)
		assert.Equal(t, "broken\n", se.Stderr)
		assert.Contains(t, se.Error(), "exit 3")
		assert.Contains(t, se.Error(), "broken")

		require.NotNil(t, res)
		assert.Equal(t, 3, res.ExitCode)
	})

	t.Run("reports commands that cannot start", func(t *testing.T) {
		e := &Exec{L: L}

		_, err := e.Run(context.TODO(), Command{Name: "/nonexistant/binary"})
		require.Error(t, err)

		var se *SubprocessError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, -1, se.ExitCode)
	})

	t.Run("runs in the requested directory", func(t *testing.T) {
		dir := t.TempDir()

		e := &Exec{L: L}

		_, err := e.Run(context.TODO(), Command{
			Name: "sh",
			Args: []string{"-c", "touch marker"},
			Dir:  dir,
		})
		require.NoError(t, err)

		_, err = os.Stat(filepath.Join(dir, "marker"))
		assert.NoError(t, err)
	})

	t.Run("adds extra environment to the inherited one", func(t *testing.T) {
		e := &Exec{L: L, Env: []string{"PROVISION_TEST_VALUE=42"}}

		res, err := e.Run(context.TODO(), Command{
			Name: "sh",
			Args: []string{"-c", "echo $PROVISION_TEST_VALUE; test -n \"$PATH\""},
		})
		require.NoError(t, err)

		assert.Equal(t, "42\n", res.Stdout)
	})

	t.Run("starts detached processes without waiting", func(t *testing.T) {
		e := &Exec{L: L}

		start := time.Now()

		proc, err := e.Start(Command{Name: "sleep", Args: []string{"5"}})
		require.NoError(t, err)
		require.NotNil(t, proc)

		assert.Less(t, int64(time.Since(start)), int64(2*time.Second))

		proc.Kill()
	})
}

func TestFuncs(t *testing.T) {
	var f Funcs

	_, err := f.Run(context.TODO(), Command{Name: "x"})
	assert.True(t, errors.Is(err, ErrNotConfigured))

	_, err = f.LookPath("brew")
	assert.Error(t, err)
}
