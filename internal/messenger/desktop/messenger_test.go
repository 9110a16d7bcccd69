package desktop_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/vigil/internal/messenger/desktop"
)

// --- mock Runner ---

type mockRunner struct {
	name string
	args []string
	err  error
}

func (r *mockRunner) Run(_ context.Context, name string, args ...string) error {
	r.name = name
	r.args = args
	return r.err
}

// --- tests ---

func TestDesktopMessenger_SendMessage(t *testing.T) {
	t.Parallel()

	t.Run("linux uses notify-send", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()

		runner := &mockRunner{}
		m := desktop.NewWithRunner(runner, "linux", "vigil")

		_, err := m.SendMessage(ctx, "", "fixer finished its task")

		require.NoError(t, err)
		assert.Equal(t, "notify-send", runner.name)
		assert.Equal(t, []string{"vigil", "fixer finished its task"}, runner.args)
	})

	t.Run("darwin uses osascript", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()

		runner := &mockRunner{}
		m := desktop.NewWithRunner(runner, "darwin", "vigil")

		_, err := m.SendMessage(ctx, "", "fixer needs input")

		require.NoError(t, err)
		assert.Equal(t, "osascript", runner.name)
		require.Len(t, runner.args, 2)
		assert.Equal(t, "-e", runner.args[0])
		assert.Contains(t, runner.args[1], "fixer needs input")
		assert.Contains(t, runner.args[1], "vigil")
	})

	t.Run("unsupported OS degrades silently", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()

		runner := &mockRunner{}
		m := desktop.NewWithRunner(runner, "windows", "vigil")

		_, err := m.SendMessage(ctx, "", "hello")

		require.NoError(t, err)
		assert.Empty(t, runner.name)
	})

	t.Run("runner failure is wrapped", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()

		runErr := errors.New("notify-send: command not found")
		runner := &mockRunner{err: runErr}
		m := desktop.NewWithRunner(runner, "linux", "vigil")

		_, err := m.SendMessage(ctx, "", "hello")

		require.Error(t, err)
		assert.ErrorIs(t, err, runErr)
	})
}

func TestDesktopMessenger_Platform(t *testing.T) {
	t.Parallel()

	m := desktop.NewWithRunner(&mockRunner{}, "linux", "")
	assert.Equal(t, "desktop", m.Platform())
}
