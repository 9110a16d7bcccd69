package runtime_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/vigil/internal/manager"
	"github.com/gosuda/vigil/internal/runtime"
)

type mockSink struct {
	outputs chan string
	exits   chan int
	input   manager.InputFunc
}

func newMockSink() *mockSink {
	return &mockSink{
		outputs: make(chan string, 16),
		exits:   make(chan int, 1),
	}
}

func (s *mockSink) HandleOutput(_ context.Context, _ uuid.UUID, chunk string) error {
	s.outputs <- chunk
	return nil
}

func (s *mockSink) HandleExit(_ context.Context, _ uuid.UUID, exitCode int) error {
	s.exits <- exitCode
	return nil
}

func (s *mockSink) AttachInput(_ uuid.UUID, input manager.InputFunc) error {
	s.input = input
	return nil
}

// collectOutput drains output chunks until the deadline or until the combined
// text contains want.
func collectOutput(t *testing.T, sink *mockSink, want string) string {
	t.Helper()

	var b strings.Builder
	deadline := time.After(5 * time.Second)
	for {
		if strings.Contains(b.String(), want) {
			return b.String()
		}
		select {
		case chunk := <-sink.outputs:
			b.WriteString(chunk)
		case <-deadline:
			t.Fatalf("timed out waiting for output %q, got %q", want, b.String())
		}
	}
}

func waitExit(t *testing.T, sink *mockSink) int {
	t.Helper()

	select {
	case code := <-sink.exits:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for exit")
		return 0
	}
}

func TestLocalRuntime_OutputAndExit(t *testing.T) {
	t.Parallel()

	sink := newMockSink()
	r := runtime.NewLocalRuntime(sink)

	id, err := r.Launch(t.Context(), runtime.LaunchOptions{
		AgentID: uuid.New(),
		Cmd:     []string{"sh", "-c", "echo hello"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	out := collectOutput(t, sink, "hello")
	assert.Contains(t, out, "hello")
	assert.Equal(t, 0, waitExit(t, sink))
}

func TestLocalRuntime_NonzeroExitCode(t *testing.T) {
	t.Parallel()

	sink := newMockSink()
	r := runtime.NewLocalRuntime(sink)

	_, err := r.Launch(t.Context(), runtime.LaunchOptions{
		AgentID: uuid.New(),
		Cmd:     []string{"sh", "-c", "exit 3"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, waitExit(t, sink))
}

func TestLocalRuntime_StdinForwarding(t *testing.T) {
	t.Parallel()

	sink := newMockSink()
	r := runtime.NewLocalRuntime(sink)

	_, err := r.Launch(t.Context(), runtime.LaunchOptions{
		AgentID: uuid.New(),
		Cmd:     []string{"sh", "-c", "read line; echo got:$line"},
	})
	require.NoError(t, err)
	require.NotNil(t, sink.input)

	require.NoError(t, sink.input(t.Context(), "ping"))

	out := collectOutput(t, sink, "got:ping")
	assert.Contains(t, out, "got:ping")
	assert.Equal(t, 0, waitExit(t, sink))
}

func TestLocalRuntime_StopSuppressesExitReport(t *testing.T) {
	t.Parallel()

	sink := newMockSink()
	r := runtime.NewLocalRuntime(sink)
	agentID := uuid.New()

	_, err := r.Launch(t.Context(), runtime.LaunchOptions{
		AgentID: agentID,
		Cmd:     []string{"sleep", "30"},
	})
	require.NoError(t, err)

	require.NoError(t, r.Stop(t.Context(), agentID))

	// Stop claimed the process, so the exit must not be reported: the forced
	// idle status set by the manager stands.
	select {
	case code := <-sink.exits:
		t.Fatalf("unexpected exit report %d after Stop", code)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestLocalRuntime_StopUnknownAgent(t *testing.T) {
	t.Parallel()

	r := runtime.NewLocalRuntime(newMockSink())
	err := r.Stop(t.Context(), uuid.New())
	require.ErrorIs(t, err, runtime.ErrNotLaunched)
}

func TestLocalRuntime_EmptyCommand(t *testing.T) {
	t.Parallel()

	r := runtime.NewLocalRuntime(newMockSink())
	_, err := r.Launch(t.Context(), runtime.LaunchOptions{AgentID: uuid.New()})
	require.Error(t, err)
}
