package desktop

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/vigil/internal/messenger"
)

// Runner executes a notification command. Abstracted so tests do not
// shell out.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// DesktopMessenger shows operating-system desktop notifications via
// notify-send on Linux and osascript on macOS. Unsupported platforms
// degrade to a log line so notification delivery never blocks agents.
type DesktopMessenger struct {
	runner Runner
	goos   string
	title  string
}

// Compile-time interface check.
var _ messenger.Messenger = (*DesktopMessenger)(nil) //nolint:gochecknoglobals // compile-time check

// NewDesktopMessenger creates a DesktopMessenger for the current OS.
func NewDesktopMessenger(title string) *DesktopMessenger {
	return NewWithRunner(execRunner{}, runtime.GOOS, title)
}

// NewWithRunner creates a DesktopMessenger with an explicit runner and OS,
// for tests.
func NewWithRunner(runner Runner, goos, title string) *DesktopMessenger {
	if title == "" {
		title = "vigil"
	}
	return &DesktopMessenger{runner: runner, goos: goos, title: title}
}

// SendMessage shows a desktop notification. The channelID is unused;
// desktop notifications have no addressable channels. Message IDs are not
// supported by either backend, so the returned ID is always empty.
func (m *DesktopMessenger) SendMessage(ctx context.Context, _, text string) (messenger.MessageID, error) {
	var err error
	switch m.goos {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", text, m.title)
		err = m.runner.Run(ctx, "osascript", "-e", script)
	case "linux":
		err = m.runner.Run(ctx, "notify-send", m.title, text)
	default:
		log.Debug().Str("goos", m.goos).Str("text", text).Msg("desktop notifications unsupported on this platform")
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("desktop.DesktopMessenger.SendMessage: %w", err)
	}

	return "", nil
}

// Platform returns the messenger platform identifier.
func (m *DesktopMessenger) Platform() string {
	return "desktop"
}
