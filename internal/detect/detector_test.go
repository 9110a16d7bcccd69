package detect_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gosuda/vigil/internal/detect"
	"github.com/gosuda/vigil/internal/domain"
)

func newDetector() *detect.Detector {
	return detect.New(detect.DefaultPatterns())
}

// window builds a Window where the recent and extended views share the same
// chunks, which is how the manager slices a short ring.
func window(chunks ...string) detect.Window {
	var last string
	if len(chunks) > 0 {
		last = chunks[len(chunks)-1]
	}
	return detect.Window{Last: last, Recent: chunks, Extended: chunks}
}

func TestDetectRunning(t *testing.T) {
	t.Parallel()

	d := newDetector()

	tests := []struct {
		name  string
		chunk string
	}{
		{"spinner glyph", "⠙ working\n"},
		{"verb with ellipsis", "Reading files…\n"},
		{"verb with dots", "Installing dependencies...\n"},
		{"esc to interrupt", "✶ Cogitating… (esc to interrupt)\n"},
		{"step counter", "[3/7] compiling\n"},
		{"ansi-wrapped spinner", "\x1b[36m⠼\x1b[0m Thinking…\r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := d.Detect(window(tt.chunk), domain.AgentStatusIdle, 10*time.Second)
			assert.Equal(t, domain.AgentStatusRunning, got)
		})
	}
}

func TestDetectPriorityOrdering(t *testing.T) {
	t.Parallel()

	d := newDetector()

	// A chunk carrying both a spinner frame and a completion phrase is an
	// animation frame: the active indicator wins over the completion check.
	got := d.Detect(window("⠋ Task completed ✓\n"), domain.AgentStatusRunning, 100*time.Millisecond)
	assert.Equal(t, domain.AgentStatusRunning, got)

	// Without the spinner the same text is a completion.
	got = d.Detect(window("Task completed\n"), domain.AgentStatusRunning, 100*time.Millisecond)
	assert.Equal(t, domain.AgentStatusCompleted, got)
}

func TestDetectError(t *testing.T) {
	t.Parallel()

	d := newDetector()

	tests := []string{
		"Error: cannot read config\n",
		"FATAL: database connection lost\n",
		"bash: claudee: command not found\n",
		"open /etc/shadow: permission denied\n",
		"✗ build failed\n",
	}

	for _, chunk := range tests {
		got := d.Detect(window(chunk), domain.AgentStatusRunning, time.Second)
		assert.Equal(t, domain.AgentStatusError, got, "chunk %q", chunk)
	}
}

func TestDetectWaiting(t *testing.T) {
	t.Parallel()

	d := newDetector()

	tests := []struct {
		name   string
		chunks []string
	}{
		{"yes-no brackets", []string{"Overwrite main.go? [y/N]\n"}},
		{"do you want", []string{"❯ Do you want to proceed? (y/n)\n"}},
		{"would you like", []string{"Would you like me to run the tests first?\n"}},
		{"numbered menu", []string{"Choose an option:\n", "  1. Apply the edit\n  2. Skip\n"}},
		{"allow deny", []string{"Allow Bash(go test ./...)? Deny to skip.\n"}},
		{"multi-chunk prompt", []string{"I found two approaches.\n", "Which one would you prefer?\n", "  1) refactor\n  2) patch\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := d.Detect(window(tt.chunks...), domain.AgentStatusRunning, 500*time.Millisecond)
			assert.Equal(t, domain.AgentStatusWaiting, got)
		})
	}
}

func TestDetectBarePromptNeverWaiting(t *testing.T) {
	t.Parallel()

	d := newDetector()

	// A trailing prompt glyph alone is equally consistent with the process
	// being idle after finishing; it must never classify as waiting.
	for _, chunk := range []string{"$ \n", "❯ \n", "> \n"} {
		got := d.Detect(window(chunk), domain.AgentStatusRunning, 10*time.Second)
		assert.NotEqual(t, domain.AgentStatusWaiting, got, "chunk %q", chunk)
	}
}

func TestDetectQuiescenceGatedCompletion(t *testing.T) {
	t.Parallel()

	d := newDetector()
	win := window("❯ \n")

	// Below the quiet threshold the prompt proves nothing new.
	got := d.Detect(win, domain.AgentStatusRunning, 500*time.Millisecond)
	assert.Equal(t, domain.AgentStatusRunning, got)

	// Past the threshold the same window means the run has finished.
	got = d.Detect(win, domain.AgentStatusRunning, 3*time.Second)
	assert.Equal(t, domain.AgentStatusCompleted, got)
}

func TestDetectDismissedPromptNotWaiting(t *testing.T) {
	t.Parallel()

	d := newDetector()

	// The question is still in the window, but the tail re-rendered to a
	// bare prompt: the decision point has passed.
	win := window("❯ Do you want to proceed? (y/n)\n", "❯ \n")

	got := d.Detect(win, domain.AgentStatusWaiting, 3*time.Second)
	assert.Equal(t, domain.AgentStatusCompleted, got)
}

func TestDetectRecencyFallback(t *testing.T) {
	t.Parallel()

	d := newDetector()
	win := window("some ordinary build output\n")

	// Fresh unclassified output promotes idle and completed to running.
	for _, cur := range []domain.AgentStatus{domain.AgentStatusIdle, domain.AgentStatusCompleted, domain.AgentStatusWaiting} {
		got := d.Detect(win, cur, 200*time.Millisecond)
		assert.Equal(t, domain.AgentStatusRunning, got, "current %q", cur)
	}

	// Errors stick until contradicted by a stronger rule.
	got := d.Detect(win, domain.AgentStatusError, 200*time.Millisecond)
	assert.Equal(t, domain.AgentStatusError, got)
}

func TestDetectNoEvidenceKeepsStatus(t *testing.T) {
	t.Parallel()

	d := newDetector()

	// Empty window, long silence: nothing to conclude.
	got := d.Detect(detect.Window{}, domain.AgentStatusWaiting, time.Minute)
	assert.Equal(t, domain.AgentStatusWaiting, got)

	// Unclassified output past the quiet threshold with no prompt tail.
	got = d.Detect(window("lorem ipsum output\n"), domain.AgentStatusWaiting, time.Minute)
	assert.Equal(t, domain.AgentStatusWaiting, got)
}

func TestDetectEndToEndScenario(t *testing.T) {
	t.Parallel()

	d := newDetector()
	status := domain.AgentStatusIdle
	var chunks []string

	feed := func(chunk string, since time.Duration) {
		chunks = append(chunks, chunk)
		status = d.Detect(window(chunks...), status, since)
	}

	feed("Thinking...\n", 100*time.Millisecond)
	assert.Equal(t, domain.AgentStatusRunning, status)

	feed("❯ Do you want to proceed? (y/n)\n", 300*time.Millisecond)
	assert.Equal(t, domain.AgentStatusWaiting, status)

	feed("❯ \n", 3*time.Second)
	assert.Equal(t, domain.AgentStatusCompleted, status)
}
