package detect

import (
	"strings"
	"time"

	"github.com/gosuda/vigil/internal/domain"
	"github.com/gosuda/vigil/internal/term"
)

// Policy constants for the detection chain. QuietThreshold gates both the
// idle-prompt completion rule and the recency fallback; the two must share
// one value or the detector oscillates around the boundary.
const (
	QuietThreshold = 2 * time.Second

	// Window sizes in chunks. LastWindow is implicit (the latest chunk).
	RecentWindow   = 10
	ExtendedWindow = 30
)

// Window carries the output slices the detector examines: the latest chunk
// alone (spinners animate frame by frame, older frames are stale), a short
// recent window (enough for a multi-line prompt), and a longer extended
// window for contextual disambiguation.
type Window struct {
	Last     string
	Recent   []string
	Extended []string
}

// Detector classifies agent output into a status. It is a pure function of
// its inputs: it never blocks, never panics, and a chunk it cannot classify
// leaves the status unchanged. Misclassification is a quality bug, not a
// correctness violation; downstream notification is debounced and the next
// chunk self-corrects the display.
type Detector struct {
	p Patterns
}

// New creates a Detector over the given pattern table.
func New(p Patterns) *Detector {
	return &Detector{p: p}
}

// Detect returns the next status for an agent given its output window, the
// stored status, and the time elapsed since the last activity before this
// evaluation. Rules are evaluated in strict priority order; earlier rules
// win.
func (d *Detector) Detect(win Window, current domain.AgentStatus, sinceActivity time.Duration) domain.AgentStatus {
	last := term.Strip(win.Last)
	recent := term.Strip(strings.Join(win.Recent, ""))
	extended := term.Strip(strings.Join(win.Extended, ""))

	hasOutput := win.Last != "" || len(win.Recent) > 0

	// 1. Active indicator on the latest chunk only: a spinner frame or an
	// in-progress phrase means work is happening right now, regardless of
	// what completion or prompt text lingers in the window.
	if last != "" && (containsAnyRune(last, d.p.Spinners) || matchAny(d.p.Working, last)) {
		return domain.AgentStatusRunning
	}

	// 2. Error indicators over the recent window.
	if recent != "" && matchAny(d.p.Error, recent) {
		return domain.AgentStatusError
	}

	// 3. Genuine prompt: a real decision point in the recent or extended
	// window. Skipped when the window tail has re-rendered to a bare prompt,
	// since the question above it is no longer pending. A bare prompt glyph
	// on its own never classifies as waiting; it is equally consistent with
	// the process sitting idle after finishing.
	if !d.tailIsBarePrompt(recent) {
		if matchAny(d.p.UserInput, recent) || matchAny(d.p.UserInput, extended) || d.menuLines(recent) >= 2 {
			return domain.AgentStatusWaiting
		}
	}

	// 4. Completion phrases over the recent window.
	if recent != "" && matchAny(d.p.Completed, recent) {
		return domain.AgentStatusCompleted
	}

	// 5. Quiescent prompt: the process is sitting at its prompt (bare glyph
	// or an input-box affordance from the broader prompt set) and has been
	// silent past the quiet threshold, so the prior run has finished.
	if (d.tailIsBarePrompt(recent) || d.tailAwaitsInput(recent)) && sinceActivity > QuietThreshold {
		return domain.AgentStatusCompleted
	}

	// 6. Recency fallback: fresh output with no classified meaning is
	// continued activity. Errors stick until contradicted by rules 1-5.
	if hasOutput && sinceActivity < QuietThreshold {
		if current == domain.AgentStatusError {
			return domain.AgentStatusError
		}
		return domain.AgentStatusRunning
	}

	// 7. No evidence of a change.
	return current
}

// tailIsBarePrompt reports whether the stripped window text ends in a bare
// prompt glyph or shell prompt with nothing after it.
func (d *Detector) tailIsBarePrompt(stripped string) bool {
	if stripped == "" {
		return false
	}
	return d.p.PromptOnly.MatchString(strings.TrimRight(stripped, " \n"))
}

// tailAwaitsInput reports whether the last non-empty line matches the broader
// waiting-for-input set (input-box hints, trailing question marks). Only used
// behind the quiet threshold, never to classify waiting directly.
func (d *Detector) tailAwaitsInput(stripped string) bool {
	lines := strings.Split(strings.TrimRight(stripped, " \n"), "\n")
	if len(lines) == 0 {
		return false
	}
	lastLine := strings.TrimSpace(lines[len(lines)-1])
	if lastLine == "" {
		return false
	}
	return matchAny(d.p.WaitingForInput, lastLine)
}

// menuLines counts numbered-option lines in the window. Two or more form an
// option menu, which is a genuine decision point.
func (d *Detector) menuLines(stripped string) int {
	if stripped == "" {
		return 0
	}
	return len(d.p.NumberedOption.FindAllStringIndex(stripped, 3))
}
