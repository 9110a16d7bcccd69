// Package detect infers an agent's lifecycle status from its raw terminal
// output. Interactive CLIs expose no structured protocol, so classification
// is heuristic: categorized pattern sets evaluated in strict priority order.
package detect

import "regexp"

// Patterns is the categorized, data-driven pattern table the detector matches
// against. Categories are tuned independently of the detection control flow.
type Patterns struct {
	// Spinners is the glyph set whose presence in the latest chunk indicates
	// an animation frame, i.e. active computation.
	Spinners []rune

	// Working matches in-progress phrases ("Reading files…", "Running: go
	// build", "esc to interrupt"). Checked on the latest chunk only, since
	// older spinner frames in the window are stale.
	Working []*regexp.Regexp

	// Error matches abnormal-termination indicators over the recent window.
	Error []*regexp.Regexp

	// UserInput is the strict genuine-prompt set: an actual decision point
	// (yes/no brackets, "Do you want…", selection verbs). A bare prompt
	// glyph alone never belongs here.
	UserInput []*regexp.Regexp

	// WaitingForInput is the broader prompt set, including bare prompt
	// glyphs. Used to recognize a quiescent prompt, never to classify
	// waiting on its own.
	WaitingForInput []*regexp.Regexp

	// Completed matches successful-finish phrases over the recent window.
	Completed []*regexp.Regexp

	// NumberedOption matches one line of an option menu. Two or more
	// matches in the window count as a genuine decision point.
	NumberedOption *regexp.Regexp

	// PromptOnly matches a trailing bare prompt with nothing after it.
	PromptOnly *regexp.Regexp
}

// DefaultPatterns returns the pattern table tuned for current interactive
// coding agents (Claude Code, Codex CLI, OpenCode, aider).
func DefaultPatterns() Patterns {
	return Patterns{
		Spinners: []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏⣾⣽⣻⢿⡿⣟⣯⣷◐◓◑◒◴◷◶◵✢✳✶✻✽"),
		Working: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(reading|writing|running|installing|building|searching|thinking|generating|compiling|fetching|analyzing|editing|updating|creating|loading|processing|downloading|resolving)\b[^\n]*(…|\.\.\.)`),
			regexp.MustCompile(`(?i)^(running|executing|writing|reading):\s`),
			regexp.MustCompile(`(?i)esc to interrupt`),
			regexp.MustCompile(`\[\d+/\d+\]`),
			regexp.MustCompile(`(?i)\(\d+s\s*[·•]`), // "(12s · ↑ 1.2k tokens)"
		},
		Error: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\berror:`),
			regexp.MustCompile(`(?i)\bfailed:`),
			regexp.MustCompile(`(?i)\bexception\b`),
			regexp.MustCompile(`(?i)\bfatal\b`),
			regexp.MustCompile(`(?i)\bpanic:`),
			regexp.MustCompile(`(?i)permission denied`),
			regexp.MustCompile(`(?i)command not found`),
			regexp.MustCompile(`(?i)no such file or directory`),
			regexp.MustCompile(`✗`),
		},
		UserInput: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\[y(es)?/no?\]`),
			regexp.MustCompile(`(?i)\(y(es)?/no?\)`),
			regexp.MustCompile(`(?i)do you want\b`),
			regexp.MustCompile(`(?i)would you like\b`),
			regexp.MustCompile(`(?i)should i\b`),
			regexp.MustCompile(`(?i)which\b[^\n?]*would you\b`),
			regexp.MustCompile(`(?im)^\s*(choose|select|pick)\b[^\n]*:?\s*$`),
			regexp.MustCompile(`(?i)press enter to (continue|confirm)`),
			regexp.MustCompile(`(?i)accept edits`),
			regexp.MustCompile(`(?i)always allow`),
			regexp.MustCompile(`(?i)\ballow\b[^\n]*\bdeny\b`),
			regexp.MustCompile(`(?i)proceed\?`),
		},
		WaitingForInput: []*regexp.Regexp{
			regexp.MustCompile(`[❯>»]\s*$`),
			regexp.MustCompile(`\$\s*$`),
			regexp.MustCompile(`\?\s*$`),
			regexp.MustCompile(`(?i)for shortcuts`),
		},
		Completed: []*regexp.Regexp{
			regexp.MustCompile(`(?i)task completed`),
			regexp.MustCompile(`(?i)\bdone[!.]`),
			regexp.MustCompile(`(?i)\bfinished\b`),
			regexp.MustCompile(`(?i)all (tests|checks) passed`),
			regexp.MustCompile(`(?i)completed successfully`),
			regexp.MustCompile(`(?i)worked for \d+`),
			regexp.MustCompile(`[✓✔]`),
		},
		NumberedOption: regexp.MustCompile(`(?m)^\s*[❯>]?\s*\d+[.)]\s+\S`),
		PromptOnly:     regexp.MustCompile(`(?:^|\n)\s*(?:[❯>»$]|\$\s|claude>|aider>)\s*$`),
	}
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func containsAnyRune(s string, runes []rune) bool {
	for _, r := range s {
		for _, g := range runes {
			if r == g {
				return true
			}
		}
	}
	return false
}
