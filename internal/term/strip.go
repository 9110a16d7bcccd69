// Package term handles raw PTY output: stripping terminal escape sequences
// and buffering chunks in a bounded ring.
package term

import "strings"

// Strip removes ANSI/VT escape sequences and control characters from s,
// preserving newlines and printable text. Spinner frames, SGR color codes,
// cursor movement, and OSC title sequences all reduce to their visible text.
//
// Strip never fails: malformed or truncated sequences are dropped up to the
// point they can be recognized. Stripping already-stripped text is a no-op.
func Strip(s string) string {
	if !strings.ContainsAny(s, "\x1b\x00\x01\x02\x03\x04\x05\x06\x07\x08\x09\x0b\x0c\x0d\x0e\x0f\x10\x11\x12\x13\x14\x15\x16\x17\x18\x19\x1a\x1c\x1d\x1e\x1f\x7f") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == 0x1b:
			i = skipEscape(s, i)
		case c == '\n':
			b.WriteByte(c)
			i++
		case c == '\t': // normalize tabs so column-aligned menus stay matchable
			b.WriteByte(' ')
			i++
		case c < 0x20 || c == 0x7f:
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}

	return b.String()
}

// skipEscape consumes one escape sequence starting at the ESC byte at index i
// and returns the index of the first byte after it. Truncated sequences
// consume to end of string.
func skipEscape(s string, i int) int {
	if i+1 >= len(s) {
		return len(s)
	}

	switch s[i+1] {
	case '[': // CSI: parameters, intermediates, then one final byte in 0x40-0x7e
		j := i + 2
		for j < len(s) && s[j] >= 0x30 && s[j] <= 0x3f {
			j++
		}
		for j < len(s) && s[j] >= 0x20 && s[j] <= 0x2f {
			j++
		}
		if j < len(s) && s[j] >= 0x40 && s[j] <= 0x7e {
			return j + 1
		}
		return len(s)

	case ']', 'P', 'X', '^', '_': // OSC/DCS/SOS/PM/APC: run until BEL or ST
		j := i + 2
		for j < len(s) {
			if s[j] == 0x07 {
				return j + 1
			}
			if s[j] == 0x1b && j+1 < len(s) && s[j+1] == '\\' {
				return j + 2
			}
			j++
		}
		return len(s)

	case '(', ')', '*', '+', '#': // charset designation: ESC + selector + one byte
		if i+2 < len(s) {
			return i + 3
		}
		return len(s)

	default: // two-byte sequence (ESC 7, ESC 8, ESC =, ...)
		return i + 2
	}
}
