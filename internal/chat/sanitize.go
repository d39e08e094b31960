package chat

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/x/ansi"
)

// MaxMessageLen is the rune budget for a single broadcast message. Longer
// input is truncated, never rejected.
const MaxMessageLen = 128

// Sanitize normalizes one submitted line for broadcast: ANSI escape
// sequences and control characters are removed, surrounding whitespace is
// trimmed, and the result is truncated to MaxMessageLen runes. Sanitizing
// already-sanitized text yields the same text.
func Sanitize(line string) string {
	clean := ansi.Strip(line)
	clean = strings.Map(dropControl, clean)
	clean = strings.TrimSpace(clean)
	if runes := []rune(clean); len(runes) > MaxMessageLen {
		// Truncation can expose trailing whitespace; trim again so the
		// result is a fixed point.
		clean = strings.TrimRightFunc(string(runes[:MaxMessageLen]), unicode.IsSpace)
	}
	return clean
}

// dropControl removes C0 and C1 control characters plus DEL.
// unicode.IsControl covers exactly the Cc category: 0x00-0x1f and
// 0x7f-0x9f.
func dropControl(r rune) rune {
	if unicode.IsControl(r) {
		return -1
	}
	return r
}
