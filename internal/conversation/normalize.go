package conversation

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Reserved commands understood in every state.
var (
	resetTokens = map[string]struct{}{
		"0":      {},
		"إلغاء":  {},
		"الغاء":  {},
		"ألغاء":  {},
		"cancel": {},
		"menu":   {},
	}
	endPrefixes = []string{"انتهاء", "end"}
	doneTokens  = map[string]struct{}{
		"تم":   {},
		"done": {},
	}
)

const escalateToken = "9"

// NormalizeInput trims s and folds numerals to ASCII digits: compatibility
// forms (full-width, circled), Arabic-Indic and Extended Arabic-Indic digits,
// and keycap emoji.
func NormalizeInput(s string) string {
	s = strings.ReplaceAll(s, "🔟", "10")
	s = norm.NFKC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '\u0660' && r <= '\u0669':
			b.WriteRune('0' + (r - '\u0660'))
		case r >= '\u06F0' && r <= '\u06F9':
			b.WriteRune('0' + (r - '\u06F0'))
		case r == '\uFE0F' || r == '\u20E3':
			// variation selector and combining keycap
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func isResetToken(input string) bool {
	_, ok := resetTokens[fold(input)]
	return ok
}

func isDoneToken(input string) bool {
	_, ok := doneTokens[fold(input)]
	return ok
}

// parseEndCommand recognizes "<prefix> <code>" and returns the code.
func parseEndCommand(input string) (string, bool) {
	fields := strings.Fields(fold(input))
	if len(fields) != 2 {
		return "", false
	}
	for _, prefix := range endPrefixes {
		if fields[0] == prefix && isDigits(fields[1]) {
			return fields[1], true
		}
	}
	return "", false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
