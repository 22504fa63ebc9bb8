package extid

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxIDLen is the hard cap on an external ID. Bases render to at most
// baseLen so a dedup suffix still fits.
const (
	MaxIDLen = 64
	baseLen  = 60
)

// Slug converts arbitrary text to [a-z0-9_]+, at most MaxIDLen runes.
// Unicode is NFKD-decomposed and stripped to ASCII, runs of anything
// non-alphanumeric collapse to a single underscore, and leading/trailing
// underscores are trimmed. Empty or fully non-ASCII input yields "".
func Slug(s string) string {
	return SlugN(s, MaxIDLen)
}

// SlugN is Slug with a caller-chosen maximum length.
func SlugN(s string, max int) string {
	decomposed := norm.NFKD.String(s)

	var b strings.Builder
	b.Grow(len(decomposed))
	pendingSep := false
	for _, r := range decomposed {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r + ('a' - 'A'))
		default:
			// Combining marks left over from decomposition vanish without
			// forcing a separator; any other non-alphanumeric rune does.
			if !unicode.Is(unicode.Mn, r) {
				pendingSep = true
			}
		}
	}

	out := b.String()
	if len(out) > max {
		out = out[:max]
		out = strings.TrimRight(out, "_")
	}
	return out
}
