package gate

import (
	"strings"
	"unicode"
)

// Normalise prepares text for trigger matching: lower-case, every rune that
// is not a letter, digit, underscore or whitespace removed, whitespace runs
// collapsed to one space, trimmed.
func Normalise(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			if space {
				b.WriteByte(' ')
				space = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// matchTrigger scans phrases in order and returns the first one contained in
// normalised, together with the trimmed text after its first occurrence.
func matchTrigger(normalised string, phrases []string) (phrase, query string, ok bool) {
	for _, p := range phrases {
		i := strings.Index(normalised, p)
		if i < 0 {
			continue
		}
		return p, strings.TrimSpace(normalised[i+len(p):]), true
	}
	return "", "", false
}
