package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics decomposes accented runes and removes their combining marks,
// so "Génesis" becomes "Genesis" before slugging.
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug converts a story title into the directory-safe identifier used to key
// its artifact set: lowercased, diacritics stripped, every run of
// non-alphanumeric characters collapsed to a single underscore, and
// leading/trailing underscores trimmed. Returns "untitled" for input that
// yields nothing.
func Slug(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "untitled"
	}
	plain, _, err := transform.String(stripDiacritics, title)
	if err != nil {
		plain = title
	}

	var b strings.Builder
	b.Grow(len(plain))
	pendingUnderscore := false
	for _, r := range strings.ToLower(plain) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingUnderscore && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingUnderscore = false
			b.WriteRune(r)
		default:
			pendingUnderscore = true
		}
	}
	out := b.String()
	if out == "" {
		return "untitled"
	}
	return out
}

// Truncate shortens s to at most limit runes, leaving shorter strings intact.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
