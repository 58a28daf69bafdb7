package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Slugify turns value into a name safe for a single path element. Characters that are
// neither word characters, spaces nor hyphens are dropped, runs of spaces and hyphens
// collapse to one hyphen, and leading or trailing hyphens and underscores are trimmed.
// Without allowUnicode the result is reduced to ASCII.
func Slugify(value string, allowUnicode bool) string {
	if allowUnicode {
		value = norm.NFKC.String(value)
	} else {
		value = toASCII(norm.NFKD.String(value))
	}
	value = strings.ToLower(value)

	var sb strings.Builder
	sb.Grow(len(value))
	pendingDash := false
	for _, r := range value {
		switch {
		case r == '-' || unicode.IsSpace(r):
			pendingDash = true
		case r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r):
			if pendingDash {
				sb.WriteByte('-')
				pendingDash = false
			}
			sb.WriteRune(r)
		}
	}
	if pendingDash {
		sb.WriteByte('-')
	}
	return strings.Trim(sb.String(), "-_")
}

func toASCII(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] < utf8.RuneSelf {
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}
