package ussd

import (
	"strings"
	"unicode/utf8"
)

const ellipsis = "..."

// Format shortens free text to at most max characters. It keeps whole
// sentences when at least one fits, otherwise whole words followed by "...",
// otherwise a hard cut. Lengths are counted in runes.
func Format(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	if max <= len(ellipsis) {
		return truncate(text, max)
	}

	var b strings.Builder
	for _, sentence := range strings.Split(text, ". ") {
		if runeLen(b.String())+runeLen(sentence)+2 > max {
			break
		}
		b.WriteString(sentence)
		b.WriteString(". ")
	}
	if out := strings.TrimSpace(b.String()); out != "" {
		return out
	}

	b.Reset()
	limit := max - len(ellipsis)
	for _, word := range strings.Fields(text) {
		if runeLen(b.String())+runeLen(word)+1 > limit {
			break
		}
		b.WriteString(word)
		b.WriteString(" ")
	}
	if out := strings.TrimSpace(b.String()); out != "" {
		return out + ellipsis
	}

	return truncate(text, limit) + ellipsis
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
