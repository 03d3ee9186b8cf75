package formatter

import (
	"strings"
	"unicode/utf8"
)

// RuneLen counts characters the way the posting service displays them.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Preview returns at most n runes of text.
func Preview(text string, n int) string {
	if n <= 0 {
		return ""
	}
	if RuneLen(text) <= n {
		return text
	}
	return string([]rune(text)[:n])
}

// SplitSegments splits raw model output on blank lines into trimmed,
// non-empty segments no longer than maxLen runes. Over-long candidates are
// dropped rather than truncated.
func SplitSegments(raw string, maxLen int) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	var segments []string
	for _, candidate := range strings.Split(raw, "\n\n") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if RuneLen(candidate) > maxLen {
			continue
		}
		segments = append(segments, candidate)
	}
	return segments
}
