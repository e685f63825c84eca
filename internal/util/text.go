// Package util holds small text helpers shared by the aggregation pipeline
// and the response store.
package util

import (
	"fmt"
	"unicode/utf8"
)

// Truncate shortens s to at most n bytes, appending "..." when there is
// room for it. Cuts fall on rune boundaries, never mid-character.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return SafeSlice(s, n)
	}
	return SafeSlice(s, n-3) + "..."
}

// SafeSlice returns a prefix of s no longer than maxLen bytes, cut at a
// rune boundary.
func SafeSlice(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	end := 0
	for end < maxLen {
		_, size := utf8.DecodeRuneInString(s[end:])
		if end+size > maxLen {
			break
		}
		end += size
	}
	return s[:end]
}

// FormatBytes renders a byte count in human-readable units.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
