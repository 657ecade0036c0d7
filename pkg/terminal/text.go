package terminal

import "strings"

// Ellipsis is appended to truncated strings.
const Ellipsis = "…"

// TruncateWithEllipsis shortens s to at most maxWidth runes.
func TruncateWithEllipsis(s string, maxWidth int) string {
	runes := []rune(s)
	if len(runes) <= maxWidth {
		return s
	}

	if maxWidth <= 1 {
		return string(runes[:max(maxWidth, 0)])
	}

	return string(runes[:maxWidth-1]) + Ellipsis
}

// FirstLine returns s up to its first newline.
func FirstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")

	return line
}
