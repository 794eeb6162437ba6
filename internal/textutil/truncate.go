package textutil

import (
	"strings"

	"golang.org/x/text/width"
)

// DisplayWidth returns the approximate terminal cell width of s. East Asian
// wide and fullwidth runes count as two cells, everything else as one.
func DisplayWidth(s string) int {
	total := 0
	for _, r := range s {
		total += runeWidth(r)
	}
	return total
}

// TruncateWidth shortens s to at most max terminal cells, replacing the tail
// with an ellipsis when truncation happens. Values of max below one return
// the empty string.
func TruncateWidth(s string, max int) string {
	if max < 1 {
		return ""
	}
	if DisplayWidth(s) <= max {
		return s
	}

	var b strings.Builder
	used := 0
	for _, r := range s {
		w := runeWidth(r)
		if used+w > max-1 {
			break
		}
		b.WriteRune(r)
		used += w
	}
	return b.String() + "…"
}

func runeWidth(r rune) int {
	if r == '\n' || r == '\r' || r == '\t' {
		return 1
	}
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	default:
		return 1
	}
}
