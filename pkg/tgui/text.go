package tgui

import (
	"unicode/utf16"
	"unicode/utf8"
)

// TruncRunes returns s truncated to at most n runes.
// It appends an ellipsis "…" when truncated.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	cut := 0
	for i, r := range s {
		count++
		if count == n {
			cut = i + utf8.RuneLen(r)
			continue
		}
		if count > n {
			if cut <= 0 {
				cut = i
			}
			return s[:cut] + "…"
		}
	}
	return s
}

// UTF16Len reports the length of s the way Telegram counts it.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16RuneLen(r)
	}
	return n
}

// Clamp shortens s so that, including a trailing "…", it fits in limit
// UTF-16 code units. Strings already within limit are returned unchanged.
func Clamp(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if UTF16Len(s) <= limit {
		return s
	}
	budget := limit - 1 // room for "…"
	used := 0
	for i, r := range s {
		w := utf16RuneLen(r)
		if used+w > budget {
			return s[:i] + "…"
		}
		used += w
	}
	return s
}

func utf16RuneLen(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}
