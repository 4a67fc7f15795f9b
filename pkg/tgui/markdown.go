package tgui

import "strings"

// markdownV2Reserved marks the ASCII bytes Telegram's MarkdownV2 treats as
// markup. Every byte of a multi-byte UTF-8 sequence is >= 0x80, so a byte
// scan never splits a rune.
var markdownV2Reserved = func() (t [256]bool) {
	for _, c := range []byte("\\_*[]()~`>#+-=|{}.!") {
		t[c] = true
	}
	return t
}()

// EscapeMarkdownV2 prefixes every MarkdownV2 reserved character in text
// with a backslash. Apply it exactly once per segment: escaping twice
// doubles the backslashes and they show up in the chat.
func EscapeMarkdownV2(text string) string {
	n := 0
	for i := 0; i < len(text); i++ {
		if markdownV2Reserved[text[i]] {
			n++
		}
	}
	if n == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + n)
	for i := 0; i < len(text); i++ {
		if markdownV2Reserved[text[i]] {
			b.WriteByte('\\')
		}
		b.WriteByte(text[i])
	}
	return b.String()
}
