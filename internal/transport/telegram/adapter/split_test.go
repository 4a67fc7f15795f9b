package adapter

import (
	"strings"
	"testing"
)

func TestSplitTelegramText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		in    string
		limit int
		mode  string
		want  []string
	}{
		{"short", "hello", 10, "", []string{"hello"}},
		{"hard cut", "abcdefghij", 4, "", []string{"abcd", "efgh", "ij"}},
		{"newline preferred", "aaaa\nbbbbbb", 8, "", []string{"aaaa", "bbbbbb"}},
		{"html tag kept whole", "abc<b>x</b>", 5, "HTML", []string{"abc", "<b>x", "</b>"}},
		{"markdown escape kept whole", "abc\\.def", 4, "MarkdownV2", []string{"abc", "\\.de", "f"}},
	}
	for _, tc := range cases {
		got := splitTelegramText(tc.in, tc.limit, tc.mode)
		if strings.Join(got, "|") != strings.Join(tc.want, "|") {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}
