package content

import (
	"encoding/json"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	logx "lexibot/pkg/logx"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"  Quiz1 ":      "quiz1.json",
		"quiz1.json":    "quiz1.json",
		"IDIOMS.JSON":   "idioms.json",
		"../secret":     "secret.json",
		"nested/dir/Q2": "q2.json",
		"":              ".json",
	}
	for in, want := range tests {
		require.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}

func TestLoadQuiz(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "quiz1.json", `[
		{"question":"2+2?","a":"3","b":"4","c":"5","d":"6","answer":"b"},
		{"question":"Capital of PH?","a":"Cebu","b":"Davao","c":"Manila","d":"Iloilo","answer":"C"}
	]`)

	l := NewLoader(dir, logx.Nop())
	qs, norm, err := l.LoadQuiz("  Quiz1 ")
	require.NoError(t, err)
	require.Equal(t, "quiz1.json", norm)
	require.Len(t, qs, 2)
	require.Equal(t, "2+2?", qs[0].Question)
	require.Equal(t, 1, qs[0].CorrectIndex())
	require.Equal(t, 2, qs[1].CorrectIndex())
}

func TestLoadFailuresReturnEmptyBatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "broken.json", `{"not":"an array"}`)
	writeFile(t, dir, "garbage.json", `[{"phrase":`)
	l := NewLoader(dir, logx.Nop())

	for _, name := range []string{"missing", "broken", "garbage", "   "} {
		items, _, err := l.LoadIdioms(name)
		require.ErrorIs(t, err, ErrLoad, name)
		require.NotNil(t, items, name)
		require.Empty(t, items, name)
	}
}

func TestLoadIdioms(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "idioms.json", `[
		{"phrase":"Break the ice","interpretation":"Start a conversation","examples":["She told a joke to break the ice."]},
		{"phrase":"Bite the bullet","interpretation":"Face something hard","examples":[]}
	]`)

	items, norm, err := NewLoader(dir, logx.Nop()).LoadIdioms("idioms")
	require.NoError(t, err)
	require.Equal(t, "idioms.json", norm)
	require.Len(t, items, 2)
	require.Equal(t, []string{"She told a joke to break the ice."}, items[0].Examples)
	require.Empty(t, items[1].Examples)
}

func TestSaveEnrichedLeavesSourceIntact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := `[{"question":"Q <1>","a":"x","b":"y","c":"z","d":"w","answer":"a"}]`
	writeFile(t, dir, "quiz1.json", src)
	l := NewLoader(dir, logx.Nop())

	qs, norm, err := l.LoadQuiz("quiz1")
	require.NoError(t, err)
	qs[0].Explanation = "Kasi ganoon."

	path, err := l.SaveEnriched(norm, qs)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "enriched_quiz1.json"), path)

	orig, err := os.ReadFile(filepath.Join(dir, "quiz1.json"))
	require.NoError(t, err)
	require.Equal(t, src, string(orig))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "Q <1>")
	var back []QuizQuestion
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, qs, back)
}

func TestAnswerIndex(t *testing.T) {
	t.Parallel()

	cases := map[string]int{"A": 0, "b": 1, " C ": 2, "d": 3, "": 0, "E": 0, "answer": 0}
	for in, want := range cases {
		require.Equal(t, want, AnswerIndex(in), "AnswerIndex(%q)", in)
	}
}

func TestSample(t *testing.T) {
	t.Parallel()

	items := []int{1, 2, 3, 4, 5}
	r := rand.New(rand.NewPCG(1, 2))

	got := Sample(items, 3, r)
	require.Len(t, got, 3)
	seen := map[int]bool{}
	for _, v := range got {
		require.Contains(t, items, v)
		require.False(t, seen[v], "duplicate %d", v)
		seen[v] = true
	}

	require.Len(t, Sample(items, 20, r), 5)
	require.ElementsMatch(t, items, Sample(items, 0, r))
	require.Equal(t, []int{1, 2, 3, 4, 5}, items, "input must not be reordered")
}
