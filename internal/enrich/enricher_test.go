package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"lexibot/internal/content"
	logx "lexibot/pkg/logx"
)

type fakeGen struct {
	reply string
	err   error
	calls [][]Content
}

func (f *fakeGen) Generate(_ context.Context, contents []Content) (string, error) {
	f.calls = append(f.calls, contents)
	return f.reply, f.err
}

func sampleQuiz() []content.QuizQuestion {
	return []content.QuizQuestion{
		{Question: "2+2?", A: "3", B: "4", C: "5", D: "6", Answer: "B"},
		{Question: "Sky color?", A: "Blue", B: "Red", C: "Green", D: "Black", Answer: "a"},
	}
}

func TestEnrichQuiz_AttachesByPosition(t *testing.T) {
	t.Parallel()

	gen := &fakeGen{reply: "Sure! Here you go:\n```json\n[" +
		`{"question":"changed by model","explanation":"Two plus two is four."},` +
		`{"explanation":"  Rayleigh scattering.  "}` +
		"]\n```"}
	e := NewEnricher(gen, logx.Nop(), 0)

	in := sampleQuiz()
	out, err := e.EnrichQuiz(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "2+2?", out[0].Question, "question text never comes from the reply")
	require.Equal(t, "Two plus two is four.", out[0].Explanation)
	require.Equal(t, "Rayleigh scattering.", out[1].Explanation)
	require.Empty(t, in[0].Explanation, "input must not be mutated")

	require.Len(t, gen.calls, 1)
	require.Len(t, gen.calls[0], 1)
	prompt := gen.calls[0][0].Parts[0].Text
	require.Contains(t, prompt, "at most 100 characters")
	require.Contains(t, prompt, `"question": "2+2?"`)
	require.NotContains(t, prompt, TutorInstruction)
}

func TestEnrichQuiz_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		gen     *fakeGen
		wantErr error
	}{
		{name: "transport", gen: &fakeGen{err: errors.New("dial tcp: refused")}, wantErr: ErrNoEnrichment},
		{name: "no array", gen: &fakeGen{reply: "Sorry, I can't."}, wantErr: ErrNoArray},
		{name: "malformed", gen: &fakeGen{reply: `[{"explanation": }]`}, wantErr: ErrMalformed},
		{name: "not objects", gen: &fakeGen{reply: `["a","b"]`}, wantErr: ErrMalformed},
		{name: "short", gen: &fakeGen{reply: `[{"explanation":"only one"}]`}, wantErr: ErrCountMismatch},
		{name: "long", gen: &fakeGen{reply: `[{},{},{}]`}, wantErr: ErrCountMismatch},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := NewEnricher(tt.gen, logx.Nop(), 80).EnrichQuiz(context.Background(), sampleQuiz())
			require.Nil(t, out)
			require.ErrorIs(t, err, tt.wantErr)
			require.ErrorIs(t, err, ErrNoEnrichment)
		})
	}
}

func TestEnrichQuiz_EmptyBatchSkipsCall(t *testing.T) {
	t.Parallel()

	gen := &fakeGen{}
	out, err := NewEnricher(gen, logx.Nop(), 0).EnrichQuiz(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, out)
	require.Empty(t, gen.calls)
}

func TestEnrichQuiz_KeepsExistingExplanationWhenReplyBlank(t *testing.T) {
	t.Parallel()

	in := sampleQuiz()
	in[1].Explanation = "Already explained."
	gen := &fakeGen{reply: `[{"explanation":"new"},{"explanation":""}]`}

	out, err := NewEnricher(gen, logx.Nop(), 0).EnrichQuiz(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "new", out[0].Explanation)
	require.Equal(t, "Already explained.", out[1].Explanation)
	require.True(t, strings.HasPrefix(gen.calls[0][0].Parts[0].Text, "Please add a short 'explanation' field"))
}

func TestEnrichQuiz_LogsReplyHeadOnRuneBoundary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	gen := &fakeGen{reply: "x" + strings.Repeat("é", 300)}
	_, err := NewEnricher(gen, logx.NewWriter(&buf, "warn"), 0).EnrichQuiz(context.Background(), sampleQuiz())
	require.ErrorIs(t, err, ErrNoEnrichment)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	head, _ := line["reply_head"].(string)
	require.True(t, utf8.ValidString(head))
	require.Equal(t, 201, utf8.RuneCountInString(head))
	require.True(t, strings.HasSuffix(head, "…"))
}
