package delivery

import (
	"strings"
	"testing"

	"lexibot/internal/content"
	"lexibot/pkg/tgui"
)

func TestRenderIdiom(t *testing.T) {
	t.Parallel()

	got := RenderIdiom(content.Idiom{
		Phrase:         "hit the sack",
		Interpretation: "go to bed.",
		Examples:       []string{"I'm tired, I'll hit the sack!", "  ", "Time to hit the sack (finally)."},
	}, 3)

	want := "🔹 *Idiom 3*\n*hit the sack*\n\n💡 *Meaning:* _go to bed\\._" +
		"\n\n🧾 *Examples:*" +
		"\n   ➤ _Example 1:_ I'm tired, I'll hit the sack\\!" +
		"\n   ➤ _Example 2:_ Time to hit the sack \\(finally\\)\\."
	if got != want {
		t.Fatalf("got\n%s\nwant\n%s", got, want)
	}
}

func TestRenderIdiomWithoutExamples(t *testing.T) {
	t.Parallel()

	got := RenderIdiom(content.Idiom{Phrase: "a-ok", Interpretation: "fine"}, 1)
	if strings.Contains(got, "Examples") {
		t.Fatalf("examples section should be omitted: %q", got)
	}
	if !strings.Contains(got, "*a\\-ok*") {
		t.Fatalf("phrase not escaped: %q", got)
	}
}

func TestQuizHeader(t *testing.T) {
	t.Parallel()

	got := QuizHeader(content.QuizQuestion{Question: " What does 'piece of cake' mean? "}, 12)
	want := "📝 *Question no\\. 12*\n\n*What does 'piece of cake' mean?*"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestBuildPoll(t *testing.T) {
	t.Parallel()

	q := content.QuizQuestion{
		Question:    "Pick *one*",
		A:           "x",
		B:           "",
		C:           strings.Repeat("c", 150),
		D:           "d",
		Answer:      " c ",
		Explanation: strings.Repeat("e", 250),
	}
	p := BuildPoll(q, 4, true)

	if p.Question != "Pick *one*" {
		t.Fatalf("poll text must not be escaped: %q", p.Question)
	}
	if len(p.Options) != 4 || p.Options[1] != emptyOption {
		t.Fatalf("options=%q", p.Options)
	}
	if n := tgui.UTF16Len(p.Options[2]); n != tgui.MaxPollOption {
		t.Fatalf("option len=%d", n)
	}
	if p.CorrectOption != 2 {
		t.Fatalf("correct=%d", p.CorrectOption)
	}
	if n := tgui.UTF16Len(p.Explanation); n != tgui.MaxPollExplanation {
		t.Fatalf("explanation len=%d", n)
	}
	if !p.Anonymous {
		t.Fatalf("expected anonymous poll")
	}
}

func TestBuildPollBlankQuestion(t *testing.T) {
	t.Parallel()

	p := BuildPoll(content.QuizQuestion{A: "a", B: "b", C: "c", D: "d"}, 7, false)
	if p.Question != "Question 7" {
		t.Fatalf("question=%q", p.Question)
	}
	if p.Explanation != "" || p.CorrectOption != 0 {
		t.Fatalf("unexpected poll: %+v", p)
	}
}
