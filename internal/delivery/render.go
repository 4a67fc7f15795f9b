package delivery

import (
	"fmt"
	"strings"

	"lexibot/internal/content"
	kit "lexibot/internal/transport"
	"lexibot/pkg/tgui"
)

// emptyOption fills blank option slots; Telegram rejects empty options and
// dropping one would shift the correct position.
const emptyOption = "-"

// RenderIdiom formats an idiom as a MarkdownV2 message numbered n.
func RenderIdiom(it content.Idiom, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔹 *Idiom %d*\n*%s*\n\n💡 *Meaning:* _%s_",
		n, tgui.EscapeMarkdownV2(it.Phrase), tgui.EscapeMarkdownV2(it.Interpretation))

	examples := make([]string, 0, len(it.Examples))
	for _, ex := range it.Examples {
		if s := strings.TrimSpace(ex); s != "" {
			examples = append(examples, s)
		}
	}
	if len(examples) > 0 {
		b.WriteString("\n\n🧾 *Examples:*")
		for i, ex := range examples {
			fmt.Fprintf(&b, "\n   ➤ _Example %d:_ %s", i+1, tgui.EscapeMarkdownV2(ex))
		}
	}
	return b.String()
}

// QuizHeader is the numbered MarkdownV2 message pinned above a quiz poll.
func QuizHeader(q content.QuizQuestion, n int) string {
	return fmt.Sprintf("📝 *Question no\\. %d*\n\n*%s*", n, tgui.EscapeMarkdownV2(strings.TrimSpace(q.Question)))
}

// BuildPoll maps a question onto a quiz poll. Poll fields are plain text,
// so nothing is escaped; each field is clamped to Telegram's limit.
func BuildPoll(q content.QuizQuestion, n int, anonymous bool) kit.Poll {
	question := strings.TrimSpace(q.Question)
	if question == "" {
		question = fmt.Sprintf("Question %d", n)
	}

	opts := q.Options()
	options := make([]string, len(opts))
	for i, o := range opts {
		o = strings.TrimSpace(o)
		if o == "" {
			o = emptyOption
		}
		options[i] = tgui.Clamp(o, tgui.MaxPollOption)
	}

	p := kit.Poll{
		Question:      tgui.Clamp(question, tgui.MaxPollQuestion),
		Options:       options,
		CorrectOption: q.CorrectIndex(),
		Anonymous:     anonymous,
	}
	if ex := strings.TrimSpace(q.Explanation); ex != "" {
		p.Explanation = tgui.Clamp(ex, tgui.MaxPollExplanation)
	}
	return p
}
