package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"lexibot/internal/content"
	logx "lexibot/pkg/logx"
	"lexibot/pkg/tgui"
)

// DefaultExplanationChars is the explanation length requested from the model.
const DefaultExplanationChars = 100

// Enricher attaches model-written explanations to quiz questions.
type Enricher struct {
	gen      Generator
	log      logx.Logger
	maxChars int
}

func NewEnricher(gen Generator, log logx.Logger, maxChars int) *Enricher {
	if maxChars <= 0 {
		maxChars = DefaultExplanationChars
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Enricher{gen: gen, log: log.With(logx.String("comp", "enrich")), maxChars: maxChars}
}

func (e *Enricher) prompt(qs []content.QuizQuestion) (string, error) {
	b, err := json.MarshalIndent(qs, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"Please add a short 'explanation' field (at most %d characters) to each question object in the JSON array below. "+
			"Keep every object, in the same order. Respond with valid JSON only:\n\n%s",
		e.maxChars, b,
	), nil
}

type explained struct {
	Explanation string `json:"explanation"`
}

// EnrichQuiz makes one model call for the whole batch and returns a copy of
// qs with explanations attached by position. Questions, options and answers
// always come from qs, never from the reply. Any failure (transport, no
// array, malformed array, wrong item count) returns an error wrapping
// ErrNoEnrichment and qs is left untouched.
func (e *Enricher) EnrichQuiz(ctx context.Context, qs []content.QuizQuestion) ([]content.QuizQuestion, error) {
	if len(qs) == 0 {
		return []content.QuizQuestion{}, nil
	}
	prompt, err := e.prompt(qs)
	if err != nil {
		return nil, fmt.Errorf("%w: encode batch: %w", ErrNoEnrichment, err)
	}

	reply, err := e.gen.Generate(ctx, []Content{UserText(prompt)})
	if err != nil {
		e.log.Warn("enrichment request failed", logx.Int("items", len(qs)), logx.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrNoEnrichment, err)
	}

	raw, err := ExtractArray(reply)
	if err != nil {
		e.log.Warn("enrichment reply unusable", logx.Err(err), logx.String("reply_head", tgui.TruncRunes(reply, 200)))
		return nil, err
	}
	var items []explained
	if err := json.Unmarshal(raw, &items); err != nil {
		e.log.Warn("enrichment reply has unexpected item shape", logx.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(items) != len(qs) {
		e.log.Warn("enrichment reply item count mismatch", logx.Int("want", len(qs)), logx.Int("got", len(items)))
		return nil, fmt.Errorf("%w: want %d, got %d", ErrCountMismatch, len(qs), len(items))
	}

	out := make([]content.QuizQuestion, len(qs))
	missing := 0
	for i, q := range qs {
		out[i] = q
		if ex := strings.TrimSpace(items[i].Explanation); ex != "" {
			out[i].Explanation = ex
		} else {
			missing++
		}
	}
	e.log.Info("batch enriched", logx.Int("items", len(out)), logx.Int("missing_explanations", missing))
	return out, nil
}
