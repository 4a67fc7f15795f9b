// Package lessons holds the user-facing flows: idiom drops, quizzes and
// the tutor chat fallback. Commands, schedules and the CLI all call into it.
package lessons

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"lexibot/internal/content"
	"lexibot/internal/delivery"
	"lexibot/internal/memory"
	kit "lexibot/internal/transport"
	logx "lexibot/pkg/logx"
)

const (
	MsgIdiomsLoadFailed = "❌ Failed to load idioms."
	MsgIdiomsDone       = "🎉 All idioms sent!"
	MsgQuizDone         = "🎉 All polls sent!"
	MsgHint             = "Hi! Use /start to get idioms with examples 😊"
	MsgTutorDown        = "⚠️ I couldn't reach the tutor right now."
	MsgBusy             = "⏳ I'm still sending the previous batch here. Try again when it finishes."
	MsgEnrichDisabled   = "❌ Explanations are not available: Gemini is disabled."
	MsgEnriching        = "🧠 Adding explanations..."
)

var (
	ErrNoContent      = errors.New("lessons: nothing to deliver")
	ErrEnrichDisabled = errors.New("lessons: enrichment is disabled")
)

type Deliverer interface {
	DeliverIdioms(ctx context.Context, to kit.ChatTarget, items []content.Idiom, source string) (delivery.Report, error)
	DeliverQuiz(ctx context.Context, to kit.ChatTarget, items []content.QuizQuestion, source string) (delivery.Report, error)
}

type QuizEnricher interface {
	EnrichQuiz(ctx context.Context, qs []content.QuizQuestion) ([]content.QuizQuestion, error)
}

type Replier interface {
	Reply(ctx context.Context, k memory.Key, prompt string) (string, error)
}

// Settings are the hot-reloadable knobs.
type Settings struct {
	IdiomsFile     string
	IdiomsPerBatch int
}

type Deps struct {
	Loader   *content.Loader
	Pipeline Deliverer
	Sender   kit.Sender
	// Enricher and Tutor are nil when Gemini is disabled.
	Enricher QuizEnricher
	Tutor    Replier
	// BotName returns the bot's username for mention checks in groups.
	BotName func() string
	Log     logx.Logger
	// Rand is used for idiom sampling; nil uses the global source.
	Rand *rand.Rand
}

type Service struct {
	d        Deps
	log      logx.Logger
	settings atomic.Pointer[Settings]
	randMu   sync.Mutex
}

func New(d Deps, s Settings) *Service {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.BotName == nil {
		d.BotName = func() string { return "" }
	}
	svc := &Service{d: d, log: d.Log.With(logx.String("comp", "lessons"))}
	svc.SetSettings(s)
	return svc
}

func (s *Service) SetSettings(st Settings) {
	if strings.TrimSpace(st.IdiomsFile) == "" {
		st.IdiomsFile = "idioms.json"
	}
	if st.IdiomsPerBatch <= 0 {
		st.IdiomsPerBatch = 20
	}
	s.settings.Store(&st)
}

func (s *Service) Settings() Settings { return *s.settings.Load() }

// EnrichEnabled reports whether quizzes can get model explanations.
func (s *Service) EnrichEnabled() bool { return s.d.Enricher != nil }

func (s *Service) notify(ctx context.Context, to kit.ChatTarget, text string) {
	if _, err := s.d.Sender.SendText(ctx, to, text, &kit.SendOptions{DisablePreview: true}); err != nil {
		s.log.Warn("notice not sent", logx.Int64("chat_id", to.ChatID), logx.Err(err))
	}
}

func (s *Service) sample(items []content.Idiom, n int) []content.Idiom {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return content.Sample(items, n, s.d.Rand)
}

// Idioms sends a random sample of count idioms (the configured batch size
// when count <= 0) with progress and completion notices.
func (s *Service) Idioms(ctx context.Context, to kit.ChatTarget, count int) (delivery.Report, error) {
	st := s.Settings()
	if count <= 0 {
		count = st.IdiomsPerBatch
	}
	s.notify(ctx, to, fmt.Sprintf("⏳ Preparing %d idioms...", count))

	items, norm, err := s.d.Loader.LoadIdioms(st.IdiomsFile)
	if err != nil || len(items) == 0 {
		s.notify(ctx, to, MsgIdiomsLoadFailed)
		if err == nil {
			err = fmt.Errorf("%w: %s is empty", ErrNoContent, norm)
		}
		return delivery.Report{Kind: content.KindIdiom, Target: to}, err
	}

	rep, err := s.d.Pipeline.DeliverIdioms(ctx, to, s.sample(items, count), norm)
	s.finish(ctx, to, rep, err, "idioms", MsgIdiomsDone)
	return rep, err
}

// Quiz loads a quiz file and sends it as polls. With enrich, explanations
// are generated first and saved beside the source; an enrichment failure
// aborts the quiz.
func (s *Service) Quiz(ctx context.Context, to kit.ChatTarget, name string, enrich bool) (delivery.Report, error) {
	norm := content.Normalize(name)
	empty := delivery.Report{Kind: content.KindQuiz, Source: norm, Target: to}
	if enrich && s.d.Enricher == nil {
		s.notify(ctx, to, MsgEnrichDisabled)
		return empty, ErrEnrichDisabled
	}
	s.notify(ctx, to, fmt.Sprintf("⏳ Preparing quiz %s...", norm))

	qs, _, err := s.d.Loader.LoadQuiz(norm)
	if err != nil || len(qs) == 0 {
		s.notify(ctx, to, fmt.Sprintf("❌ Failed to load quiz %s.", norm))
		if err == nil {
			err = fmt.Errorf("%w: %s is empty", ErrNoContent, norm)
		}
		return empty, err
	}

	if enrich {
		s.notify(ctx, to, MsgEnriching)
		enriched, path, err := s.enrich(ctx, norm, qs)
		if err != nil {
			s.notify(ctx, to, "❌ Couldn't add explanations, so the quiz was not sent.")
			return empty, err
		}
		if path != "" {
			s.notify(ctx, to, "✅ Saved enriched JSON to "+content.EnrichedPrefix+norm)
		}
		qs = enriched
	}

	rep, err := s.d.Pipeline.DeliverQuiz(ctx, to, qs, norm)
	s.finish(ctx, to, rep, err, "polls", MsgQuizDone)
	return rep, err
}

// EnrichFile enriches a quiz file and writes the enriched copy. It returns
// the written path; unlike Quiz, a failed write is an error.
func (s *Service) EnrichFile(ctx context.Context, name string) (string, []content.QuizQuestion, error) {
	if s.d.Enricher == nil {
		return "", nil, ErrEnrichDisabled
	}
	qs, norm, err := s.d.Loader.LoadQuiz(name)
	if err != nil {
		return "", nil, err
	}
	if len(qs) == 0 {
		return "", nil, fmt.Errorf("%w: %s is empty", ErrNoContent, norm)
	}
	enriched, err := s.d.Enricher.EnrichQuiz(ctx, qs)
	if err != nil {
		return "", nil, err
	}
	path, err := s.d.Loader.SaveEnriched(norm, enriched)
	if err != nil {
		return "", nil, err
	}
	return path, enriched, nil
}

// enrich returns the enriched questions and where they were saved. A save
// failure is logged; the enriched questions are still usable.
func (s *Service) enrich(ctx context.Context, norm string, qs []content.QuizQuestion) ([]content.QuizQuestion, string, error) {
	enriched, err := s.d.Enricher.EnrichQuiz(ctx, qs)
	if err != nil {
		return nil, "", err
	}
	path, err := s.d.Loader.SaveEnriched(norm, enriched)
	if err != nil {
		s.log.Warn("enriched copy not saved", logx.String("file", norm), logx.Err(err))
		return enriched, "", nil
	}
	return enriched, path, nil
}

func (s *Service) finish(ctx context.Context, to kit.ChatTarget, rep delivery.Report, err error, noun, done string) {
	switch {
	case errors.Is(err, delivery.ErrBusy):
		s.notify(ctx, to, MsgBusy)
	case err != nil:
		// shutting down; the chat may not be reachable anyway
		s.notify(context.WithoutCancel(ctx), to, fmt.Sprintf("⚠️ Stopped after %d of %d %s.", rep.Sent, rep.Total, noun))
	case rep.Complete():
		s.notify(ctx, to, done)
	default:
		s.notify(ctx, to, fmt.Sprintf("⚠️ Sent %d of %d %s; %d failed.", rep.Sent, rep.Total, noun, rep.Failed))
	}
}

// Chat answers free text. In groups only messages that mention the bot
// are answered, with the mention removed from the prompt.
func (s *Service) Chat(ctx context.Context, msg *kit.Message) error {
	if msg == nil {
		return nil
	}
	prompt := strings.TrimSpace(msg.Text)
	if prompt == "" {
		return nil
	}
	if msg.IsGroup {
		p, ok := StripMention(prompt, s.d.BotName())
		if !ok {
			return nil
		}
		prompt = p
	}
	to := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	if s.d.Tutor == nil || prompt == "" {
		s.notify(ctx, to, MsgHint)
		return nil
	}
	reply, err := s.d.Tutor.Reply(ctx, memory.Key{ChatID: msg.ChatID, UserID: msg.FromID}, prompt)
	if err != nil {
		s.notify(ctx, to, MsgTutorDown)
		return err
	}
	s.notify(ctx, to, reply)
	return nil
}

// StripMention reports whether text mentions @username (any case) and
// returns text with every such mention removed.
func StripMention(text, username string) (string, bool) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return text, false
	}
	handle := "@" + username

	var b strings.Builder
	found := false
	for i := 0; i < len(text); {
		if text[i] == '@' && i+len(handle) <= len(text) && strings.EqualFold(text[i:i+len(handle)], handle) {
			found = true
			i += len(handle)
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		b.WriteString(text[i : i+size])
		i += size
	}
	if !found {
		return text, false
	}
	return strings.Join(strings.Fields(b.String()), " "), true
}
