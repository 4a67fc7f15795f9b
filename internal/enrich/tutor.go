package enrich

import (
	"context"
	"errors"
	"strings"

	"lexibot/internal/memory"
	logx "lexibot/pkg/logx"
)

// TutorInstruction is sent as the first user turn of every tutor request.
const TutorInstruction = "You are a helpful AI tutor for LET review students. " +
	"Auto-detect the language (Filipino or English) and reply in the same language. " +
	"Start your reply with 1 appropriate emoji. " +
	"Be concise, friendly, and easy to understand. " +
	"Don't use formatting, just plain text."

// Tutor answers chat messages, carrying one previous exchange per
// (chat, user) as context.
type Tutor struct {
	gen         Generator
	mem         memory.Store
	log         logx.Logger
	instruction string
}

func NewTutor(gen Generator, mem memory.Store, log logx.Logger) *Tutor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Tutor{gen: gen, mem: mem, log: log.With(logx.String("comp", "tutor")), instruction: TutorInstruction}
}

// Conversation builds the request: instruction, the previous exchange when
// one is remembered, then the new prompt.
func (t *Tutor) Conversation(ctx context.Context, k memory.Key, prompt string) []Content {
	contents := []Content{UserText(t.instruction)}
	if t.mem != nil {
		prev, ok, err := t.mem.Get(ctx, k)
		if err != nil {
			t.log.Warn("memory read failed", logx.Int64("chat_id", k.ChatID), logx.Int64("user_id", k.UserID), logx.Err(err))
		}
		if ok {
			contents = append(contents, UserText(prev.Prompt), ModelText(prev.Reply))
		}
	}
	return append(contents, UserText(prompt))
}

// Reply asks the model and, on success, overwrites the remembered exchange.
func (t *Tutor) Reply(ctx context.Context, k memory.Key, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("tutor: empty prompt")
	}
	reply, err := t.gen.Generate(ctx, t.Conversation(ctx, k, prompt))
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", ErrEmptyReply
	}
	if t.mem != nil {
		if err := t.mem.Put(ctx, k, memory.Turn{Prompt: prompt, Reply: reply}); err != nil {
			t.log.Warn("memory write failed", logx.Int64("chat_id", k.ChatID), logx.Int64("user_id", k.UserID), logx.Err(err))
		}
	}
	return reply, nil
}
