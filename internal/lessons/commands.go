package lessons

import (
	"context"
	"strconv"
	"strings"

	"lexibot/internal/transport/telegram/router"
)

// Commands returns the chat commands backed by s. They run under the
// router's handler timeout, which covers a whole batch.
func (s *Service) Commands() []router.Command {
	return []router.Command{
		{
			Name:        "start",
			Aliases:     []string{"idioms"},
			Description: "send a batch of idioms",
			Usage:       "/start [count]",
			Handle:      s.handleIdioms,
		},
		{
			Name:        "quiz",
			Description: "send a quiz file as polls",
			Usage:       "/quiz <file> [--enrich]",
			Handle:      s.handleQuiz,
		},
	}
}

// Fallback is the router handler for non-command text.
func (s *Service) Fallback(ctx context.Context, req *router.Request) error {
	return s.Chat(ctx, req.Message)
}

func (s *Service) handleIdioms(ctx context.Context, req *router.Request) error {
	count := 0
	if len(req.Args) > 0 {
		n, err := strconv.Atoi(req.Args[0])
		if err != nil || n <= 0 {
			return req.Reply(ctx, "Usage: /start [count]")
		}
		count = n
	}
	_, err := s.Idioms(ctx, req.Chat, count)
	return err
}

func (s *Service) handleQuiz(ctx context.Context, req *router.Request) error {
	name, enrich := quizArgs(req)
	if name == "" {
		return req.Reply(ctx, "Usage: /quiz <file> [--enrich]")
	}
	_, err := s.Quiz(ctx, req.Chat, name, enrich)
	return err
}

// quizArgs accepts "/quiz f --enrich", "/quiz --enrich f", "/quiz -e f"
// and "/quiz f enrich".
func quizArgs(req *router.Request) (name string, enrich bool) {
	enrich = req.BoolFlags["enrich"] || req.BoolFlags["e"]
	for _, k := range []string{"enrich", "e"} {
		if v, ok := req.Flags[k]; ok {
			enrich = true
			if name == "" {
				name = v
			}
		}
	}
	for _, a := range req.Args {
		if strings.EqualFold(a, "enrich") {
			enrich = true
			continue
		}
		if name == "" {
			name = a
		}
	}
	return name, enrich
}
