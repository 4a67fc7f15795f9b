package app

import (
	"context"
	"errors"

	"lexibot/internal/config"
	"lexibot/internal/content"
	"lexibot/internal/enrich"
	"lexibot/internal/lessons"
	logx "lexibot/pkg/logx"
)

// EnrichFile enriches one quiz file and writes its enriched copy. Only the
// content and gemini sections of the config are used, so no bot token is
// needed.
func EnrichFile(ctx context.Context, cfgPath string, env config.Env, file string) (string, int, error) {
	cfg, err := config.NewManager(cfgPath, env).Parse()
	if err != nil {
		return "", 0, err
	}
	if !cfg.Gemini.Enabled {
		return "", 0, errors.New("gemini.enabled must be true to enrich")
	}
	gem, err := newGemini(cfg)
	if err != nil {
		return "", 0, err
	}

	log := logx.NewConsole(cfg.Logging.Level)
	svc := lessons.New(lessons.Deps{
		Loader:   content.NewLoader(cfg.Content.Dir, log),
		Enricher: enrich.NewEnricher(gem, log, cfg.Gemini.ExplanationChars),
		Log:      log,
	}, lessonSettings(cfg))

	path, qs, err := svc.EnrichFile(ctx, file)
	if err != nil {
		return "", 0, err
	}
	return path, len(qs), nil
}
