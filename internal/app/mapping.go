package app

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"lexibot/internal/config"
	"lexibot/internal/content"
	"lexibot/internal/delivery"
	"lexibot/internal/enrich"
	"lexibot/internal/lessons"
	"lexibot/internal/memory"
	"lexibot/internal/schedule"
	"lexibot/internal/storage"
	kit "lexibot/internal/transport"
	logx "lexibot/pkg/logx"
)

func logConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    l.Telegram.Enabled,
			ChatID:     l.Telegram.ChatID,
			ThreadID:   l.Telegram.ThreadID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

func deliveryPolicy(cfg *config.Config) (delivery.Policy, error) {
	def := delivery.DefaultPolicy()
	d := cfg.Delivery

	pinDelay, err := config.ParseDurationOrDefault("delivery.pin_delay", d.PinDelay, def.PinDelay)
	if err != nil {
		return delivery.Policy{}, err
	}
	quizGap, err := config.ParseDurationOrDefault("delivery.quiz_gap", d.QuizGap, def.QuizGap)
	if err != nil {
		return delivery.Policy{}, err
	}
	pol := delivery.Policy{
		PinDelay:       pinDelay,
		QuizGap:        quizGap,
		PinIdioms:      d.PinIdiomsOn(),
		QuizPinHeader:  d.QuizPinHeaderOn(),
		AnonymousPolls: d.QuizAnonymousOn(),
		RatePerMinute:  def.RatePerMinute,
		Burst:          def.Burst,
	}
	if d.RatePerMinute > 0 {
		pol.RatePerMinute = d.RatePerMinute
	}
	if d.Burst > 0 {
		pol.Burst = d.Burst
	}
	return pol, nil
}

func lessonSettings(cfg *config.Config) lessons.Settings {
	return lessons.Settings{
		IdiomsFile:     cfg.Content.IdiomsFile,
		IdiomsPerBatch: cfg.Content.IdiomsPerBatch,
	}
}

func handlerTimeout(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationOrDefault("telegram.handler_timeout", cfg.Telegram.HandlerTimeout, 30*time.Minute)
}

func memoryConfig(cfg *config.Config) (memory.Config, error) {
	m := cfg.Memory
	ttl, err := config.ParseDurationOrDefault("memory.ttl", m.TTL, memory.DefaultTTL)
	if err != nil {
		return memory.Config{}, err
	}
	maxEntries := m.MaxEntries
	if maxEntries <= 0 {
		maxEntries = memory.DefaultMaxEntries
	}
	return memory.Config{
		Driver:      m.Driver,
		TTL:         ttl,
		MaxEntries:  maxEntries,
		RedisAddr:   m.Redis.Addr,
		RedisDB:     m.Redis.DB,
		RedisPrefix: m.Redis.Prefix,
	}, nil
}

// storageConfig returns enabled=false when no driver is configured.
func storageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func scheduleDefs(cfg *config.Config) []schedule.Def {
	out := make([]schedule.Def, 0, len(cfg.Schedules))
	for _, s := range cfg.Schedules {
		kind := content.KindIdiom
		if strings.EqualFold(strings.TrimSpace(s.Kind), "quiz") {
			kind = content.KindQuiz
		}
		out = append(out, schedule.Def{
			Name:   strings.TrimSpace(s.Name),
			Spec:   s.Spec,
			Target: kit.ChatTarget{ChatID: s.ChatID, ThreadID: s.ThreadID},
			Kind:   kind,
			Store:  s.Store,
			Count:  s.Count,
			Enrich: s.Enrich,
		})
	}
	return out
}

// newGemini returns nil when Gemini is disabled.
func newGemini(cfg *config.Config) (*enrich.Client, error) {
	g := cfg.Gemini
	if !g.Enabled {
		return nil, nil
	}
	timeout, err := config.ParseDurationOrDefault("gemini.timeout", g.Timeout, enrich.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	return enrich.NewClient(g.APIKey,
		enrich.WithBaseURL(g.BaseURL),
		enrich.WithModel(g.Model),
		enrich.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
}

// validate is the reload gate: the static checks plus schedule specs,
// which only the schedule package can parse.
func validate(cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := schedule.Validate(cfg.Timezone, scheduleDefs(cfg)); err != nil {
		return err
	}
	if _, err := deliveryPolicy(cfg); err != nil {
		return err
	}
	_, _, err := storageConfig(cfg)
	return err
}
