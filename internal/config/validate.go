package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultContentDir     = "."
	DefaultIdiomsFile     = "idioms.json"
	DefaultIdiomsPerBatch = 20
	DefaultWorkers        = 4
)

// ApplyDefaults fills the fields whose zero value is not meaningful.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.Content.Dir) == "" {
		cfg.Content.Dir = DefaultContentDir
	}
	if strings.TrimSpace(cfg.Content.IdiomsFile) == "" {
		cfg.Content.IdiomsFile = DefaultIdiomsFile
	}
	if cfg.Content.IdiomsPerBatch <= 0 {
		cfg.Content.IdiomsPerBatch = DefaultIdiomsPerBatch
	}
	if cfg.Telegram.Workers <= 0 {
		cfg.Telegram.Workers = DefaultWorkers
	}
}

// Validate checks a parsed config. Every problem is reported, not just the first.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }
	dur := func(path, raw string) {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		add("telegram.token is required (or set %s)", EnvTelegramToken)
	}
	dur("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	dur("telegram.handler_timeout", cfg.Telegram.HandlerTimeout)

	if cfg.Gemini.Enabled && strings.TrimSpace(cfg.Gemini.APIKey) == "" {
		add("gemini.api_key is required when gemini.enabled (or set %s)", EnvGeminiKey)
	}
	dur("gemini.timeout", cfg.Gemini.Timeout)
	if cfg.Gemini.ExplanationChars < 0 {
		add("gemini.explanation_chars must be >= 0")
	}

	if cfg.Logging.Telegram.Enabled && cfg.Logging.Telegram.ChatID == 0 {
		add("logging.telegram.chat_id is required when logging.telegram.enabled")
	}

	dur("delivery.pin_delay", cfg.Delivery.PinDelay)
	dur("delivery.quiz_gap", cfg.Delivery.QuizGap)
	if cfg.Delivery.RatePerMinute < 0 || cfg.Delivery.Burst < 0 {
		add("delivery.rate_per_minute and delivery.burst must be >= 0")
	}

	dur("memory.ttl", cfg.Memory.TTL)
	switch strings.ToLower(strings.TrimSpace(cfg.Memory.Driver)) {
	case "", "local", "memory":
	case "redis":
		if strings.TrimSpace(cfg.Memory.Redis.Addr) == "" {
			add("memory.redis.addr is required for the redis driver")
		}
	case "storage":
		if !storageEnabled(cfg.Storage) {
			add("memory.driver \"storage\" needs storage.driver")
		}
	default:
		add("memory.driver: unknown value %q", cfg.Memory.Driver)
	}

	if cfg.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(cfg.Storage.Path) == "" {
				add("storage.path is required for driver %q", cfg.Storage.Driver)
			}
		default:
			add("storage.driver: unknown value %q", cfg.Storage.Driver)
		}
		dur("storage.busy_timeout", cfg.Storage.BusyTimeout)
	}

	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add("timezone: %v", err)
		}
	}

	seen := map[string]bool{}
	for i, s := range cfg.Schedules {
		path := fmt.Sprintf("schedules[%d]", i)
		name := strings.TrimSpace(s.Name)
		switch {
		case name == "":
			add("%s.name is required", path)
		case seen[name]:
			add("%s.name %q is duplicated", path, name)
		}
		seen[name] = true
		if strings.TrimSpace(s.Spec) == "" {
			add("%s.spec is required", path)
		}
		if s.ChatID == 0 {
			add("%s.chat_id is required", path)
		}
		switch strings.ToLower(strings.TrimSpace(s.Kind)) {
		case "idioms":
			if s.Enrich {
				add("%s.enrich only applies to quiz drops", path)
			}
		case "quiz":
			if strings.TrimSpace(s.Store) == "" {
				add("%s.store is required for quiz drops", path)
			}
			if s.Enrich && !cfg.Gemini.Enabled {
				add("%s.enrich needs gemini.enabled", path)
			}
		default:
			add("%s.kind must be \"idioms\" or \"quiz\"", path)
		}
	}

	return errors.Join(errs...)
}

func storageEnabled(s *StorageConfig) bool {
	if s == nil {
		return false
	}
	d := strings.ToLower(strings.TrimSpace(s.Driver))
	return d != "" && d != "none"
}
