package config

import (
	"reflect"
	"strings"

	logx "lexibot/pkg/logx"
)

// Change lists the sections that differ between two configs.
type Change struct {
	Sections []string
	// Attrs are safe to log: secrets are never included.
	Attrs []logx.Field
}

func (c Change) Has(section string) bool {
	for _, s := range c.Sections {
		if s == section {
			return true
		}
	}
	return false
}

// RestartOnly reports sections that only take effect after a restart.
func (c Change) RestartOnly() []string {
	var out []string
	for _, s := range c.Sections {
		switch s {
		case "telegram", "gemini", "memory", "storage":
			out = append(out, s)
		}
	}
	return out
}

// SummarizeChange compares oldCfg and newCfg section by section.
func SummarizeChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change
	mark := func(section string, attrs ...logx.Field) {
		ch.Sections = append(ch.Sections, section)
		ch.Attrs = append(ch.Attrs, attrs...)
	}

	if !reflect.DeepEqual(oldCfg.Telegram, newCfg.Telegram) {
		mark("telegram",
			logx.String("telegram.poll_timeout", newCfg.Telegram.PollTimeout),
			logx.Int("telegram.workers", newCfg.Telegram.Workers),
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
		)
	}
	if !reflect.DeepEqual(oldCfg.Gemini, newCfg.Gemini) {
		mark("gemini",
			logx.Bool("gemini.enabled", newCfg.Gemini.Enabled),
			logx.String("gemini.model", newCfg.Gemini.Model),
			logx.Bool("gemini.tutor", newCfg.Gemini.TutorOn()),
		)
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		mark("logging",
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Content, newCfg.Content) {
		mark("content",
			logx.String("content.dir", newCfg.Content.Dir),
			logx.String("content.idioms_file", newCfg.Content.IdiomsFile),
			logx.Int("content.idioms_per_batch", newCfg.Content.IdiomsPerBatch),
		)
	}
	if !reflect.DeepEqual(oldCfg.Delivery, newCfg.Delivery) {
		mark("delivery",
			logx.String("delivery.pin_delay", newCfg.Delivery.PinDelay),
			logx.String("delivery.quiz_gap", newCfg.Delivery.QuizGap),
			logx.Bool("delivery.pin_idioms", newCfg.Delivery.PinIdiomsOn()),
			logx.Int("delivery.rate_per_minute", newCfg.Delivery.RatePerMinute),
		)
	}
	if !reflect.DeepEqual(oldCfg.Memory, newCfg.Memory) {
		mark("memory", logx.String("memory.driver", newCfg.Memory.Driver))
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		driver := ""
		if newCfg.Storage != nil {
			driver = newCfg.Storage.Driver
		}
		mark("storage", logx.String("storage.driver", driver))
	}
	if strings.TrimSpace(oldCfg.Timezone) != strings.TrimSpace(newCfg.Timezone) ||
		!reflect.DeepEqual(oldCfg.Schedules, newCfg.Schedules) {
		mark("schedules",
			logx.String("timezone", newCfg.Timezone),
			logx.Int("schedules.count", len(newCfg.Schedules)),
		)
	}
	return ch
}
