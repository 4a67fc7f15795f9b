package config

import (
	"os"
	"strings"
)

const (
	EnvTelegramToken = "TELEGRAM_BOT_TOKEN"
	EnvGeminiKey     = "GEMINI_API_KEY"
)

// Env holds secrets read from the environment once at startup.
type Env struct {
	TelegramToken string
	GeminiKey     string
}

func EnvFromOS() Env {
	return Env{
		TelegramToken: strings.TrimSpace(os.Getenv(EnvTelegramToken)),
		GeminiKey:     strings.TrimSpace(os.Getenv(EnvGeminiKey)),
	}
}

// Apply fills secrets the config file left empty. File values win.
func (e Env) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		cfg.Telegram.Token = e.TelegramToken
	}
	if strings.TrimSpace(cfg.Gemini.APIKey) == "" {
		cfg.Gemini.APIKey = e.GeminiKey
	}
}
