// Package memory keeps the last tutor exchange per (chat, user) pair.
//
// Exactly one Turn is kept per Key and every successful reply overwrites
// it. Stores bound their growth with a TTL and, for the in-process store,
// a maximum entry count.
package memory

import (
	"context"
	"errors"
	"strings"
	"time"

	"lexibot/internal/storage"
	logx "lexibot/pkg/logx"
)

// Key identifies a conversation: a user inside a chat.
type Key struct {
	ChatID int64
	UserID int64
}

// Turn is one prompt and the reply it received.
type Turn struct {
	Prompt string `json:"prompt"`
	Reply  string `json:"reply"`
}

// Store is the conversational memory contract.
// Get returns ok=false when nothing (or nothing unexpired) is stored.
type Store interface {
	Get(ctx context.Context, k Key) (Turn, bool, error)
	Put(ctx context.Context, k Key, t Turn) error
}

// Config selects and tunes a Store.
type Config struct {
	Driver      string // "local" (default), "redis", "storage"
	TTL         time.Duration
	MaxEntries  int
	RedisAddr   string
	RedisDB     int
	RedisPrefix string
}

const (
	DefaultTTL        = 24 * time.Hour
	DefaultMaxEntries = 10000
)

// Open builds the configured store. st is only used by the "storage"
// driver and may be nil otherwise.
func Open(ctx context.Context, cfg Config, st storage.Store, log logx.Logger) (Store, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "local", "memory":
		return NewLocal(cfg.TTL, cfg.MaxEntries), nil
	case "redis":
		return NewRedis(ctx, RedisOptions{Addr: cfg.RedisAddr, DB: cfg.RedisDB, Prefix: cfg.RedisPrefix, TTL: cfg.TTL}, log)
	case "storage":
		if st == nil {
			return nil, errors.New("memory: driver \"storage\" needs storage.driver to be set")
		}
		return NewPersistent(st, cfg.TTL), nil
	default:
		return nil, errors.New("memory: unknown driver: " + cfg.Driver)
	}
}
