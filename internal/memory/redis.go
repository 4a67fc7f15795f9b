package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	logx "lexibot/pkg/logx"
)

type RedisOptions struct {
	Addr   string
	DB     int
	Prefix string
	TTL    time.Duration
}

// Redis stores one JSON value per key with SET ... EX ttl, so expiry is
// handled by the server.
type Redis struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	log    logx.Logger
}

// NewRedis connects and pings the server before returning.
func NewRedis(ctx context.Context, opt RedisOptions, log logx.Logger) (*Redis, error) {
	addr := strings.TrimSpace(opt.Addr)
	if addr == "" {
		return nil, errors.New("memory: redis addr is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DB:          opt.DB,
		DialTimeout: 5 * time.Second,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("memory: redis ping %s: %w", addr, err)
	}
	return newRedisWithClient(client, opt, log), nil
}

func newRedisWithClient(client *goredis.Client, opt RedisOptions, log logx.Logger) *Redis {
	prefix := strings.TrimSpace(opt.Prefix)
	if prefix == "" {
		prefix = "lexibot:memory"
	}
	ttl := opt.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl, log: log.With(logx.String("comp", "memory.redis"))}
}

func (r *Redis) key(k Key) string {
	return fmt.Sprintf("%s:%d:%d", r.prefix, k.ChatID, k.UserID)
}

func (r *Redis) Get(ctx context.Context, k Key) (Turn, bool, error) {
	raw, err := r.client.Get(ctx, r.key(k)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return Turn{}, false, nil
	}
	if err != nil {
		return Turn{}, false, fmt.Errorf("memory: redis get: %w", err)
	}
	var t Turn
	if err := json.Unmarshal(raw, &t); err != nil {
		r.log.Warn("discarding undecodable memory entry", logx.String("key", r.key(k)), logx.Err(err))
		return Turn{}, false, nil
	}
	return t, true, nil
}

func (r *Redis) Put(ctx context.Context, k Key, t Turn) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(k), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("memory: redis set: %w", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }
