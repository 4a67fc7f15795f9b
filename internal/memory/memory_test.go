package memory

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"lexibot/internal/storage"
	logx "lexibot/pkg/logx"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestLocalOverwritesPerKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewLocal(time.Hour, 10)
	k := Key{ChatID: 7, UserID: 42}

	_, ok, err := m.Get(ctx, k)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.Put(ctx, k, Turn{Prompt: "P1", Reply: "R1"}))
	require.NoError(t, m.Put(ctx, k, Turn{Prompt: "P2", Reply: "R2"}))

	got, ok, err := m.Get(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Turn{Prompt: "P2", Reply: "R2"}, got)
	require.Equal(t, 1, m.Len())

	_, ok, _ = m.Get(ctx, Key{ChatID: 7, UserID: 43})
	require.False(t, ok)
}

func TestLocalExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := NewLocal(time.Minute, 10)
	m.now = clock.Now

	k := Key{ChatID: 1, UserID: 1}
	require.NoError(t, m.Put(ctx, k, Turn{Prompt: "p", Reply: "r"}))

	clock.Advance(59 * time.Second)
	_, ok, _ := m.Get(ctx, k)
	require.True(t, ok)

	clock.Advance(time.Second)
	_, ok, _ = m.Get(ctx, k)
	require.False(t, ok)
	require.Equal(t, 0, m.Len())
}

func TestLocalEvictsOldestWhenFull(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := NewLocal(time.Hour, 2)
	m.now = clock.Now

	a, b, c := Key{1, 1}, Key{1, 2}, Key{1, 3}
	require.NoError(t, m.Put(ctx, a, Turn{Prompt: "a"}))
	clock.Advance(time.Second)
	require.NoError(t, m.Put(ctx, b, Turn{Prompt: "b"}))
	clock.Advance(time.Second)
	// rewriting an existing key never evicts
	require.NoError(t, m.Put(ctx, a, Turn{Prompt: "a2"}))
	clock.Advance(time.Second)
	require.NoError(t, m.Put(ctx, c, Turn{Prompt: "c"}))

	require.Equal(t, 2, m.Len())
	_, ok, _ := m.Get(ctx, b)
	require.False(t, ok, "b was the least recently written")
	got, ok, _ := m.Get(ctx, a)
	require.True(t, ok)
	require.Equal(t, "a2", got.Prompt)
}

func TestPersistentUsesStorage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "s.json")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	m, err := Open(ctx, Config{Driver: "storage", TTL: time.Hour}, st, logx.Nop())
	require.NoError(t, err)

	k := Key{ChatID: -1001, UserID: 5}
	require.NoError(t, m.Put(ctx, k, Turn{Prompt: "Ano ang idiom?", Reply: "😊 Isang pahayag..."}))
	got, ok, err := m.Get(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Ano ang idiom?", got.Prompt)
}

func TestOpenDrivers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, err := Open(ctx, Config{}, nil, logx.Nop())
	require.NoError(t, err)
	require.IsType(t, &Local{}, m)

	_, err = Open(ctx, Config{Driver: "storage"}, nil, logx.Nop())
	require.Error(t, err)

	_, err = Open(ctx, Config{Driver: "redis"}, nil, logx.Nop())
	require.Error(t, err)

	_, err = Open(ctx, Config{Driver: "etcd"}, nil, logx.Nop())
	require.Error(t, err)
}

func TestRedisKeyLayout(t *testing.T) {
	t.Parallel()

	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	r := newRedisWithClient(client, RedisOptions{}, logx.Nop())
	require.Equal(t, "lexibot:memory:-100:42", r.key(Key{ChatID: -100, UserID: 42}))
	require.Equal(t, DefaultTTL, r.ttl)

	r = newRedisWithClient(client, RedisOptions{Prefix: "tutor", TTL: time.Minute}, logx.Nop())
	require.Equal(t, "tutor:1:2", r.key(Key{ChatID: 1, UserID: 2}))
}
