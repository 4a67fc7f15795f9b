package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

const sampleYAML = `
telegram:
  poll_timeout: 10s
gemini:
  enabled: true
  model: gemini-1.5-flash
logging:
  level: debug
  console: true
content:
  dir: ./data
delivery:
  pin_delay: 1500ms
  pin_idioms: false
memory:
  driver: local
  ttl: 12h
timezone: UTC
schedules:
  - name: morning
    spec: "0 8 * * *"
    chat_id: -1001
    kind: idioms
    count: 5
`

func TestParseYAMLWithEnvAndDefaults(t *testing.T) {
	t.Parallel()

	m := NewManager(writeFile(t, "lexibot.yaml", sampleYAML), Env{TelegramToken: "tok", GeminiKey: "key"})
	cfg, err := m.Load()
	require.NoError(t, err)

	require.Equal(t, "tok", cfg.Telegram.Token)
	require.Equal(t, "key", cfg.Gemini.APIKey)
	require.Equal(t, "./data", cfg.Content.Dir)
	require.Equal(t, DefaultIdiomsFile, cfg.Content.IdiomsFile)
	require.Equal(t, DefaultIdiomsPerBatch, cfg.Content.IdiomsPerBatch)
	require.False(t, cfg.Delivery.PinIdiomsOn())
	require.True(t, cfg.Delivery.QuizPinHeaderOn())
	require.True(t, cfg.Gemini.TutorOn())
	require.Len(t, cfg.Schedules, 1)
	require.Same(t, cfg, m.Get())
}

func TestFileValuesWinOverEnv(t *testing.T) {
	t.Parallel()

	m := NewManager(writeFile(t, "c.json", `{"telegram":{"token":"from-file"}}`), Env{TelegramToken: "from-env"})
	cfg, err := m.Parse()
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.Telegram.Token)
}

func TestParseRejectsUnknownFieldsAndTrailingData(t *testing.T) {
	t.Parallel()

	_, err := NewManager(writeFile(t, "c.json", `{"telegram":{"tokn":"x"}}`), Env{}).Parse()
	require.Error(t, err)

	_, err = NewManager(writeFile(t, "c.json", `{} {}`), Env{}).Parse()
	require.Error(t, err)

	_, err = NewManager(writeFile(t, "c.yml", "delivery:\n  pin_dalay: 1s\n"), Env{}).Parse()
	require.Error(t, err)
}

func TestEmptyYAMLDocument(t *testing.T) {
	t.Parallel()

	cfg, err := NewManager(writeFile(t, "c.yaml", ""), Env{TelegramToken: "t"}).Parse()
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		c := &Config{Telegram: TelegramConfig{Token: "t"}}
		ApplyDefaults(c)
		return c
	}

	cases := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"ok", func(c *Config) {}, ""},
		{"missing token", func(c *Config) { c.Telegram.Token = "" }, "telegram.token"},
		{"gemini without key", func(c *Config) { c.Gemini.Enabled = true }, "gemini.api_key"},
		{"bad duration", func(c *Config) { c.Delivery.PinDelay = "soon" }, "delivery.pin_delay"},
		{"negative duration", func(c *Config) { c.Delivery.QuizGap = "-1s" }, "delivery.quiz_gap"},
		{"redis without addr", func(c *Config) { c.Memory.Driver = "redis" }, "memory.redis.addr"},
		{"storage memory without storage", func(c *Config) { c.Memory.Driver = "storage" }, "needs storage.driver"},
		{"unknown storage", func(c *Config) { c.Storage = &StorageConfig{Driver: "pg", Path: "x"} }, "storage.driver"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"schedule kind", func(c *Config) {
			c.Schedules = []ScheduleConfig{{Name: "a", Spec: "@daily", ChatID: 1, Kind: "memes"}}
		}, "kind must be"},
		{"schedule quiz store", func(c *Config) {
			c.Schedules = []ScheduleConfig{{Name: "a", Spec: "@daily", ChatID: 1, Kind: "quiz"}}
		}, "store is required"},
		{"schedule duplicate", func(c *Config) {
			s := ScheduleConfig{Name: "a", Spec: "@daily", ChatID: 1, Kind: "idioms"}
			c.Schedules = []ScheduleConfig{s, s}
		}, "duplicated"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(c)
			err := Validate(c)
			if tc.want == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()

	d, err := ParseDurationOrDefault("x", "", time.Second)
	require.NoError(t, err)
	require.Equal(t, time.Second, d)

	d, err = ParseDurationOrDefault("x", "250ms", time.Second)
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, d)

	_, err = ParseDurationOrDefault("x", "abc", time.Second)
	require.Error(t, err)
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()

	a := &Config{Telegram: TelegramConfig{Token: "secret"}}
	b := &Config{Telegram: TelegramConfig{Token: "secret"}, Delivery: DeliveryConfig{QuizGap: "2s"}}
	ch := SummarizeChange(a, b)
	require.Equal(t, []string{"delivery"}, ch.Sections)
	require.True(t, ch.Has("delivery"))
	require.Empty(t, ch.RestartOnly())

	b.Gemini.Enabled = true
	require.Equal(t, []string{"gemini"}, SummarizeChange(a, b).RestartOnly())
}

func TestWatchPublishesReload(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "c.json", `{"telegram":{"token":"t"},"delivery":{"quiz_gap":"1s"}}`)
	m := NewManager(path, Env{})
	_, err := m.Load()
	require.NoError(t, err)

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = m.Watch(ctx)
		close(done)
	}()

	// fsnotify needs the watch in place before the write lands
	var got *Config
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte(`{"telegram":{"token":"t"},"delivery":{"quiz_gap":"3s"}}`), 0o600)
		select {
		case got = <-ch:
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, "3s", got.Delivery.QuizGap)

	cancel()
	<-done
}

func TestReloadRejectsInvalid(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "c.json", `{"telegram":{"token":"t"}}`)
	m := NewManager(path, Env{})
	first, err := m.Load()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"telegram":{"token":""}}`), 0o600))
	require.False(t, m.reload(context.Background()))
	require.Same(t, first, m.Get())

	require.NoError(t, os.WriteFile(path, []byte(`{"telegram":{"token":"t"}}`), 0o600))
	require.False(t, m.reload(context.Background()), "unchanged content must not publish")

	require.NoError(t, os.WriteFile(path, []byte(`{"telegram":{"token":"t","workers":9}}`), 0o600))
	require.True(t, m.reload(context.Background()))
	require.Equal(t, 9, m.Get().Telegram.Workers)
}
