package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "1500ms", "10s", "24h").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Gemini   GeminiConfig   `json:"gemini"`
	Logging  LoggingConfig  `json:"logging"`
	Content  ContentConfig  `json:"content"`
	Delivery DeliveryConfig `json:"delivery"`
	Memory   MemoryConfig   `json:"memory"`
	Storage  *StorageConfig `json:"storage,omitempty"`

	// Timezone for schedules (IANA name). Empty means local time.
	Timezone  string           `json:"timezone,omitempty"`
	Schedules []ScheduleConfig `json:"schedules,omitempty"`
}

type TelegramConfig struct {
	// Token may be left empty and supplied via TELEGRAM_BOT_TOKEN.
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout"`
	// Workers bounds concurrently handled updates.
	Workers int `json:"workers,omitempty"`
	// HandlerTimeout caps one handler run: a whole /start or /quiz batch, or
	// one tutor reply. Empty or "0s" means 30m.
	HandlerTimeout string `json:"handler_timeout,omitempty"`
}

// GeminiConfig configures enrichment and the tutor.
type GeminiConfig struct {
	Enabled bool `json:"enabled"`
	// APIKey may be left empty and supplied via GEMINI_API_KEY.
	APIKey  string `json:"api_key,omitempty"`
	Model   string `json:"model,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	Timeout string `json:"timeout,omitempty"`
	// ExplanationChars is the length asked of the model per explanation.
	ExplanationChars int `json:"explanation_chars,omitempty"`
	// Tutor answers free text with the model. Defaults to Enabled.
	Tutor *bool `json:"tutor,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type ContentConfig struct {
	Dir            string `json:"dir"`
	IdiomsFile     string `json:"idioms_file,omitempty"`
	IdiomsPerBatch int    `json:"idioms_per_batch,omitempty"`
}

// DeliveryConfig mirrors delivery.Policy. Booleans are pointers so an
// omitted key keeps its default.
type DeliveryConfig struct {
	PinDelay      string `json:"pin_delay,omitempty"`
	QuizGap       string `json:"quiz_gap,omitempty"`
	PinIdioms     *bool  `json:"pin_idioms,omitempty"`
	QuizPinHeader *bool  `json:"quiz_pin_header,omitempty"`
	QuizAnonymous *bool  `json:"quiz_anonymous,omitempty"`
	RatePerMinute int    `json:"rate_per_minute,omitempty"`
	Burst         int    `json:"burst,omitempty"`
}

// MemoryConfig selects the tutor memory store.
//
// Example:
//
//	"memory": { "driver": "redis", "ttl": "12h", "redis": { "addr": "127.0.0.1:6379" } }
type MemoryConfig struct {
	Driver     string      `json:"driver,omitempty"` // local | redis | storage
	TTL        string      `json:"ttl,omitempty"`
	MaxEntries int         `json:"max_entries,omitempty"`
	Redis      RedisConfig `json:"redis,omitempty"`
}

type RedisConfig struct {
	Addr   string `json:"addr,omitempty"`
	DB     int    `json:"db,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./lexibot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// ScheduleConfig is one cron-triggered drop into a chat.
type ScheduleConfig struct {
	Name     string `json:"name"`
	Spec     string `json:"spec"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
	Kind     string `json:"kind"`            // idioms | quiz
	Store    string `json:"store,omitempty"` // quiz file
	Count    int    `json:"count,omitempty"` // idioms per drop
	Enrich   bool   `json:"enrich,omitempty"`
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// PinIdiomsOn reports the effective pin_idioms setting (default true).
func (d DeliveryConfig) PinIdiomsOn() bool { return boolOr(d.PinIdioms, true) }

// QuizPinHeaderOn reports the effective quiz_pin_header setting (default true).
func (d DeliveryConfig) QuizPinHeaderOn() bool { return boolOr(d.QuizPinHeader, true) }

// QuizAnonymousOn reports the effective quiz_anonymous setting (default true).
func (d DeliveryConfig) QuizAnonymousOn() bool { return boolOr(d.QuizAnonymous, true) }

// TutorOn reports whether free text goes to the model.
func (g GeminiConfig) TutorOn() bool { return g.Enabled && boolOr(g.Tutor, true) }
