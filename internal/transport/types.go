package transport

import "context"

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

const (
	ParseModeMarkdownV2 = "MarkdownV2"
	ParseModeHTML       = "HTML"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	ChatType     string // as reported by Telegram: private, group, supergroup, channel
	ThreadID     int    // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Silent         bool
}

// Poll is a single-answer quiz poll. Options keep their positions;
// CorrectOption indexes into Options.
type Poll struct {
	Question      string
	Options       []string
	CorrectOption int
	Explanation   string
	Anonymous     bool
}

// Sender is the outbound half of a chat transport.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendPoll(ctx context.Context, to ChatTarget, p Poll) (MessageRef, error)
	Pin(ctx context.Context, ref MessageRef, silent bool) error
}

type Adapter interface {
	Sender

	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	// Username is the bot's own handle without "@" (empty before login).
	Username() string
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update platform-specific bot command menus (e.g. Telegram /menu list).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
