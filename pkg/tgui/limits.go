package tgui

// Telegram Bot API field limits, counted in UTF-16 code units.
const (
	MaxMessageText     = 4096
	MaxPollQuestion    = 300
	MaxPollOption      = 100
	MaxPollExplanation = 200
)
