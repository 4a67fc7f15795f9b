package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines audit + snapshot/journal for turns
//   - "sqlite": a single SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Delivery statuses.
const (
	StatusSent      = "sent"
	StatusPinned    = "pinned"
	StatusFailed    = "failed"
	StatusPinFailed = "pin_failed"

	StatusHeaderFailed = "header_failed"
)

// DeliveryRecord is one audited delivery step.
type DeliveryRecord struct {
	At        time.Time `json:"at"`
	BatchID   string    `json:"batch_id"`
	Kind      string    `json:"kind"`
	Source    string    `json:"source,omitempty"`
	ChatID    int64     `json:"chat_id"`
	ThreadID  int       `json:"thread_id,omitempty"`
	Seq       int       `json:"seq"`
	MessageID int       `json:"message_id,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// TurnRecord is the last tutor exchange for a (chat, user) pair.
type TurnRecord struct {
	ChatID int64     `json:"chat_id"`
	UserID int64     `json:"user_id"`
	Prompt string    `json:"prompt"`
	Reply  string    `json:"reply"`
	Until  time.Time `json:"until"`
}

func (r TurnRecord) expired(now time.Time) bool {
	return !r.Until.IsZero() && !now.Before(r.Until)
}
