package storage

import (
	"context"
	"errors"
	"strings"

	logx "lexibot/pkg/logx"
)

// Store is the persistence API used by the app and the memory package.
type Store interface {
	AppendDelivery(ctx context.Context, r DeliveryRecord) error

	// PutTurn replaces the turn stored for (r.ChatID, r.UserID).
	PutTurn(ctx context.Context, r TurnRecord) error
	// GetTurn returns ok=false for missing or expired turns.
	GetTurn(ctx context.Context, chatID, userID int64) (TurnRecord, bool, error)

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
