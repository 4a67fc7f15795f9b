package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	logx "lexibot/pkg/logx"
)

//go:embed migrations.sql
var migrations string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
	now func() time.Time

	writes     atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	for _, p := range []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			log.Debug("sqlite pragma failed", logx.String("pragma", p), logx.Err(err))
		}
	}

	st := &sqliteStore{db: db, log: log, now: time.Now, pruneEvery: 200}
	if _, err := db.ExecContext(context.Background(), migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendDelivery(ctx context.Context, r DeliveryRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if r.At.IsZero() {
		r.At = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries(at, batch_id, kind, source, chat_id, thread_id, seq, message_id, status, err)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		r.At.UTC().Format(time.RFC3339Nano), r.BatchID, r.Kind, nullStr(r.Source), r.ChatID, r.ThreadID,
		r.Seq, r.MessageID, r.Status, nullStr(r.Error),
	)
	return err
}

func (s *sqliteStore) PutTurn(ctx context.Context, r TurnRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	var until int64
	if !r.Until.IsZero() {
		until = r.Until.UnixMilli()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns(chat_id, user_id, prompt, reply, until) VALUES(?,?,?,?,?)
		 ON CONFLICT(chat_id, user_id) DO UPDATE SET prompt=excluded.prompt, reply=excluded.reply, until=excluded.until`,
		r.ChatID, r.UserID, r.Prompt, r.Reply, until,
	)
	if err == nil && s.writes.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		if perr := s.pruneExpired(pctx); perr != nil {
			s.log.Debug("turn prune failed", logx.Err(perr))
		}
		cancel()
	}
	return err
}

func (s *sqliteStore) GetTurn(ctx context.Context, chatID, userID int64) (TurnRecord, bool, error) {
	if s == nil || s.db == nil {
		return TurnRecord{}, false, ErrDisabled
	}
	r := TurnRecord{ChatID: chatID, UserID: userID}
	var until int64
	err := s.db.QueryRowContext(ctx,
		`SELECT prompt, reply, until FROM turns WHERE chat_id = ? AND user_id = ?`, chatID, userID,
	).Scan(&r.Prompt, &r.Reply, &until)
	if errors.Is(err, sql.ErrNoRows) {
		return TurnRecord{}, false, nil
	}
	if err != nil {
		return TurnRecord{}, false, err
	}
	if until > 0 {
		r.Until = time.UnixMilli(until)
	}
	if r.expired(s.now()) {
		return TurnRecord{}, false, nil
	}
	return r, true, nil
}

func (s *sqliteStore) pruneExpired(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE until > 0 AND until <= ?`, s.now().UnixMilli())
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
