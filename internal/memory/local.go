package memory

import (
	"context"
	"sync"
	"time"
)

// Local is an in-process Store bounded by TTL and entry count.
// When full, the least recently written entry is evicted.
type Local struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	now     func() time.Time
	entries map[Key]localEntry
}

type localEntry struct {
	turn    Turn
	written time.Time
}

func NewLocal(ttl time.Duration, maxEntries int) *Local {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Local{ttl: ttl, max: maxEntries, now: time.Now, entries: map[Key]localEntry{}}
}

func (l *Local) Get(_ context.Context, k Key) (Turn, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[k]
	if !ok {
		return Turn{}, false, nil
	}
	if l.now().Sub(e.written) >= l.ttl {
		delete(l.entries, k)
		return Turn{}, false, nil
	}
	return e.turn, true, nil
}

func (l *Local) Put(_ context.Context, k Key, t Turn) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if _, exists := l.entries[k]; !exists && len(l.entries) >= l.max {
		l.evictLocked(now)
	}
	l.entries[k] = localEntry{turn: t, written: now}
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Local) evictLocked(now time.Time) {
	var (
		oldest   Key
		oldestAt time.Time
		found    bool
	)
	for k, e := range l.entries {
		if now.Sub(e.written) >= l.ttl {
			delete(l.entries, k)
			continue
		}
		if !found || e.written.Before(oldestAt) {
			oldest, oldestAt, found = k, e.written, true
		}
	}
	if len(l.entries) >= l.max && found {
		delete(l.entries, oldest)
	}
}
