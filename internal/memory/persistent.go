package memory

import (
	"context"
	"time"

	"lexibot/internal/storage"
)

// Persistent keeps turns in the storage layer so they survive restarts.
type Persistent struct {
	st  storage.Store
	ttl time.Duration
	now func() time.Time
}

func NewPersistent(st storage.Store, ttl time.Duration) *Persistent {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Persistent{st: st, ttl: ttl, now: time.Now}
}

func (p *Persistent) Get(ctx context.Context, k Key) (Turn, bool, error) {
	r, ok, err := p.st.GetTurn(ctx, k.ChatID, k.UserID)
	if err != nil || !ok {
		return Turn{}, false, err
	}
	return Turn{Prompt: r.Prompt, Reply: r.Reply}, true, nil
}

func (p *Persistent) Put(ctx context.Context, k Key, t Turn) error {
	return p.st.PutTurn(ctx, storage.TurnRecord{
		ChatID: k.ChatID,
		UserID: k.UserID,
		Prompt: t.Prompt,
		Reply:  t.Reply,
		Until:  p.now().Add(p.ttl),
	})
}
