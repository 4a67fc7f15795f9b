package delivery

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real-time SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const gateIdle = 10 * time.Minute

// Pacer spaces out outbound writes. Pause applies the fixed per-step
// delays; Admit waits on a per-chat token bucket so bursts from several
// entry points into one chat stay under Telegram's flood limits.
type Pacer struct {
	sleep SleepFunc

	mu        sync.Mutex
	perMinute int
	burst     int
	gates     map[int64]*gate
}

type gate struct {
	lim  *rate.Limiter
	used time.Time
}

// NewPacer builds a pacer. perMinute <= 0 disables the token bucket.
// A nil sleep uses Sleep.
func NewPacer(perMinute, burst int, sleep SleepFunc) *Pacer {
	if sleep == nil {
		sleep = Sleep
	}
	return &Pacer{sleep: sleep, perMinute: perMinute, burst: burst, gates: map[int64]*gate{}}
}

func limitFor(perMinute int) rate.Limit {
	if perMinute <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(perMinute) / 60.0)
}

func burstFor(perMinute, burst int) int {
	if burst > 0 {
		return burst
	}
	if perMinute > 0 {
		return perMinute
	}
	return 1
}

// Pause blocks for d unless ctx ends first.
func (p *Pacer) Pause(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}

// Admit takes one token from chatID's bucket, waiting if it is empty.
func (p *Pacer) Admit(ctx context.Context, chatID int64) error {
	return p.gate(chatID).Wait(ctx)
}

// SetRate retunes every existing bucket and the default for new ones.
func (p *Pacer) SetRate(perMinute, burst int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.perMinute, p.burst = perMinute, burst
	for _, g := range p.gates {
		g.lim.SetLimit(limitFor(perMinute))
		g.lim.SetBurst(burstFor(perMinute, burst))
	}
}

func (p *Pacer) gate(chatID int64) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	g, ok := p.gates[chatID]
	if !ok {
		for id, old := range p.gates {
			if now.Sub(old.used) > gateIdle {
				delete(p.gates, id)
			}
		}
		g = &gate{lim: rate.NewLimiter(limitFor(p.perMinute), burstFor(p.perMinute, p.burst))}
		p.gates[chatID] = g
	}
	g.used = now
	return g.lim
}
