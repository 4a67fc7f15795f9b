// Package delivery sends content batches into a chat, one item at a time,
// with fixed pauses between steps and an optional pin per item.
package delivery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"lexibot/internal/content"
	"lexibot/internal/eventbus"
	"lexibot/internal/storage"
	kit "lexibot/internal/transport"
	logx "lexibot/pkg/logx"
)

// ErrBusy is returned when a batch is already running for the destination.
var ErrBusy = errors.New("delivery: a batch is already running for this chat")

// Event types published on the bus.
const (
	EventStarted = "delivery.started"
	EventItem    = "delivery.item"
	EventDone    = "delivery.done"
)

// Policy holds the pacing and presentation knobs.
type Policy struct {
	// PinDelay separates an idiom from its pin, and the pin from the next idiom.
	PinDelay time.Duration
	// QuizGap separates quiz steps (header, pin, poll, next item).
	QuizGap time.Duration

	PinIdioms      bool
	QuizPinHeader  bool
	AnonymousPolls bool

	// Per-chat token bucket; RatePerMinute <= 0 disables it.
	RatePerMinute int
	Burst         int
}

func DefaultPolicy() Policy {
	return Policy{
		PinDelay:       1500 * time.Millisecond,
		QuizGap:        1200 * time.Millisecond,
		PinIdioms:      true,
		QuizPinHeader:  true,
		AnonymousPolls: true,
		RatePerMinute:  20,
		Burst:          20,
	}
}

// Report summarizes one batch.
type Report struct {
	BatchID   string
	Kind      content.Kind
	Source    string
	Target    kit.ChatTarget
	Total     int
	Sent      int
	Failed    int
	Pinned    int
	PinFailed int
	// HeaderFailed counts quiz headers that could not be sent. Their pin
	// is never attempted, so they do not count towards PinFailed.
	HeaderFailed int
	Elapsed      time.Duration
}

// Complete reports whether every item was sent.
func (r Report) Complete() bool { return r.Sent == r.Total }

// ItemEvent is the payload of EventItem.
type ItemEvent struct {
	BatchID   string
	Kind      content.Kind
	Source    string
	Target    kit.ChatTarget
	Seq       int
	MessageID int
	Status    string
	Err       string
}

// Pipeline delivers batches. Batches for different destinations may run
// concurrently; a destination only ever has one batch in flight.
type Pipeline struct {
	sender kit.Sender
	pacer  *Pacer
	bus    eventbus.Bus
	log    logx.Logger

	policy atomic.Pointer[Policy]
	busy   sync.Map // kit.ChatTarget -> struct{}
	newID  func() string
}

// New builds a pipeline. bus may be nil.
func New(sender kit.Sender, pacer *Pacer, pol Policy, bus eventbus.Bus, log logx.Logger) *Pipeline {
	if pacer == nil {
		pacer = NewPacer(pol.RatePerMinute, pol.Burst, nil)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	p := &Pipeline{
		sender: sender,
		pacer:  pacer,
		bus:    bus,
		log:    log.With(logx.String("comp", "delivery")),
		newID:  func() string { return uuid.NewString() },
	}
	p.SetPolicy(pol)
	return p
}

// SetPolicy swaps the policy for batches started afterwards and retunes
// the token buckets immediately.
func (p *Pipeline) SetPolicy(pol Policy) {
	cp := pol
	p.policy.Store(&cp)
	p.pacer.SetRate(pol.RatePerMinute, pol.Burst)
}

func (p *Pipeline) Policy() Policy { return *p.policy.Load() }

// run is the shared batch frame: busy guard, report bookkeeping, events.
func (p *Pipeline) run(ctx context.Context, to kit.ChatTarget, kind content.Kind, source string, total int,
	step func(ctx context.Context, b *batch, seq int) error,
) (Report, error) {
	if _, loaded := p.busy.LoadOrStore(to, struct{}{}); loaded {
		return Report{Kind: kind, Source: source, Target: to, Total: total}, ErrBusy
	}
	defer p.busy.Delete(to)

	b := &batch{
		p:   p,
		pol: p.Policy(),
		rep: Report{BatchID: p.newID(), Kind: kind, Source: source, Target: to, Total: total},
	}
	b.log = p.log.With(
		logx.String("batch", b.rep.BatchID),
		logx.String("kind", string(kind)),
		logx.Int64("chat_id", to.ChatID),
		logx.Int("thread_id", to.ThreadID),
	)

	start := time.Now()
	p.publish(EventStarted, b.rep)
	b.log.Info("batch started", logx.Int("items", total), logx.String("source", source))

	var err error
	for i := 0; i < total; i++ {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = step(ctx, b, i+1); err != nil {
			break
		}
	}

	b.rep.Elapsed = time.Since(start)
	p.publish(EventDone, b.rep)
	fields := []logx.Field{
		logx.Int("sent", b.rep.Sent),
		logx.Int("failed", b.rep.Failed),
		logx.Int("pinned", b.rep.Pinned),
		logx.Int("pin_failed", b.rep.PinFailed),
		logx.Int("header_failed", b.rep.HeaderFailed),
		logx.Duration("elapsed", b.rep.Elapsed),
	}
	if err != nil {
		b.log.Warn("batch interrupted", append(fields, logx.Err(err))...)
	} else {
		b.log.Info("batch finished", fields...)
	}
	return b.rep, err
}

func (p *Pipeline) publish(typ string, data any) {
	if p.bus != nil {
		p.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}

type batch struct {
	p   *Pipeline
	pol Policy
	rep Report
	log logx.Logger
}

func (b *batch) item(seq, msgID int, status string, err error) {
	ev := ItemEvent{
		BatchID:   b.rep.BatchID,
		Kind:      b.rep.Kind,
		Source:    b.rep.Source,
		Target:    b.rep.Target,
		Seq:       seq,
		MessageID: msgID,
		Status:    status,
	}
	if err != nil {
		ev.Err = err.Error()
		b.log.Warn("delivery step failed", logx.Int("seq", seq), logx.String("status", status), logx.Err(err))
	}
	b.p.publish(EventItem, ev)
}

func (b *batch) sendText(ctx context.Context, text string) (kit.MessageRef, error) {
	if err := b.p.pacer.Admit(ctx, b.rep.Target.ChatID); err != nil {
		return kit.MessageRef{}, err
	}
	return b.p.sender.SendText(ctx, b.rep.Target, text, &kit.SendOptions{
		ParseMode:      kit.ParseModeMarkdownV2,
		DisablePreview: true,
	})
}

func (b *batch) pin(ctx context.Context, seq int, ref kit.MessageRef) {
	if err := b.p.sender.Pin(ctx, ref, true); err != nil {
		b.rep.PinFailed++
		b.item(seq, ref.MessageID, storage.StatusPinFailed, err)
		return
	}
	b.rep.Pinned++
	b.item(seq, ref.MessageID, storage.StatusPinned, nil)
}

// DeliverIdioms sends each idiom as a numbered MarkdownV2 message, pinning
// it silently when the policy says so. A failed send or pin is logged and
// the batch moves on. The returned error is ErrBusy or the context error.
func (p *Pipeline) DeliverIdioms(ctx context.Context, to kit.ChatTarget, items []content.Idiom, source string) (Report, error) {
	return p.run(ctx, to, content.KindIdiom, source, len(items), func(ctx context.Context, b *batch, seq int) error {
		ref, err := b.sendText(ctx, RenderIdiom(items[seq-1], seq))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.rep.Failed++
			b.item(seq, 0, storage.StatusFailed, err)
			return b.p.pacer.Pause(ctx, b.pol.PinDelay)
		}
		b.rep.Sent++
		b.item(seq, ref.MessageID, storage.StatusSent, nil)

		if b.pol.PinIdioms {
			if err := b.p.pacer.Pause(ctx, b.pol.PinDelay); err != nil {
				return err
			}
			b.pin(ctx, seq, ref)
		}
		return b.p.pacer.Pause(ctx, b.pol.PinDelay)
	})
}

// DeliverQuiz sends each question as a quiz poll. With QuizPinHeader a
// numbered header message goes first and is pinned. Failure handling
// matches DeliverIdioms; a failed header is counted in HeaderFailed
// and the poll still goes out.
func (p *Pipeline) DeliverQuiz(ctx context.Context, to kit.ChatTarget, items []content.QuizQuestion, source string) (Report, error) {
	return p.run(ctx, to, content.KindQuiz, source, len(items), func(ctx context.Context, b *batch, seq int) error {
		q := items[seq-1]

		if b.pol.QuizPinHeader {
			ref, err := b.sendText(ctx, QuizHeader(q, seq))
			switch {
			case err != nil && ctx.Err() != nil:
				return ctx.Err()
			case err != nil:
				b.rep.HeaderFailed++
				b.item(seq, 0, storage.StatusHeaderFailed, err)
			default:
				if err := b.p.pacer.Pause(ctx, b.pol.QuizGap); err != nil {
					return err
				}
				b.pin(ctx, seq, ref)
			}
		}

		if err := b.p.pacer.Admit(ctx, to.ChatID); err != nil {
			return err
		}
		ref, err := b.p.sender.SendPoll(ctx, to, BuildPoll(q, seq, b.pol.AnonymousPolls))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.rep.Failed++
			b.item(seq, 0, storage.StatusFailed, err)
		} else {
			b.rep.Sent++
			b.item(seq, ref.MessageID, storage.StatusSent, nil)
		}
		return b.p.pacer.Pause(ctx, b.pol.QuizGap)
	})
}
