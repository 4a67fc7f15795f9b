package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lexibot/internal/content"
	"lexibot/internal/eventbus"
	kit "lexibot/internal/transport"
	logx "lexibot/pkg/logx"
)

// recorder is a fake sender and sleeper sharing one ordered op log.
type recorder struct {
	mu       sync.Mutex
	ops      []string
	slept    time.Duration
	nextID   int
	failText map[int]bool // 1-based SendText call numbers that fail
	failPoll bool
	failPin  bool
	texts    int
	block    chan struct{}
}

func (r *recorder) log(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *recorder) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.texts++
	n := r.texts
	fail := r.failText[n]
	r.nextID++
	id := r.nextID
	r.mu.Unlock()
	if opt == nil || opt.ParseMode != kit.ParseModeMarkdownV2 {
		return kit.MessageRef{}, errors.New("missing parse mode")
	}
	if fail {
		r.log("text!")
		return kit.MessageRef{}, errors.New("flood")
	}
	r.log(fmt.Sprintf("text#%d", id))
	return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: id}, nil
}

func (r *recorder) SendPoll(ctx context.Context, to kit.ChatTarget, p kit.Poll) (kit.MessageRef, error) {
	if r.failPoll {
		r.log("poll!")
		return kit.MessageRef{}, errors.New("bad poll")
	}
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.mu.Unlock()
	r.log(fmt.Sprintf("poll#%d", id))
	return kit.MessageRef{ChatID: to.ChatID, MessageID: id}, nil
}

func (r *recorder) Pin(ctx context.Context, ref kit.MessageRef, silent bool) error {
	if !silent {
		return errors.New("pin must be silent")
	}
	if r.failPin {
		r.log("pin!")
		return errors.New("not admin")
	}
	r.log(fmt.Sprintf("pin#%d", ref.MessageID))
	return nil
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.slept += d
	r.mu.Unlock()
	r.log("sleep " + d.String())
	return ctx.Err()
}

func newTestPipeline(r *recorder, pol Policy, bus eventbus.Bus) *Pipeline {
	pol.RatePerMinute = 0
	return New(r, NewPacer(0, 0, r.sleep), pol, bus, logx.Nop())
}

func twoIdioms() []content.Idiom {
	return []content.Idiom{
		{Phrase: "break the ice", Interpretation: "start a conversation"},
		{Phrase: "spill the beans", Interpretation: "reveal a secret", Examples: []string{"He spilled the beans."}},
	}
}

func twoQuestions() []content.QuizQuestion {
	return []content.QuizQuestion{
		{Question: "Q1?", A: "a", B: "b", C: "c", D: "d", Answer: "B"},
		{Question: "Q2?", A: "a", B: "b", C: "c", D: "d", Answer: "D"},
	}
}

func TestDeliverIdiomsPinsAndPaces(t *testing.T) {
	t.Parallel()

	r := &recorder{}
	p := newTestPipeline(r, DefaultPolicy(), nil)

	rep, err := p.DeliverIdioms(context.Background(), kit.ChatTarget{ChatID: -100, ThreadID: 7}, twoIdioms(), "idioms.json")
	require.NoError(t, err)
	require.Equal(t, []string{
		"text#1", "sleep 1.5s", "pin#1", "sleep 1.5s",
		"text#2", "sleep 1.5s", "pin#2", "sleep 1.5s",
	}, r.ops)
	require.Equal(t, 6*time.Second, r.slept)
	require.Equal(t, 2, rep.Sent)
	require.Equal(t, 2, rep.Pinned)
	require.True(t, rep.Complete())
	require.NotEmpty(t, rep.BatchID)
}

func TestDeliverIdiomsWithoutPins(t *testing.T) {
	t.Parallel()

	r := &recorder{}
	pol := DefaultPolicy()
	pol.PinIdioms = false
	p := newTestPipeline(r, pol, nil)

	_, err := p.DeliverIdioms(context.Background(), kit.ChatTarget{ChatID: 1}, twoIdioms(), "x")
	require.NoError(t, err)
	require.Equal(t, []string{"text#1", "sleep 1.5s", "text#2", "sleep 1.5s"}, r.ops)
}

func TestDeliverIdiomsContinuesAfterFailures(t *testing.T) {
	t.Parallel()

	r := &recorder{failText: map[int]bool{1: true}, failPin: true}
	p := newTestPipeline(r, DefaultPolicy(), nil)

	rep, err := p.DeliverIdioms(context.Background(), kit.ChatTarget{ChatID: 1}, twoIdioms(), "x")
	require.NoError(t, err)
	require.Equal(t, 1, rep.Failed)
	require.Equal(t, 1, rep.Sent)
	require.Equal(t, 1, rep.PinFailed)
	require.False(t, rep.Complete())
	require.Equal(t, "text!", r.ops[0])
	require.Contains(t, r.ops, "pin!")
}

func TestDeliverQuizHeaderVariant(t *testing.T) {
	t.Parallel()

	r := &recorder{}
	p := newTestPipeline(r, DefaultPolicy(), nil)

	rep, err := p.DeliverQuiz(context.Background(), kit.ChatTarget{ChatID: 5}, twoQuestions(), "quiz.json")
	require.NoError(t, err)
	require.Equal(t, []string{
		"text#1", "sleep 1.2s", "pin#1", "poll#2", "sleep 1.2s",
		"text#3", "sleep 1.2s", "pin#3", "poll#4", "sleep 1.2s",
	}, r.ops)
	require.Equal(t, 2, rep.Sent)
	require.Equal(t, 2, rep.Pinned)
}

func TestDeliverQuizPlain(t *testing.T) {
	t.Parallel()

	r := &recorder{}
	pol := DefaultPolicy()
	pol.QuizPinHeader = false
	p := newTestPipeline(r, pol, nil)

	rep, err := p.DeliverQuiz(context.Background(), kit.ChatTarget{ChatID: 5}, twoQuestions(), "quiz.json")
	require.NoError(t, err)
	require.Equal(t, []string{"poll#1", "sleep 1.2s", "poll#2", "sleep 1.2s"}, r.ops)
	require.Equal(t, 2400*time.Millisecond, r.slept)
	require.Zero(t, rep.Pinned)
}

func TestDeliverQuizHeaderFailureStillSendsPoll(t *testing.T) {
	t.Parallel()

	r := &recorder{failText: map[int]bool{1: true}}
	p := newTestPipeline(r, DefaultPolicy(), nil)

	rep, err := p.DeliverQuiz(context.Background(), kit.ChatTarget{ChatID: 5}, twoQuestions()[:1], "q")
	require.NoError(t, err)
	require.Equal(t, []string{"text!", "poll#2", "sleep 1.2s"}, r.ops)
	require.Equal(t, 1, rep.Sent)
	require.Equal(t, 1, rep.HeaderFailed)
	require.Zero(t, rep.PinFailed)
	require.Zero(t, rep.Pinned)
	require.True(t, rep.Complete())
}

func TestDeliverQuizPollFailureCounted(t *testing.T) {
	t.Parallel()

	r := &recorder{failPoll: true}
	pol := DefaultPolicy()
	pol.QuizPinHeader = false
	p := newTestPipeline(r, pol, nil)

	rep, err := p.DeliverQuiz(context.Background(), kit.ChatTarget{ChatID: 5}, twoQuestions(), "q")
	require.NoError(t, err)
	require.Equal(t, 2, rep.Failed)
	require.Zero(t, rep.Sent)
}

func TestDeliverEmptyBatch(t *testing.T) {
	t.Parallel()

	r := &recorder{}
	p := newTestPipeline(r, DefaultPolicy(), nil)

	rep, err := p.DeliverIdioms(context.Background(), kit.ChatTarget{ChatID: 1}, nil, "x")
	require.NoError(t, err)
	require.Empty(t, r.ops)
	require.True(t, rep.Complete())
}

func TestDeliverStopsOnCancel(t *testing.T) {
	t.Parallel()

	r := &recorder{}
	p := newTestPipeline(r, DefaultPolicy(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := p.DeliverIdioms(ctx, kit.ChatTarget{ChatID: 1}, twoIdioms(), "x")
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, rep.Sent)
}

func TestDeliverRejectsConcurrentBatchForSameChat(t *testing.T) {
	t.Parallel()

	r := &recorder{block: make(chan struct{})}
	p := newTestPipeline(r, DefaultPolicy(), nil)
	to := kit.ChatTarget{ChatID: 9}

	done := make(chan error, 1)
	go func() {
		_, err := p.DeliverIdioms(context.Background(), to, twoIdioms()[:1], "x")
		done <- err
	}()

	require.Eventually(t, func() bool {
		_, busy := p.busy.Load(to)
		return busy
	}, time.Second, time.Millisecond)

	_, err := p.DeliverQuiz(context.Background(), to, twoQuestions(), "q")
	require.ErrorIs(t, err, ErrBusy)

	close(r.block)
	require.NoError(t, <-done)

	// the guard is released once the batch finishes
	r.block = nil
	_, err = p.DeliverIdioms(context.Background(), to, twoIdioms()[:1], "x")
	require.NoError(t, err)
}

func TestDeliverPublishesEvents(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	ch, unsub := bus.Subscribe(32, "delivery.")
	defer unsub()

	r := &recorder{}
	p := newTestPipeline(r, DefaultPolicy(), bus)
	p.newID = func() string { return "batch-1" }

	_, err := p.DeliverIdioms(context.Background(), kit.ChatTarget{ChatID: 1}, twoIdioms()[:1], "x")
	require.NoError(t, err)

	var types []string
	for len(ch) > 0 {
		ev := <-ch
		types = append(types, ev.Type)
		if it, ok := ev.Data.(ItemEvent); ok {
			require.Equal(t, "batch-1", it.BatchID)
			require.Equal(t, 1, it.Seq)
		}
	}
	require.Equal(t, []string{EventStarted, EventItem, EventItem, EventDone}, types)
}
