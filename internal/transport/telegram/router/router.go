// Package router turns Telegram updates into command and free-text
// handler calls, run on a bounded worker pool.
package router

import (
	"context"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	rtsup "lexibot/internal/runtime/supervisor"
	kit "lexibot/internal/transport"
	logx "lexibot/pkg/logx"
)

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	// Timeout overrides the router's default handler timeout when > 0.
	Timeout time.Duration
	Handle  HandlerFunc
}

type Request struct {
	Update  kit.Update
	Message *kit.Message
	Chat    kit.ChatTarget
	FromID  int64
	Command string // empty for free text
	Args    []string

	RawArgs   []string
	Flags     map[string]string
	BoolFlags map[string]bool
	ReqID     string

	Sender kit.Sender
	Logger logx.Logger
}

// Reply sends plain text back into the request's chat and thread.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Sender.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

type Options struct {
	Workers        int
	QueueSize      int
	DefaultTimeout time.Duration
	// BotName returns the bot's own username; commands addressed to
	// another bot ("/start@other_bot") are ignored.
	BotName func() string
}

type Router struct {
	log    logx.Logger
	sender kit.Sender
	opts   Options

	mu       sync.RWMutex
	cmds     map[string]*Command // name and aliases
	list     []Command
	fallback HandlerFunc

	jobs chan func()
}

func New(log logx.Logger, sender kit.Sender, opts Options) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	return &Router{
		log:    log.With(logx.String("comp", "telegram.router")),
		sender: sender,
		opts:   opts,
		cmds:   map[string]*Command{},
		jobs:   make(chan func(), opts.QueueSize),
	}
}

// SetTimeout changes the default handler timeout for requests routed afterwards.
func (r *Router) SetTimeout(d time.Duration) {
	r.mu.Lock()
	r.opts.DefaultTimeout = d
	r.mu.Unlock()
}

// SetFallback installs the handler for non-command text.
func (r *Router) SetFallback(h HandlerFunc) {
	r.mu.Lock()
	r.fallback = h
	r.mu.Unlock()
}

// SetRegistry replaces the command set; /help is always added. The
// Telegram /menu list is refreshed when the sender supports it.
func (r *Router) SetRegistry(ctx context.Context, cmds []Command) {
	cmds = append(cmds, Command{
		Name:        "help",
		Aliases:     []string{"h"},
		Description: "show available commands",
		Usage:       "/help [command]",
		Handle: func(ctx context.Context, req *Request) error {
			_, err := req.Sender.SendText(ctx, req.Chat, r.helpText(req.Args), &kit.SendOptions{ParseMode: kit.ParseModeHTML, DisablePreview: true})
			return err
		},
	})

	byName := map[string]*Command{}
	list := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" || c.Handle == nil {
			continue
		}
		cc := c
		cc.Name = name
		byName[name] = &cc
		list = append(list, cc)
	}
	// aliases never shadow a real command name
	for i := range list {
		for _, a := range list[i].Aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if _, taken := byName[a]; a == "" || taken {
				continue
			}
			byName[a] = byName[list[i].Name]
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	r.mu.Lock()
	r.cmds = byName
	r.list = list
	r.mu.Unlock()

	if up, ok := r.sender.(kit.CommandMenuUpdater); ok && ctx != nil {
		go func() {
			mctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := up.UpdateMenuCommands(mctx, buildMenu(list)); err != nil {
				r.log.Warn("menu update failed", logx.Err(err))
			}
		}()
	}
}

func (r *Router) lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cmds[strings.ToLower(name)]
	if !ok {
		return Command{}, false
	}
	return *c, true
}

// tryEnqueue reports false when the queue is full or already closed.
func (r *Router) tryEnqueue(fn func()) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case r.jobs <- fn:
		return true
	default:
		return false
	}
}

// DispatchLoop consumes updates until ctx ends or updates is closed.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx, rtsup.WithLogger(r.log), rtsup.WithCancelOnError(false))
	r.log.Info("dispatcher started", logx.Int("workers", r.opts.Workers), logx.Int("queue_cap", cap(r.jobs)))

	for i := 0; i < r.opts.Workers; i++ {
		idx := i
		sup.GoRestart("router.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-r.jobs:
					if !ok {
						return nil
					}
					r.runJob(idx, job)
				}
			}
		}, rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}

	defer func() {
		close(r.jobs)
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Stop(wctx)
		cancel()
		r.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(ctx, up)
		}
	}
}

func (r *Router) runJob(worker int, job func()) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("panic in router job", logx.Int("worker", worker), logx.Any("panic", p), logx.Stack(string(debug.Stack())))
		}
	}()
	job()
}

func (r *Router) route(ctx context.Context, up kit.Update) {
	if up.Kind != kit.UpdateMessage || up.Message == nil {
		return
	}
	msg := up.Message
	to := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	text := strings.TrimSpace(msg.Text)

	if !strings.HasPrefix(text, "/") {
		r.mu.RLock()
		fb := r.fallback
		r.mu.RUnlock()
		if fb != nil && text != "" {
			r.enqueue(ctx, up, "", nil, fb, 0)
		}
		return
	}

	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return
	}
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		target := word[i+1:]
		word = word[:i]
		if r.opts.BotName != nil {
			if me := r.opts.BotName(); me != "" && !strings.EqualFold(me, target) {
				return
			}
		}
	}

	cmd, ok := r.lookup(word)
	if !ok {
		_, _ = r.sender.SendText(ctx, to, "Unknown command. Try /help", nil)
		return
	}
	r.enqueue(ctx, up, cmd.Name, parts[1:], cmd.Handle, cmd.Timeout)
}

func (r *Router) enqueue(ctx context.Context, up kit.Update, name string, raw []string, h HandlerFunc, timeout time.Duration) {
	msg := up.Message
	rid := newReqID()
	pos, flags, bools := parseFlags(raw)
	label := name
	if label == "" {
		label = "text"
	}

	req := &Request{
		Update:    up,
		Message:   msg,
		Chat:      kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		FromID:    msg.FromID,
		Command:   name,
		Args:      pos,
		RawArgs:   raw,
		Flags:     flags,
		BoolFlags: bools,
		ReqID:     rid,
		Sender:    r.sender,
		Logger: r.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int("thread_id", msg.ThreadID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", label),
		),
	}

	if timeout <= 0 {
		r.mu.RLock()
		timeout = r.opts.DefaultTimeout
		r.mu.RUnlock()
	}
	final := Chain(h,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWTimeout(timeout),
	)
	if !r.tryEnqueue(func() { _ = final(ctx, req) }) {
		_, _ = r.sender.SendText(ctx, req.Chat, "I'm busy right now, try again in a moment.", nil)
	}
}
