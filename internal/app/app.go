// Package app wires configuration, the Telegram transport, delivery,
// lessons and schedules into one running bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"lexibot/internal/config"
	"lexibot/internal/content"
	"lexibot/internal/delivery"
	"lexibot/internal/enrich"
	"lexibot/internal/eventbus"
	"lexibot/internal/lessons"
	"lexibot/internal/memory"
	rtsup "lexibot/internal/runtime/supervisor"
	"lexibot/internal/schedule"
	"lexibot/internal/storage"
	kit "lexibot/internal/transport"
	telegram "lexibot/internal/transport/telegram/adapter"
	"lexibot/internal/transport/telegram/router"
	logx "lexibot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	mem   memory.Store

	adapter  *telegram.Adapter
	pipeline *delivery.Pipeline
	lessons  *lessons.Service
	router   *router.Router
	sched    *schedule.Service

	updates chan kit.Update
}

// New loads the config at cfgPath and builds every component. Nothing
// runs until Start; the bot account is contacted once to log in.
func New(cfgPath string, env config.Env) (*App, error) {
	cfgm := config.NewManager(cfgPath, env)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	// Telegram sink is attached once the adapter exists.
	logs, log := logx.New(logConfig(cfg), nil)
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, logs.Logger())
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	logs.SetSender(ad)

	a := &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logs,
		bus:     eventbus.New(),
		adapter: ad,
		updates: make(chan kit.Update, 256),
	}
	if err := a.build(cfg, ad); err != nil {
		a.closeResources()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config, sender kit.Sender) error {
	root := a.logs.Logger()

	sc, enabled, err := storageConfig(cfg)
	if err != nil {
		return err
	}
	if enabled {
		st, err := storage.Open(sc, root)
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		a.store = st
		a.log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	mc, err := memoryConfig(cfg)
	if err != nil {
		return err
	}
	openCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mem, err := memory.Open(openCtx, mc, a.store, root)
	if err != nil {
		return err
	}
	a.mem = mem

	pol, err := deliveryPolicy(cfg)
	if err != nil {
		return err
	}
	a.pipeline = delivery.New(sender, nil, pol, a.bus, root)

	loader := content.NewLoader(cfg.Content.Dir, root)
	a.log.Info("content directory", logx.String("dir", loader.Dir()))
	deps := lessons.Deps{
		Loader:   loader,
		Pipeline: a.pipeline,
		Sender:   sender,
		BotName:  a.adapter.Username,
		Log:      root,
	}
	gem, err := newGemini(cfg)
	if err != nil {
		return err
	}
	if gem != nil {
		deps.Enricher = enrich.NewEnricher(gem, root, cfg.Gemini.ExplanationChars)
		if cfg.Gemini.TutorOn() {
			deps.Tutor = enrich.NewTutor(gem, mem, root)
		}
		a.log.Info("gemini enabled", logx.String("model", gem.Model()), logx.Bool("tutor", deps.Tutor != nil))
	}
	a.lessons = lessons.New(deps, lessonSettings(cfg))

	timeout, err := handlerTimeout(cfg)
	if err != nil {
		return err
	}
	a.router = router.New(root, sender, router.Options{
		Workers:        cfg.Telegram.Workers,
		DefaultTimeout: timeout,
		BotName:        a.adapter.Username,
	})
	a.router.SetFallback(a.lessons.Fallback)

	a.sched = schedule.New(a.runDrop, root)
	return a.sched.Apply(cfg.Timezone, scheduleDefs(cfg))
}

func (a *App) Lessons() *lessons.Service { return a.lessons }

// runDrop executes one scheduled delivery.
func (a *App) runDrop(ctx context.Context, d schedule.Def) error {
	var err error
	switch d.Kind {
	case content.KindQuiz:
		_, err = a.lessons.Quiz(ctx, d.Target, d.Store, d.Enrich)
	default:
		_, err = a.lessons.Idioms(ctx, d.Target, d.Count)
	}
	return err
}

func (a *App) logSchedules() {
	for _, st := range a.sched.Snapshot() {
		a.log.Info("drop scheduled",
			logx.String("schedule", st.Name),
			logx.String("spec", st.Spec),
			logx.Time("next", st.Next),
		)
	}
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return validate(cfg) })

	a.startAudit()

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.router.SetRegistry(a.sup.Context(), a.lessons.Commands())
	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	a.sched.Start(a.sup.Context())
	a.logSchedules()

	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	notifyReady(a.log)
	a.log.Info("app started", logx.String("bot", a.adapter.Username()), logx.String("config", a.cfgm.Path()))
	return nil
}

// Push delivers a quiz file to one chat without starting the poller.
func (a *App) Push(ctx context.Context, to kit.ChatTarget, file string, enrich bool) (delivery.Report, error) {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log))
	a.startAudit()
	return a.lessons.Quiz(a.sup.Context(), to, file, enrich)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.closeResources()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	notifyStopping(a.log)

	a.sup.Cancel()

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	// audit and dispatch loops; the store must outlive them
	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	a.closeResources()
	return nil
}

func (a *App) closeResources() {
	var errs []error
	if c, ok := a.mem.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("close failed", logx.Err(err))
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}
