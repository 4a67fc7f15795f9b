// Package schedule fires configured lesson drops on cron schedules.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"lexibot/internal/content"
	kit "lexibot/internal/transport"
	logx "lexibot/pkg/logx"
)

// Def is one scheduled drop.
type Def struct {
	Name   string
	Spec   string
	Target kit.ChatTarget
	Kind   content.Kind
	// Store is the quiz file for quiz drops.
	Store  string
	Count  int
	Enrich bool
}

// Runner executes a drop. Errors are logged by the service.
type Runner func(ctx context.Context, d Def) error

type entry struct {
	def  Def
	spec Spec
	id   cron.EntryID
}

type Service struct {
	log    logx.Logger
	runner Runner

	mu      sync.Mutex
	c       *cron.Cron
	ctx     context.Context
	loc     *time.Location
	tz      string
	entries []entry
}

func New(runner Runner, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:    log.With(logx.String("comp", "schedule")),
		runner: runner,
		loc:    time.Local,
	}
}

// Validate checks every definition without installing anything.
func Validate(tz string, defs []Def) error {
	_, _, err := prepare(tz, defs)
	return err
}

func prepare(tz string, defs []Def) (*time.Location, []entry, error) {
	var errs []error
	loc := time.Local
	if tz = strings.TrimSpace(tz); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			errs = append(errs, fmt.Errorf("timezone %q: %w", tz, err))
		} else {
			loc = l
		}
	}
	out := make([]entry, 0, len(defs))
	for _, d := range defs {
		sp, err := ParseSpec(d.Spec)
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule %q: %w", d.Name, err))
			continue
		}
		if d.Kind != content.KindIdiom && d.Kind != content.KindQuiz {
			errs = append(errs, fmt.Errorf("schedule %q: unknown kind %q", d.Name, d.Kind))
			continue
		}
		out = append(out, entry{def: d, spec: sp})
	}
	return loc, out, errors.Join(errs...)
}

// Apply replaces the schedule set. An invalid set is rejected whole and
// the running schedules stay untouched.
func (s *Service) Apply(tz string, defs []Def) error {
	loc, entries, err := prepare(tz, defs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tz, s.loc, s.entries = strings.TrimSpace(tz), loc, entries
	if s.c != nil {
		s.restartLocked()
	}
	return nil
}

// Start begins triggering. Drops run with ctx, so cancelling it stops
// in-flight deliveries.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.ctx = ctx
	s.restartLocked()
}

func (s *Service) restartLocked() {
	if s.c != nil {
		// running drops finish on their own; the busy guard refuses overlaps
		s.c.Stop()
	}
	cl := cronLogger{log: s.log}
	s.c = cron.New(
		cron.WithParser(parser),
		cron.WithLocation(s.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	for i := range s.entries {
		e := &s.entries[i]
		e.id = s.c.Schedule(e.spec.sched, s.job(s.ctx, e.def))
		s.log.Debug("schedule registered",
			logx.String("name", e.def.Name),
			logx.String("spec", e.spec.Cron),
			logx.Time("next", e.spec.Next(time.Now().In(s.loc))),
		)
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.String("tz", s.loc.String()), logx.Int("schedules", len(s.entries)))
}

func (s *Service) job(ctx context.Context, d Def) cron.Job {
	return cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		s.Run(ctx, d)
	})
}

// Run executes one drop immediately.
func (s *Service) Run(ctx context.Context, d Def) {
	start := time.Now()
	log := s.log.With(logx.String("name", d.Name), logx.String("kind", string(d.Kind)), logx.Int64("chat_id", d.Target.ChatID))
	log.Info("scheduled drop triggered")
	if err := s.runner(ctx, d); err != nil {
		log.Warn("scheduled drop failed", logx.Duration("took", time.Since(start)), logx.Err(err))
		return
	}
	log.Info("scheduled drop finished", logx.Duration("took", time.Since(start)))
}

// Stop halts triggering and waits for running drops or ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped")
}

// Status is a snapshot of one registered drop.
type Status struct {
	Name string
	Spec string
	Next time.Time
}

func (s *Service) Snapshot() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.entries))
	now := time.Now().In(s.loc)
	for _, e := range s.entries {
		st := Status{Name: e.def.Name, Spec: e.spec.Cron, Next: e.spec.Next(now)}
		if s.c != nil {
			if ce := s.c.Entry(e.id); ce.Valid() {
				st.Next = ce.Next
			}
		}
		out = append(out, st)
	}
	return out
}
