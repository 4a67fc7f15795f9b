package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lexibot/internal/content"
	kit "lexibot/internal/transport"
	logx "lexibot/pkg/logx"
)

func TestParseSpec(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		cron    string
		every   time.Duration
		wantErr bool
	}{
		{in: "0 9 * * *", cron: "0 9 * * *"},
		{in: "30 0 9 * * 1-5", cron: "30 0 9 * * 1-5"},
		{in: "@daily", cron: "@daily"},
		{in: "cron: @hourly", cron: "@hourly"},
		{in: "90m", cron: "@every 1h30m0s", every: 90 * time.Minute},
		{in: "02:30", cron: "@every 2h30m0s", every: 150 * time.Minute},
		{in: "every: 10s", cron: "@every 10s", every: 10 * time.Second},
		{in: "", wantErr: true},
		{in: "soon", wantErr: true},
		{in: "61 * * * *", wantErr: true},
		{in: "00:75", wantErr: true},
		{in: "100ms", wantErr: true},
		{in: "cron:", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseSpec(tc.in)
		if tc.wantErr {
			require.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.cron, got.Cron, tc.in)
		require.Equal(t, tc.every, got.Every, tc.in)
	}
}

func TestSpecNext(t *testing.T) {
	t.Parallel()

	sp, err := ParseSpec("0 9 * * *")
	require.NoError(t, err)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), sp.Next(base))

	require.True(t, Spec{}.Next(base).IsZero())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	ok := []Def{{Name: "morning", Spec: "@daily", Kind: content.KindIdiom}}
	require.NoError(t, Validate("UTC", ok))
	require.Error(t, Validate("Mars/Base", ok))
	require.Error(t, Validate("", []Def{{Name: "bad", Spec: "nope", Kind: content.KindIdiom}}))
	require.Error(t, Validate("", []Def{{Name: "bad", Spec: "@daily", Kind: "poem"}}))
}

func TestApplyRejectsInvalidSetWhole(t *testing.T) {
	t.Parallel()

	s := New(func(context.Context, Def) error { return nil }, logx.Nop())
	require.NoError(t, s.Apply("UTC", []Def{{Name: "a", Spec: "@daily", Kind: content.KindIdiom}}))

	err := s.Apply("UTC", []Def{
		{Name: "b", Spec: "@daily", Kind: content.KindIdiom},
		{Name: "c", Spec: "whenever", Kind: content.KindQuiz},
	})
	require.Error(t, err)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "a", snap[0].Name)
	require.False(t, snap[0].Next.IsZero())
}

func TestStartFiresDrops(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	var got atomic.Value
	s := New(func(ctx context.Context, d Def) error {
		got.Store(d)
		runs.Add(1)
		return nil
	}, logx.Nop())

	def := Def{Name: "tick", Spec: "every: 1s", Kind: content.KindQuiz, Store: "q1", Target: kit.ChatTarget{ChatID: 9}}
	require.NoError(t, s.Apply("", []Def{def}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	require.Eventually(t, func() bool { return runs.Load() > 0 }, 5*time.Second, 20*time.Millisecond)
	require.Equal(t, def, got.Load().(Def))
}

func TestRunLogsRunnerError(t *testing.T) {
	t.Parallel()

	called := false
	s := New(func(context.Context, Def) error {
		called = true
		return errors.New("chat gone")
	}, logx.Nop())
	s.Run(context.Background(), Def{Name: "x", Kind: content.KindIdiom})
	require.True(t, called)
}

func TestJobSkipsAfterCancel(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := New(func(context.Context, Def) error { runs.Add(1); return nil }, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.job(ctx, Def{Name: "x"}).Run()
	require.Zero(t, runs.Load())
}
