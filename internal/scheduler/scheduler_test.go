package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"indexcollector/internal/logging"
)

type countingRunner struct {
	mu    sync.Mutex
	calls int
	block bool
	seen  chan context.Context
	err   error
}

func (r *countingRunner) Run(ctx context.Context) (string, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.block {
		r.seen <- ctx
		<-ctx.Done()
		return "", ctx.Err()
	}
	return "report.xlsx", r.err
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newTestScheduler(t *testing.T, r Runner, now time.Time) *Scheduler {
	t.Helper()
	s, err := New(r, 9, time.Local, logging.Discard())
	require.NoError(t, err)
	s.now = func() time.Time { return now }
	return s
}

func TestTickRunsOnlyOnMondayAndFriday(t *testing.T) {
	cases := []struct {
		day  string
		date time.Time
		runs int
	}{
		{"monday", time.Date(2025, 1, 13, 9, 0, 0, 0, time.Local), 1},
		{"friday", time.Date(2025, 1, 10, 9, 0, 0, 0, time.Local), 1},
		{"wednesday", time.Date(2025, 1, 8, 9, 0, 0, 0, time.Local), 0},
		{"sunday", time.Date(2025, 1, 12, 9, 0, 0, 0, time.Local), 0},
	}
	for _, c := range cases {
		t.Run(c.day, func(t *testing.T) {
			r := &countingRunner{}
			s := newTestScheduler(t, r, c.date)
			s.Tick()
			require.Equal(t, c.runs, r.count())
		})
	}
}

func TestTickRunnerErrorIsNotFatal(t *testing.T) {
	r := &countingRunner{err: errors.New("数据收集正在进行中")}
	s := newTestScheduler(t, r, time.Date(2025, 1, 10, 9, 0, 0, 0, time.Local))

	require.NotPanics(t, s.Tick)
	require.Equal(t, 1, r.count())
}

func TestNextFiresAtConfiguredHour(t *testing.T) {
	s := newTestScheduler(t, &countingRunner{}, time.Now())
	require.True(t, s.Next().IsZero())

	s.Start()
	defer s.Stop(time.Second)

	next := s.Next()
	require.False(t, next.IsZero())
	require.Equal(t, 9, next.Hour())
	require.Equal(t, 0, next.Minute())
}

func TestStopCancelsInFlightRun(t *testing.T) {
	r := &countingRunner{block: true, seen: make(chan context.Context, 1)}
	s := newTestScheduler(t, r, time.Date(2025, 1, 13, 9, 0, 0, 0, time.Local))
	s.Start()

	done := make(chan struct{})
	go func() {
		s.Tick()
		close(done)
	}()
	ctx := <-r.seen

	require.NoError(t, s.Stop(time.Second))
	require.ErrorIs(t, ctx.Err(), context.Canceled)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not finish after Stop")
	}
}

func TestNewRejectsInvalidHour(t *testing.T) {
	_, err := New(&countingRunner{}, 24, nil, logging.Discard())
	require.Error(t, err)
}
