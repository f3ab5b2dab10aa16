package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/wager-settlement-engine/internal/shared/cache"
)

type fakeEngine struct {
	mu    sync.Mutex
	calls int
	n     int
	err   error
}

func (f *fakeEngine) SweepTimeouts(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.n, f.err
}

func (f *fakeEngine) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLocker struct {
	held     bool
	err      error
	released int
}

func (l *fakeLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.held {
		return nil, cache.ErrLockHeld
	}
	l.held = true
	return func() { l.held = false; l.released++ }, nil
}

func newSweeper(t *testing.T, e *fakeEngine, l Locker) *Sweeper {
	return &Sweeper{Engine: e, Locker: l, Log: zaptest.NewLogger(t), Interval: 10 * time.Millisecond, LockTTL: time.Second}
}

func TestTickSweepsUnderLock(t *testing.T) {
	e := &fakeEngine{n: 3}
	l := &fakeLocker{}
	s := newSweeper(t, e, l)
	var swept int
	s.OnSwept = func(n int) { swept += n }

	s.Tick(context.Background())
	assert.Equal(t, 1, e.count())
	assert.Equal(t, 3, swept)
	assert.Equal(t, 1, l.released)
	assert.False(t, l.held)
}

func TestTickSkipsWhenLockHeld(t *testing.T) {
	e := &fakeEngine{}
	l := &fakeLocker{held: true}
	s := newSweeper(t, e, l)
	var skipped int
	s.OnSkipped = func() { skipped++ }

	s.Tick(context.Background())
	assert.Equal(t, 0, e.count())
	assert.Equal(t, 1, skipped)
}

func TestTickCountsFailures(t *testing.T) {
	var errs int
	s := newSweeper(t, &fakeEngine{err: errors.New("db down")}, &fakeLocker{})
	s.OnError = func() { errs++ }
	s.Tick(context.Background())

	s = newSweeper(t, &fakeEngine{}, &fakeLocker{err: errors.New("redis down")})
	s.OnError = func() { errs++ }
	s.Tick(context.Background())

	assert.Equal(t, 2, errs)
}

func TestRunStopsOnCancel(t *testing.T) {
	e := &fakeEngine{}
	s := newSweeper(t, e, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	require.Eventually(t, func() bool { return e.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
