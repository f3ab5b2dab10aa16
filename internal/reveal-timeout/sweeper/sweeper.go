// Package sweeper dispara periodicamente a resolução por timeout dos tickets
// commit-reveal vencidos. Qualquer parte pode acionar timeouts; o lock
// distribuído só evita trabalho duplicado entre réplicas.
package sweeper

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/wager-settlement-engine/internal/shared/cache"
)

// Engine é a parte do engine usada pelo sweeper.
type Engine interface {
	SweepTimeouts(ctx context.Context) (int, error)
}

// Locker obtém um lock exclusivo com TTL.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

const lockKey = "reveal-timeout-sweeper"

type Sweeper struct {
	Engine   Engine
	Locker   Locker
	Log      *zap.Logger
	Interval time.Duration
	LockTTL  time.Duration

	OnSwept   func(n int)
	OnSkipped func() // outra réplica está com o lock
	OnError   func()
}

// Run varre a cada Interval até ctx ser cancelado.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		s.Tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Tick executa uma varredura, se conseguir o lock.
func (s *Sweeper) Tick(ctx context.Context) {
	if s.Locker != nil {
		unlock, err := s.Locker.Acquire(ctx, lockKey, s.LockTTL)
		if errors.Is(err, cache.ErrLockHeld) {
			if s.OnSkipped != nil {
				s.OnSkipped()
			}
			return
		}
		if err != nil {
			s.Log.Warn("sweeper lock failed", zap.Error(err))
			s.fail()
			return
		}
		defer unlock()
	}

	// a varredura não passa do TTL do lock
	sctx, cancel := context.WithTimeout(ctx, s.LockTTL)
	defer cancel()

	n, err := s.Engine.SweepTimeouts(sctx)
	if n > 0 {
		s.Log.Info("tickets timed out", zap.Int("count", n))
	}
	if s.OnSwept != nil {
		s.OnSwept(n)
	}
	if err != nil && ctx.Err() == nil {
		s.Log.Warn("sweep failed", zap.Error(err))
		s.fail()
	}
}

func (s *Sweeper) fail() {
	if s.OnError != nil {
		s.OnError()
	}
}
