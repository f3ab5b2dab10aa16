package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/wager-settlement-engine/internal/reveal-timeout/sweeper"
	"github.com/radieske/wager-settlement-engine/internal/settlement/app"
	smetrics "github.com/radieske/wager-settlement-engine/internal/settlement/metrics"
	"github.com/radieske/wager-settlement-engine/internal/shared/cache"
	"github.com/radieske/wager-settlement-engine/internal/shared/config"
	"github.com/radieske/wager-settlement-engine/internal/shared/logger"
	"github.com/radieske/wager-settlement-engine/internal/shared/metrics"
)

func main() {
	cfg := config.LoadFor("reveal-timeout-worker")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := smetrics.New(prometheus.DefaultRegisterer)
	a, err := app.New(ctx, cfg, log, m)
	if err != nil {
		log.Fatal("bootstrap", zap.Error(err))
	}
	defer a.Close()

	// Métricas do worker
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "sweeper_runs_total", Help: "varreduras por resultado"}, []string{"result"})
	timedOut := prometheus.NewCounter(prometheus.CounterOpts{Name: "sweeper_tickets_timed_out_total", Help: "tickets resolvidos por timeout"})
	prometheus.MustRegister(runs, timedOut)

	swept := func(n int) {
		runs.WithLabelValues("ok").Inc()
		timedOut.Add(float64(n))
	}

	s := &sweeper.Sweeper{
		Engine:    a.Engine,
		Locker:    cache.NewLocker(a.Redis),
		Log:       log,
		Interval:  cfg.SweepInterval,
		LockTTL:   cfg.SweepLockTTL,
		OnSwept:   swept,
		OnSkipped: func() { runs.WithLabelValues("skipped").Inc() },
		OnError:   func() { runs.WithLabelValues("error").Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, prometheus.DefaultGatherer, a.Health, log)
	defer metricsSrv.Close()

	log.Info("reveal-timeout-worker started", zap.Duration("interval", cfg.SweepInterval))
	if err := s.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("sweeper stopped with error", zap.Error(err))
	}
	log.Info("reveal-timeout-worker stopped")
}
