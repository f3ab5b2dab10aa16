package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/wager-settlement-engine/internal/price-processor/repository"
	"github.com/radieske/wager-settlement-engine/internal/settlement/app"
	httpapi "github.com/radieske/wager-settlement-engine/internal/settlement/http"
	smetrics "github.com/radieske/wager-settlement-engine/internal/settlement/metrics"
	"github.com/radieske/wager-settlement-engine/internal/settlement/ws"
	"github.com/radieske/wager-settlement-engine/internal/shared/config"
	"github.com/radieske/wager-settlement-engine/internal/shared/logger"
	"github.com/radieske/wager-settlement-engine/internal/shared/metrics"
)

func main() {
	cfg := config.LoadFor("settlement-service")

	// Inicializa logger estruturado
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "settlement-service"), zap.String("env", cfg.Env))

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := smetrics.New(prometheus.DefaultRegisterer)
	a, err := app.New(ctx, cfg, log, m)
	if err != nil {
		log.Fatal("bootstrap", zap.Error(err))
	}
	defer a.Close()

	if err := a.EnsureTreasury(ctx, cfg.HouseOwnerID); err != nil {
		log.Fatal("treasury init", zap.Error(err))
	}

	// WebSocket de cotações ao vivo para as lutas de preço
	hub := ws.NewHub(func(r *http.Request) bool { return true })
	ws.StartRedisSubscriber(ctx, a.Redis, cfg.RedisPubSubChannel, hub, log)

	api := &httpapi.API{Engine: a.Engine, Log: log, Quotes: hub.HandleWS}
	if a.DB != nil {
		// leitura das cotações persistidas pelo price-processor
		prices := repository.NewPostgresRepo(a.DB)
		if err := prices.Migrate(ctx); err != nil {
			log.Fatal("migrate price schema", zap.Error(err))
		}
		api.Prices = prices
	}
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort, // ex: 8083
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Servidor de métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, prometheus.DefaultGatherer, a.Health, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
		return apiSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("settlement-service stopped with error", zap.Error(err))
		return
	}
	log.Info("settlement-service stopped")
}
