package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/wager-settlement-engine/internal/price-processor/consumer"
	"github.com/radieske/wager-settlement-engine/internal/price-processor/repository"
	"github.com/radieske/wager-settlement-engine/internal/settlement/pricefeed"
	"github.com/radieske/wager-settlement-engine/internal/shared/cache"
	"github.com/radieske/wager-settlement-engine/internal/shared/config"
	"github.com/radieske/wager-settlement-engine/internal/shared/db"
	"github.com/radieske/wager-settlement-engine/internal/shared/kafka"
	"github.com/radieske/wager-settlement-engine/internal/shared/logger"
	"github.com/radieske/wager-settlement-engine/internal/shared/metrics"
)

// quoteTTL expira cotações paradas; o feed trata chave ausente como stale.
const quoteTTL = 5 * time.Minute

func main() {
	cfg := config.LoadFor("price-processor-worker")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	repo := repository.NewPostgresRepo(pg)
	if err := repo.Migrate(ctx); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	// consumer group price-processor
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicPriceQuotes, "price-processor")
	defer reader.Close()

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_proc_messages_consumed_total", Help: "mensagens consumidas"})
	cached := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_proc_cache_sets_total", Help: "cotações correntes atualizadas"})
	stale := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_proc_out_of_order_total", Help: "cotações mais velhas que a corrente"})
	persist := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_proc_db_writes_total", Help: "escritas no banco (upsert+history)"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "price_proc_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, cached, stale, persist, errorsBy)

	proc := consumer.NewProcessor(log, reader, pricefeed.NewRedisFeed(rdb, quoteTTL), repo, cfg.RedisPubSubChannel)
	proc.OnConsumed = consumed.Inc
	proc.OnCached = cached.Inc
	proc.OnStale = stale.Inc
	proc.OnPersist = persist.Inc
	proc.OnError = func(stage string) { errorsBy.WithLabelValues(stage).Inc() }

	// Servidor HTTP para métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, prometheus.DefaultGatherer, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		return rdb.Ping(ctx).Err()
	}, log)
	defer metricsSrv.Close()

	log.Info("price-processor started")
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("price-processor stopped")
}
