package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/wager-settlement-engine/internal/price-ingest/publisher"
	"github.com/radieske/wager-settlement-engine/internal/price-ingest/service"
	"github.com/radieske/wager-settlement-engine/internal/shared/config"
	"github.com/radieske/wager-settlement-engine/internal/shared/kafka"
	"github.com/radieske/wager-settlement-engine/internal/shared/logger"
	"github.com/radieske/wager-settlement-engine/internal/shared/metrics"
)

func main() {
	cfg := config.LoadFor("price-ingest-service")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pub, err := publisher.NewKafkaPublisher(kafka.Brokers(cfg.KafkaBrokers), cfg.TopicPriceQuotes, cfg.Env, log)
	if err != nil {
		log.Fatal("kafka publisher", zap.Error(err))
	}
	defer pub.Close()

	received := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_ingest_quotes_received_total", Help: "cotações válidas recebidas"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_ingest_quotes_rejected_total", Help: "cotações descartadas"})
	prometheus.MustRegister(received, rejected)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, prometheus.DefaultGatherer, nil, log)
	defer metricsSrv.Close()

	client := &service.WSClient{
		URL:        cfg.QuoteSupplierURL,
		Log:        log,
		Publisher:  pub,
		OnReceived: received.Inc,
		OnRejected: rejected.Inc,
	}

	log.Info("price-ingest started", zap.String("supplier", cfg.QuoteSupplierURL))
	client.Start(ctx)
	log.Info("price-ingest stopped")
}
