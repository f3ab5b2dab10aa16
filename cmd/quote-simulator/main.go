package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/wager-settlement-engine/internal/quote-simulator/sim"
	"github.com/radieske/wager-settlement-engine/internal/shared/config"
	"github.com/radieske/wager-settlement-engine/internal/shared/logger"
	"github.com/radieske/wager-settlement-engine/internal/shared/metrics"
)

var (
	// Métricas Prometheus para conexões e mensagens do fornecedor simulado
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quote_sim_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
	wsMessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quote_sim_ws_messages_sent_total",
		Help: "Total de mensagens WS enviadas",
	})
	wsMessagesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quote_sim_ws_messages_dropped_total",
		Help: "Mensagens descartadas por fila cheia",
	})
)

func main() {
	cfg := config.LoadFor("quote-simulator")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	prometheus.MustRegister(wsConnections, wsMessagesSent, wsMessagesDropped)

	b := sim.NewBroadcaster(log)
	b.OnConnect = wsConnections.Inc
	b.OnDisconnect = wsConnections.Dec
	b.OnSent = wsMessagesSent.Inc
	b.OnDropped = wsMessagesDropped.Inc

	// Gera e envia cotações simuladas a cada segundo
	walker := sim.NewWalker(cfg.ServiceName, sim.DefaultFeeds, time.Now().UnixNano())
	go b.Run(ctx, walker, time.Second)

	dealer := &sim.Dealer{Secret: []byte(cfg.MPCSecret), Log: log}

	// ==== MUX PÚBLICO: /ws (cotações) e /mpc/attest (dealer)
	appMux := http.NewServeMux()
	appMux.HandleFunc("GET /ws", b.ServeWS)
	appMux.HandleFunc("POST /mpc/attest", dealer.AttestHandler)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, prometheus.DefaultGatherer, nil, log)
	defer metricsSrv.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           appMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("quote simulator (public) running",
		zap.String("addr", srv.Addr),
		zap.String("paths", "/ws,/mpc/attest"),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("public server error", zap.Error(err))
	}
}
