// Package app monta o engine de liquidação com os colaboradores reais
// (Postgres, wallet-service, Redis, Kafka). É compartilhado pelo
// settlement-service e pelo reveal-timeout-worker.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/internal/settlement/engine"
	"github.com/radieske/wager-settlement-engine/internal/settlement/funds"
	"github.com/radieske/wager-settlement-engine/internal/settlement/metrics"
	"github.com/radieske/wager-settlement-engine/internal/settlement/pricefeed"
	"github.com/radieske/wager-settlement-engine/internal/settlement/producer"
	"github.com/radieske/wager-settlement-engine/internal/settlement/randomness"
	"github.com/radieske/wager-settlement-engine/internal/settlement/repo"
	"github.com/radieske/wager-settlement-engine/internal/settlement/store"
	"github.com/radieske/wager-settlement-engine/internal/settlement/verifier"
	"github.com/radieske/wager-settlement-engine/internal/shared/cache"
	"github.com/radieske/wager-settlement-engine/internal/shared/config"
	"github.com/radieske/wager-settlement-engine/internal/shared/db"
	"github.com/radieske/wager-settlement-engine/internal/shared/kafka"
	"github.com/radieske/wager-settlement-engine/pkg/contracts/topics"
)

// attestationMaxAge limita a idade de um resultado MPC assinado.
const attestationMaxAge = 5 * time.Minute

// App reúne o engine e as conexões que precisam ser fechadas no shutdown.
type App struct {
	Engine *engine.Engine
	DB     *sql.DB // nil com STORE_DRIVER=memory
	Redis  *redis.Client
	Events *producer.KafkaPublisher
}

// New conecta as dependências e monta o engine.
func New(ctx context.Context, cfg config.Config, log *zap.Logger, m *metrics.Settlement) (*App, error) {
	rules := domain.DefaultRules()
	if cfg.GamesFile != "" {
		var err error
		if rules, err = config.LoadGames(cfg.GamesFile); err != nil {
			return nil, err
		}
		log.Info("game rules loaded", zap.String("file", cfg.GamesFile))
	}

	a := &App{}
	var (
		st engine.Store
		fu engine.Funds
	)
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store and funds; state is lost on restart")
		st, fu = store.NewMemory(), funds.NewMemory()
	case "postgres":
		pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		a.DB = pg
		if err := repo.Migrate(ctx, pg); err != nil {
			a.Close()
			return nil, err
		}
		st, fu = repo.NewPostgres(pg), funds.NewWalletClient(cfg.WalletURL, cfg.WalletToken)
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Redis = rdb

	a.Events = producer.NewKafkaPublisher(kafka.Brokers(cfg.KafkaBrokers), map[string]string{
		topics.WagerPlaced:    cfg.TopicWagerPlaced,
		topics.WagerSettled:   cfg.TopicWagerSettled,
		topics.MarketResolved: cfg.TopicMarketResolved,
		topics.TreasuryMoved:  cfg.TopicTreasuryMoved,
	}, log)
	a.Events.OnPublished = m.EventPublished
	a.Events.OnError = m.EventFailed

	a.Engine, err = engine.New(engine.Deps{
		Store:     st,
		Funds:     fu,
		Seeds:     randomness.Crypto{},
		Prices:    pricefeed.NewRedisFeed(rdb, 0),
		Verifier:  verifier.NewHMAC(cfg.MPCSecret, attestationMaxAge),
		Rules:     rules,
		Log:       log,
		Publisher: a.Events,
		Hooks:     m.Hooks(),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// EnsureTreasury cria a tesouraria na primeira subida.
func (a *App) EnsureTreasury(ctx context.Context, owner string) error {
	_, err := a.Engine.InitTreasury(ctx, owner)
	if errors.Is(err, domain.ErrTreasuryExists) {
		return nil
	}
	return err
}

// Health checa Postgres e Redis.
func (a *App) Health(ctx context.Context) error {
	if a.DB != nil {
		if err := a.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
	}
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

func (a *App) Close() {
	if a.Events != nil {
		_ = a.Events.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
