package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/wager-settlement-engine/pkg/contracts/events"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Cache é a cotação corrente lida pelo price feed do settlement.
type Cache interface {
	SetCurrent(ctx context.Context, q events.PriceQuote) (bool, error)
	Broadcast(ctx context.Context, channel string, q events.PriceQuote) error
}

// Repo persiste cotação corrente e histórico.
type Repo interface {
	UpsertCurrent(ctx context.Context, q events.PriceQuote) error
	InsertHistory(ctx context.Context, q events.PriceQuote) error
}

// Processor consome price_quotes do Kafka, atualiza o Redis e persiste no Postgres.
type Processor struct {
	Log     *zap.Logger
	Reader  messageReader
	Cache   Cache
	Repo    Repo
	Channel string // canal Pub/Sub para o WebSocket de cotações

	OnConsumed func()
	OnCached   func()
	OnStale    func() // cotação mais velha que a corrente
	OnPersist  func()
	OnError    func(string) // por fase
}

func NewProcessor(log *zap.Logger, r *kafka.Reader, c Cache, repo Repo, channel string) *Processor {
	return &Processor{Log: log, Reader: r, Cache: c, Repo: repo, Channel: channel}
}

// Run consome até ctx ser cancelado.
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}
		p.handle(ctx, m.Value)
	}
}

func (p *Processor) handle(ctx context.Context, value []byte) {
	var q events.PriceQuote
	if err := json.Unmarshal(value, &q); err != nil || q.FeedID == "" {
		p.Log.Warn("invalid message", zap.Error(err))
		p.fail("decode")
		return
	}

	// falha no cache não bloqueia a persistência
	fresh, err := p.Cache.SetCurrent(ctx, q)
	switch {
	case err != nil:
		p.Log.Warn("redis set failed", zap.String("feed_id", q.FeedID), zap.Error(err))
		p.fail("cache")
	case !fresh:
		if p.OnStale != nil {
			p.OnStale()
		}
	default:
		if p.OnCached != nil {
			p.OnCached()
		}
		if p.Channel != "" {
			if err := p.Cache.Broadcast(ctx, p.Channel, q); err != nil {
				p.Log.Warn("redis broadcast failed", zap.Error(err))
				p.fail("broadcast")
			}
		}
	}

	if err := p.Repo.UpsertCurrent(ctx, q); err != nil {
		p.Log.Warn("db upsert failed", zap.Error(err))
		p.fail("db_upsert")
		return
	}
	if err := p.Repo.InsertHistory(ctx, q); err != nil {
		p.Log.Warn("db insert history failed", zap.Error(err))
		p.fail("db_history")
		return
	}
	if p.OnPersist != nil {
		p.OnPersist()
	}
}

func (p *Processor) fail(phase string) {
	if p.OnError != nil {
		p.OnError(phase)
	}
}
