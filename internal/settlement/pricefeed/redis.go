// Package pricefeed guarda e lê as cotações correntes no Redis. O
// price-processor escreve; o engine lê na abertura e na resolução das lutas.
package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/pkg/contracts/events"
)

// RedisFeed encapsula as operações de cotação no Redis
// Client: cliente Redis
// TTL: expiração das chaves; cotação expirada equivale a feed parado
type RedisFeed struct {
	Client *redis.Client
	TTL    time.Duration
	Now    func() time.Time
}

// NewRedisFeed cria o feed com TTL configurável
func NewRedisFeed(c *redis.Client, ttl time.Duration) *RedisFeed {
	return &RedisFeed{Client: c, TTL: ttl, Now: func() time.Time { return time.Now().UTC() }}
}

// key gera a chave Redis da cotação atual de um instrumento
func key(feedID string) string { return "price:current:" + feedID }

// SetCurrent grava a cotação atual. Cotações fora de ordem são descartadas.
func (f *RedisFeed) SetCurrent(ctx context.Context, q events.PriceQuote) (bool, error) {
	prev, err := f.load(ctx, q.FeedID)
	switch {
	case err == nil && !newer(q, prev):
		return false, nil
	case err != nil && !errors.Is(err, redis.Nil):
		return false, err
	}
	b, err := json.Marshal(q)
	if err != nil {
		return false, err
	}
	return true, f.Client.Set(ctx, key(q.FeedID), b, f.TTL).Err()
}

// Broadcast publica a cotação no canal Pub/Sub lido pelo hub WebSocket.
func (f *RedisFeed) Broadcast(ctx context.Context, channel string, q events.PriceQuote) error {
	b, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return f.Client.Publish(ctx, channel, b).Err()
}

// Quote implementa resolver.PriceFeed.
func (f *RedisFeed) Quote(ctx context.Context, feedID string, maxStaleness time.Duration) (domain.Quote, error) {
	q, err := f.load(ctx, feedID)
	if errors.Is(err, redis.Nil) {
		return domain.Quote{}, fmt.Errorf("%w: no quote for %s", domain.ErrStalePriceFeed, feedID)
	}
	if err != nil {
		return domain.Quote{}, fmt.Errorf("%w: %v", domain.ErrStalePriceFeed, err)
	}
	return check(q, f.Now(), maxStaleness)
}

func (f *RedisFeed) load(ctx context.Context, feedID string) (events.PriceQuote, error) {
	var q events.PriceQuote
	b, err := f.Client.Get(ctx, key(feedID)).Bytes()
	if err != nil {
		return q, err
	}
	if err := json.Unmarshal(b, &q); err != nil {
		return q, fmt.Errorf("decode quote %s: %w", feedID, err)
	}
	return q, nil
}

// check valida idade e valor da cotação.
func check(q events.PriceQuote, now time.Time, maxStaleness time.Duration) (domain.Quote, error) {
	if maxStaleness > 0 && now.Sub(q.PublishedAt) > maxStaleness {
		return domain.Quote{}, fmt.Errorf("%w: %s published %s ago", domain.ErrStalePriceFeed,
			q.FeedID, now.Sub(q.PublishedAt).Truncate(time.Second))
	}
	if q.Price <= 0 {
		return domain.Quote{}, fmt.Errorf("%w: %s=%d", domain.ErrInvalidPrice, q.FeedID, q.Price)
	}
	return domain.Quote{FeedID: q.FeedID, Price: q.Price, PublishedAt: q.PublishedAt}, nil
}

func newer(q, prev events.PriceQuote) bool {
	if q.PublishedAt.Equal(prev.PublishedAt) {
		return q.Version > prev.Version
	}
	return q.PublishedAt.After(prev.PublishedAt)
}
