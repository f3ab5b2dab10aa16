package pricefeed

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/pkg/contracts/events"
)

func TestCheck(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	q := events.PriceQuote{FeedID: "SOL/USD", Price: 150_000, PublishedAt: now.Add(-30 * time.Second)}

	got, err := check(q, now, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(150_000), got.Price)

	_, err = check(q, now, 10*time.Second)
	assert.ErrorIs(t, err, domain.ErrStalePriceFeed)

	_, err = check(q, now, 0)
	assert.NoError(t, err)

	q.Price = 0
	_, err = check(q, now, time.Minute)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestNewer(t *testing.T) {
	t0 := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	a := events.PriceQuote{PublishedAt: t0, Version: 3}
	assert.True(t, newer(events.PriceQuote{PublishedAt: t0.Add(time.Second)}, a))
	assert.True(t, newer(events.PriceQuote{PublishedAt: t0, Version: 4}, a))
	assert.False(t, newer(events.PriceQuote{PublishedAt: t0, Version: 3}, a))
	assert.False(t, newer(events.PriceQuote{PublishedAt: t0.Add(-time.Second), Version: 9}, a))
}

// Precisa de um Redis real: REDIS_TEST_ADDR=localhost:6379 go test ./...
func TestRedisFeedRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	now := time.Now().UTC()
	f := NewRedisFeed(rdb, time.Minute)
	f.Now = func() time.Time { return now }
	feedID := "TEST/" + now.Format(time.RFC3339Nano)
	defer rdb.Del(ctx, key(feedID))

	_, err := f.Quote(ctx, feedID, time.Minute)
	assert.ErrorIs(t, err, domain.ErrStalePriceFeed)

	stored, err := f.SetCurrent(ctx, events.PriceQuote{FeedID: feedID, Price: 10, PublishedAt: now, Version: 2})
	require.NoError(t, err)
	assert.True(t, stored)
	stored, err = f.SetCurrent(ctx, events.PriceQuote{FeedID: feedID, Price: 99, PublishedAt: now, Version: 1})
	require.NoError(t, err)
	assert.False(t, stored)

	q, err := f.Quote(ctx, feedID, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(10), q.Price)
}
