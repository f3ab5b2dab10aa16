package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/wager-settlement-engine/pkg/contracts/events"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublishKeysByFeed(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, log: zaptest.NewLogger(t)}

	require.NoError(t, p.Publish(context.Background(), events.PriceQuote{FeedID: "SOL/USD", Price: 15000}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "SOL/USD", string(w.msgs[0].Key))

	var q events.PriceQuote
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &q))
	assert.Equal(t, int64(15000), q.Price)

	w.err = errors.New("broker down")
	assert.Error(t, p.Publish(context.Background(), events.PriceQuote{FeedID: "SOL/USD", Price: 1}))
}

func TestNewKafkaPublisherNeedsBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "price_quotes", "prod", zaptest.NewLogger(t))
	assert.Error(t, err)
}
