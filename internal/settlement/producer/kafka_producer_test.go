package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/wager-settlement-engine/pkg/contracts/events"
	"github.com/radieske/wager-settlement-engine/pkg/contracts/topics"
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

func TestPublishUsesConfiguredTopicAndKey(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, map[string]string{topics.WagerPlaced: "prod.wager_placed"}, nil)
	var published []string
	p.OnPublished = func(topic string) { published = append(published, topic) }

	ev := events.WagerPlaced{MarketID: "m1", ParticipantID: "alice", Slot: 1, AmountLamport: 500}
	require.NoError(t, p.Publish(context.Background(), topics.WagerPlaced, "m1", ev))
	require.NoError(t, p.Publish(context.Background(), topics.MarketResolved, "m1", events.MarketResolved{MarketID: "m1"}))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "prod.wager_placed", w.msgs[0].Topic)
	assert.Equal(t, "m1", string(w.msgs[0].Key))
	assert.Equal(t, topics.MarketResolved, w.msgs[1].Topic)

	var got events.WagerPlaced
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, uint64(500), got.AmountLamport)
	assert.Equal(t, []string{topics.WagerPlaced, topics.MarketResolved}, published)
}

func TestPublishReportsWriterFailure(t *testing.T) {
	down := errors.New("broker down")
	p := newPublisher(&fakeWriter{err: down}, nil, nil)
	failed := 0
	p.OnError = func(string) { failed++ }

	assert.ErrorIs(t, p.Publish(context.Background(), topics.WagerSettled, "m", events.WagerSettled{}), down)
	assert.Equal(t, 1, failed)
}
