package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/wager-settlement-engine/pkg/contracts/events"
)

func TestHubDeliversToSubscribers(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.WriteJSON(ClientMsg{Type: "subscribe", FeedID: "SOL/USD"}))
	require.Eventually(t, func() bool { return hub.Subscribers("SOL/USD") == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(events.PriceQuote{FeedID: "BTC/USD", Price: 1})
	hub.Broadcast(events.PriceQuote{FeedID: "SOL/USD", Price: 15_000, Expo: -2})

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var upd QuoteUpdate
	require.NoError(t, c.ReadJSON(&upd))
	assert.Equal(t, "quote", upd.Type)
	assert.Equal(t, "SOL/USD", upd.Quote.FeedID)
	assert.Equal(t, int64(15_000), upd.Quote.Price)

	require.NoError(t, c.WriteJSON(ClientMsg{Type: "ping"}))
	var pong map[string]string
	require.NoError(t, c.ReadJSON(&pong))
	assert.Equal(t, "pong", pong["type"])

	require.NoError(t, c.WriteJSON(ClientMsg{Type: "unsubscribe", FeedID: "SOL/USD"}))
	require.Eventually(t, func() bool { return hub.Subscribers("SOL/USD") == 0 }, time.Second, 10*time.Millisecond)
}
