package sim

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/wager-settlement-engine/pkg/contracts/events"
)

func TestBroadcasterFansOutQuotes(t *testing.T) {
	b := NewBroadcaster(zaptest.NewLogger(t))
	var connected, disconnected atomic.Int32
	b.OnConnect = func() { connected.Add(1) }
	b.OnDisconnect = func() { disconnected.Add(1) }

	srv := httptest.NewServer(http.HandlerFunc(b.ServeWS))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	c1, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	c2, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer c2.Close()
	require.Eventually(t, func() bool { return b.Clients() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, b.Send(events.PriceQuote{FeedID: "ETH/USD", Price: 320_000, Expo: -2}))
	for _, c := range []*websocket.Conn{c1, c2} {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
		var q events.PriceQuote
		require.NoError(t, c.ReadJSON(&q))
		assert.Equal(t, "ETH/USD", q.FeedID)
		assert.Equal(t, int64(320_000), q.Price)
	}

	require.NoError(t, c1.Close())
	require.Eventually(t, func() bool { return b.Clients() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), connected.Load())
	assert.Equal(t, int32(1), disconnected.Load())
}
