package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/wager-settlement-engine/pkg/contracts/events"
)

// Publisher recebe as cotações válidas lidas do fornecedor.
type Publisher interface {
	Publish(ctx context.Context, q events.PriceQuote) error
}

// WSClient consome cotações do fornecedor via WebSocket e as publica no Kafka.
type WSClient struct {
	URL       string
	Log       *zap.Logger
	Publisher Publisher
	// Backoff entre reconexões; 3s se zero
	Backoff time.Duration

	OnReceived func()
	OnRejected func()
}

// Start mantém a conexão viva até ctx ser cancelado, reconectando após falhas.
func (c *WSClient) Start(ctx context.Context) {
	backoff := c.Backoff
	if backoff == 0 {
		backoff = 3 * time.Second
	}
	for {
		if err := c.connectAndListen(ctx); err != nil {
			c.Log.Warn("connection closed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			c.Log.Info("context canceled, stopping WS client")
			return
		case <-time.After(backoff):
		}
	}
}

func (c *WSClient) connectAndListen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.Log.Info("connected to quote supplier", zap.String("url", c.URL))

	// fecha a conexão quando ctx termina para destravar ReadMessage
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.handle(ctx, message)
	}
}

var errInvalidQuote = errors.New("invalid quote")

func (c *WSClient) handle(ctx context.Context, message []byte) {
	q, err := parseQuote(message)
	if err != nil {
		c.Log.Warn("invalid message", zap.Error(err))
		if c.OnRejected != nil {
			c.OnRejected()
		}
		return
	}
	if c.OnReceived != nil {
		c.OnReceived()
	}
	if err := c.Publisher.Publish(ctx, q); err != nil {
		c.Log.Error("failed to publish to Kafka", zap.Error(err))
	}
}

// parseQuote descarta cotações sem feed, com preço não positivo ou sem horário.
func parseQuote(b []byte) (events.PriceQuote, error) {
	var q events.PriceQuote
	if err := json.Unmarshal(b, &q); err != nil {
		return q, err
	}
	if q.FeedID == "" || q.Price <= 0 || q.PublishedAt.IsZero() {
		return q, errInvalidQuote
	}
	return q, nil
}
