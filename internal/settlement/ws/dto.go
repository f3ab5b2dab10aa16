package ws

import "github.com/radieske/wager-settlement-engine/pkg/contracts/events"

// ClientMsg é uma mensagem recebida do cliente WebSocket.
// Type: subscribe | unsubscribe | ping; FeedID é obrigatório nos dois primeiros.
type ClientMsg struct {
	Type   string `json:"type"`
	FeedID string `json:"feedId"`
}

// QuoteUpdate é o que os clientes inscritos em um feed recebem.
type QuoteUpdate struct {
	Type  string            `json:"type"` // sempre "quote"
	Quote events.PriceQuote `json:"quote"`
}
