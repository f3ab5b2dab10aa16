package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/radieske/wager-settlement-engine/pkg/contracts/events"
)

// Hub gerencia conexões WebSocket e assinaturas por feed de cotação.
// Lutas de preço (fight) usam isso para acompanhar os dois instrumentos ao vivo.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	// feedID -> conexões
	subs map[string]map[*conn]struct{}
}

// conn serializa escritas; gorilla não aceita writers concorrentes.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*conn]struct{}),
	}
}

// HandleWS atende uma conexão até o cliente desconectar.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &conn{ws: ws}
	defer ws.Close()

	for {
		var msg ClientMsg
		if err := ws.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.FeedID == "" {
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.FeedID]; !ok {
				h.subs[msg.FeedID] = make(map[*conn]struct{})
			}
			h.subs[msg.FeedID][c] = struct{}{}
			h.mu.Unlock()
		case "unsubscribe":
			h.remove(msg.FeedID, c)
		case "ping":
			_ = c.write([]byte(`{"type":"pong"}`))
		}
	}

	h.mu.Lock()
	for feed, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, feed)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) remove(feed string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[feed]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, feed)
		}
	}
}

// Subscribers devolve quantos clientes acompanham um feed.
func (h *Hub) Subscribers(feed string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[feed])
}

// Broadcast envia a cotação para os inscritos no feed correspondente.
func (h *Hub) Broadcast(q events.PriceQuote) {
	h.mu.RLock()
	conns := make([]*conn, 0, len(h.subs[q.FeedID]))
	for c := range h.subs[q.FeedID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	b, _ := json.Marshal(QuoteUpdate{Type: "quote", Quote: q})
	for _, c := range conns {
		_ = c.write(b)
	}
}
