package sim

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 2 * time.Second
	pingPeriod = 20 * time.Second
	sendBuffer = 64
)

// Broadcaster entrega todas as cotações a todos os clientes conectados, como
// o fornecedor real. Cada cliente tem fila própria; cliente lento perde
// mensagens em vez de travar os demais.
type Broadcaster struct {
	Log      *zap.Logger
	Upgrader websocket.Upgrader

	OnConnect    func()
	OnDisconnect func()
	OnSent       func()
	OnDropped    func()

	mu      sync.RWMutex
	clients map[string]chan []byte
}

func NewBroadcaster(log *zap.Logger) *Broadcaster {
	return &Broadcaster{
		Log: log,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[string]chan []byte),
	}
}

// Clients devolve o número de conexões ativas.
func (b *Broadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Send enfileira v para todos os clientes.
func (b *Broadcaster) Send(v any) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.clients {
		select {
		case ch <- msg:
		default:
			call(b.OnDropped)
		}
	}
	return nil
}

// Run publica um passo do walker a cada interval até ctx ser cancelado.
func (b *Broadcaster) Run(ctx context.Context, w *Walker, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, q := range w.Next(now.UTC()) {
				if err := b.Send(q); err != nil {
					b.Log.Warn("quote encode failed", zap.String("feed", q.FeedID), zap.Error(err))
				}
			}
		}
	}
}

// ServeWS atende GET /ws.
func (b *Broadcaster) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.Log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	id := uuid.NewString()
	send := make(chan []byte, sendBuffer)

	b.mu.Lock()
	b.clients[id] = send
	b.mu.Unlock()
	call(b.OnConnect)
	b.Log.Info("ws client connected", zap.String("client_id", id))

	go b.writePump(conn, send)

	// lê e descarta até o cliente desconectar
	go func() {
		defer b.drop(id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (b *Broadcaster) drop(id string) {
	b.mu.Lock()
	send, ok := b.clients[id]
	delete(b.clients, id)
	b.mu.Unlock()
	if !ok {
		return
	}
	close(send) // encerra o writePump
	call(b.OnDisconnect)
	b.Log.Info("ws client disconnected", zap.String("client_id", id))
}

func (b *Broadcaster) writePump(conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case msg, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
			call(b.OnSent)
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func call(f func()) {
	if f != nil {
		f()
	}
}
