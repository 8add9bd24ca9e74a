package websocket

import (
	"context"
	"net/http"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pricewatch/internal/app/dto"
	"pricewatch/internal/domain/model"
	"pricewatch/internal/domain/useCases"
)

// WebSocketBroadcaster implements Notifier by pushing trigger events to every
// connected dashboard client.
type WebSocketBroadcaster struct {
	clients  map[*websocket.Conn]struct{}
	mu       sync.Mutex
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewWebSocketBroadcaster(log zerolog.Logger) *WebSocketBroadcaster {
	return &WebSocketBroadcaster{
		clients:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:      log.With().Str("component", "ws_broadcaster").Logger(),
	}
}

var _ useCases.Notifier = (*WebSocketBroadcaster)(nil)

// Notify fans the trigger event out to all connected clients. Dead
// connections are dropped on write failure.
func (b *WebSocketBroadcaster) Notify(ctx context.Context, event *model.TriggerEvent) {
	msg, err := json.Marshal(dto.TriggerEventFromModel(event))
	if err != nil {
		b.log.Error().Err(err).Msg("failed to marshal trigger event")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			b.log.Debug().Err(err).Msg("websocket write error, dropping client")
			c.Close()
			delete(b.clients, c)
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (b *WebSocketBroadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Handler returns an http.HandlerFunc to accept websocket connections.
func (b *WebSocketBroadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.log.Warn().Err(err).Msg("websocket upgrade error")
			return
		}
		b.mu.Lock()
		b.clients[conn] = struct{}{}
		b.mu.Unlock()

		// Read loop keeps the connection alive and detects disconnects.
		go func() {
			defer func() {
				b.mu.Lock()
				delete(b.clients, conn)
				b.mu.Unlock()
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}
}
