package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/etherwheel/custody-ledger/events"
)

// wsEnvelope wraps an event with its type tag for WebSocket clients.
type wsEnvelope struct {
	Type  events.Type  `json:"type"`
	Event events.Event `json:"event"`
}

// Broadcaster fans ledger events out to connected WebSocket clients.
// Writes that fail drop the client; a slow client never blocks the core.
type Broadcaster struct {
	logger   *log.Logger
	clients  map[*websocket.Conn]struct{}
	mu       sync.Mutex
	upgrader websocket.Upgrader
}

func NewBroadcaster(logger *log.Logger) *Broadcaster {
	return &Broadcaster{
		logger:   logger,
		clients:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Run drains the bus subscription until the context is cancelled.
func (b *Broadcaster) Run(ctx context.Context, in <-chan events.Event) error {
	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			return ctx.Err()
		case ev, ok := <-in:
			if !ok {
				b.closeAll()
				return nil
			}
			b.broadcast(ev)
		}
	}
}

func (b *Broadcaster) broadcast(ev events.Event) {
	msg, err := json.Marshal(wsEnvelope{Type: ev.EventType(), Event: ev})
	if err != nil {
		b.logger.Printf("marshal event: %v", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			b.logger.Printf("websocket write error: %v", err)
			c.Close()
			delete(b.clients, c)
		}
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		c.Close()
		delete(b.clients, c)
	}
}

// Handler returns an http.HandlerFunc that accepts WebSocket connections.
func (b *Broadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Printf("websocket upgrade error: %v", err)
			return
		}
		b.mu.Lock()
		b.clients[conn] = struct{}{}
		b.mu.Unlock()

		// Read loop keeps the connection alive and notices disconnects.
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
