package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"geekshub-backend-go/internal/safego"
)

const (
	EventModeration = "moderation"
	EventMetrics    = "metrics"
)

// Event is one message pushed to connected admin dashboards.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	clientQueueSize = 16
	writeTimeout    = 5 * time.Second
)

// Hub fans events out to websocket clients. Each client has its own queue
// and writer, so a slow dashboard only delays itself. A client whose queue
// overflows or whose write fails is dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]*hubClient
	ch      chan Event
}

type hubClient struct {
	conn *websocket.Conn
	send chan Event
}

func NewHub() *Hub {
	return &Hub{
		clients: map[*websocket.Conn]*hubClient{},
		ch:      make(chan Event, 64),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case event := <-h.ch:
			h.deliver(event)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

func (h *Hub) deliver(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, client := range h.clients {
		select {
		case client.send <- event:
		default:
			slog.Debug("dropping slow websocket client", "remote", conn.RemoteAddr().String())
			h.dropLocked(conn)
		}
	}
}

func (h *Hub) write(client *hubClient) {
	for event := range client.send {
		_ = client.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := client.conn.WriteJSON(event); err != nil {
			slog.Debug("dropping websocket client", "remote", client.conn.RemoteAddr().String(), "error", err)
			h.Remove(client.conn)
			return
		}
	}
}

// dropLocked must be called with mu held. The writer exits once send is closed.
func (h *Hub) dropLocked(conn *websocket.Conn) {
	client, ok := h.clients[conn]
	if !ok {
		return
	}
	delete(h.clients, conn)
	close(client.send)
	_ = conn.Close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		h.dropLocked(conn)
	}
}

// Broadcast never blocks; events are dropped when the queue is full.
func (h *Hub) Broadcast(event Event) {
	select {
	case h.ch <- event:
	default:
		slog.Warn("hub queue full, dropping event", "type", event.Type)
	}
}

func (h *Hub) Add(conn *websocket.Conn) {
	client := &hubClient{conn: conn, send: make(chan Event, clientQueueSize)}
	h.mu.Lock()
	h.clients[conn] = client
	h.mu.Unlock()
	safego.Go("hub-writer", func() { h.write(client) })
}

// Remove detaches and closes conn. It is safe to call more than once.
func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(conn)
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
