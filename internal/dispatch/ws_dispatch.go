package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/share-commute/internal/models"
)

// Conn is the part of *websocket.Conn the hub writes through.
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// sendBuffer is how many events a feed may fall behind before it is dropped.
const sendBuffer = 16

// WSClient is one open ride feed. Events are queued and written by the
// client's own goroutine.
type WSClient struct {
	conn Conn
	send chan models.RideEvent
	done chan struct{}
	once sync.Once
}

func newWSClient(conn Conn) *WSClient {
	return &WSClient{conn: conn, send: make(chan models.RideEvent, sendBuffer), done: make(chan struct{})}
}

func (c *WSClient) write(ev models.RideEvent) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(ev)
}

// enqueue reports false when the feed is closed or its buffer is full.
func (c *WSClient) enqueue(ev models.RideEvent) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *WSClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// WSHub fans ride events out to the feeds opened for the same session.
type WSHub struct {
	mu      sync.RWMutex
	clients map[string]map[*WSClient]struct{}
	logger  *slog.Logger
}

func NewWSHub(logger *slog.Logger) *WSHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHub{clients: make(map[string]map[*WSClient]struct{}), logger: logger}
}

// Add registers conn for sessionID and starts its writer.
func (h *WSHub) Add(sessionID string, conn Conn) *WSClient {
	c := newWSClient(conn)
	h.mu.Lock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = make(map[*WSClient]struct{})
	}
	h.clients[sessionID][c] = struct{}{}
	h.mu.Unlock()
	go h.writeLoop(sessionID, c)
	return c
}

func (h *WSHub) writeLoop(sessionID string, c *WSClient) {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.send:
			if err := c.write(ev); err != nil {
				h.logger.Warn("ws send failed, dropping feed", "session_id", sessionID, "error", err)
				h.Remove(sessionID, c)
				return
			}
		}
	}
}

func (h *WSHub) Remove(sessionID string, c *WSClient) {
	h.mu.Lock()
	if set, ok := h.clients[sessionID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, sessionID)
		}
	}
	h.mu.Unlock()
	c.close()
}

func (h *WSHub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Publish queues ev for every feed of its session and never blocks or fails;
// a feed that has fallen too far behind is dropped.
func (h *WSHub) Publish(ctx context.Context, ev models.RideEvent) error {
	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients[ev.SessionID]))
	for c := range h.clients[ev.SessionID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(ev) {
			h.logger.Warn("ws feed lagging, dropping", "session_id", ev.SessionID)
			h.Remove(ev.SessionID, c)
		}
	}
	return nil
}

// Serve registers conn and blocks reading until the peer goes away.
func (h *WSHub) Serve(sessionID string, conn *websocket.Conn) {
	c := h.Add(sessionID, conn)
	defer h.Remove(sessionID, c)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
