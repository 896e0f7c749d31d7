// Package live pushes committed-transaction events to websocket listeners.
package live

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

// Event describes one committed store transaction.
type Event struct {
	TransactionID string    `json:"transactionId"`
	Tag           string    `json:"tag,omitempty"`
	DocumentIDs   []string  `json:"documentIds"`
	Timestamp     time.Time `json:"timestamp"`
}

func (e Event) touches(ids map[string]struct{}) bool {
	if len(ids) == 0 {
		return true
	}
	for _, id := range e.DocumentIDs {
		if _, ok := ids[id]; ok {
			return true
		}
	}
	return false
}

type client struct {
	conn   *websocket.Conn
	send   chan Event
	filter map[string]struct{}
}

type Hub struct {
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub accepts websocket upgrades from origin, or from any origin when it
// is "*" or empty.
func NewHub(origin string, log zerolog.Logger) *Hub {
	h := &Hub{
		log:     log.With().Str("component", "live").Logger(),
		clients: make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if origin == "" || origin == "*" {
				return true
			}
			return r.Header.Get("Origin") == origin
		},
	}
	return h
}

// ServeHTTP upgrades the request. Repeated documentId query parameters limit
// delivery to events touching those documents.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan Event, sendBuffer), filter: map[string]struct{}{}}
	for _, id := range r.URL.Query()["documentId"] {
		c.filter[id] = struct{}{}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug().Int("filters", len(c.filter)).Msg("listener connected")

	go h.writeLoop(c)
	h.readLoop(c)
}

// Publish queues e for every matching listener. Listeners whose buffer is full
// are disconnected.
func (h *Hub) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !e.touches(c.filter) {
			continue
		}
		select {
		case c.send <- e:
		default:
			h.log.Warn().Msg("dropping slow listener")
			h.removeLocked(c)
		}
	}
}

func (h *Hub) Listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every listener and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// readLoop only services control frames; listeners never send data.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case e, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
