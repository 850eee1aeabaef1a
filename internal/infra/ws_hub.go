package infra

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 64
)

// wsClient is one connected UI. Outbound frames are queued on send and
// written by writePump; a client whose buffer fills up is dropped.
type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub fans engine events out to every connected websocket. It never reads
// commands from clients; the REST API is the only write path.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*wsClient

	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
	done       chan struct{}
	stopOnce   sync.Once

	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*wsClient),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The terminal UI is served from another origin in development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run is the hub loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			h.mu.Unlock()
			log.Debug().Str("client", c.id).Msg("ws: client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			h.mu.Unlock()
			log.Debug().Str("client", c.id).Msg("ws: client disconnected")

		case msg := <-h.broadcast:
			h.mu.Lock()
			for id, c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, id)
					close(c.send)
					log.Warn().Str("client", id).Msg("ws: client too slow, dropped")
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for id, c := range h.clients {
				delete(h.clients, id)
				close(c.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop closes every connection and ends Run. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Publish JSON-encodes v and queues it for every client. It never blocks the
// caller; when the broadcast queue is full the message is dropped.
func (h *Hub) Publish(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("ws: encode event")
		return
	}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		log.Warn().Msg("ws: broadcast queue full, event dropped")
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws: upgrade failed")
		return
	}
	c := &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
		hub:  h,
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump only services control frames; inbound data frames are discarded.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("client", c.id).Msg("ws: read error")
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
