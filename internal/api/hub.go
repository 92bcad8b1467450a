package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// channelMessage is one broadcast, scoped to a pair channel ("BASE/QUOTE")
// or "*" for events with no single pair (none currently, but the shape
// mirrors the per-pair case uniformly).
type channelMessage struct {
	channel string
	payload []byte
}

// Hub fans out broadcast messages to every subscribed client, adapted from
// uhyunpark-hyperlicked's pkg/api/websocket.go Hub/Client pair.
type Hub struct {
	log zerolog.Logger

	mu      sync.RWMutex
	clients map[*Client]bool

	broadcast  chan channelMessage
	register   chan *Client
	unregister chan *Client
}

// NewHub returns an idle Hub; call Run to start its dispatch loop.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan channelMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run services register/unregister/broadcast until ctx-less forever; callers
// run it in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.log.Debug().Str("client", c.id).Int("total", len(h.clients)).Msg("ws client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case m := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.subscribed(m.channel) {
					continue
				}
				select {
				case c.send <- m.payload:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastEvent marshals typ/data as a WSMessage and fans it out to every
// client subscribed to channel or "*".
func (h *Hub) BroadcastEvent(channel, typ string, data any) {
	payload, err := json.Marshal(WSMessage{Type: typ, Data: data})
	if err != nil {
		h.log.Error().Err(err).Str("type", typ).Msg("ws marshal failed")
		return
	}
	h.broadcast <- channelMessage{channel: channel, payload: payload}
}

// ServeWS upgrades r into a WebSocket connection and registers a Client for
// it, starting its read/write pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("ws upgrade failed")
		return
	}

	c := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		id:      conn.RemoteAddr().String(),
		subs:    make(map[string]bool),
	}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

// Client is one subscriber connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	subsMu sync.RWMutex
	subs   map[string]bool
}

func (c *Client) subscribed(channel string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	return c.subs["*"] || c.subs[channel]
}

func (c *Client) subscribe(channels []string) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range channels {
		c.subs[ch] = true
	}
}

func (c *Client) unsubscribe(channels []string) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range channels {
		delete(c.subs, ch)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req WSSubscribeRequest
		if err := json.Unmarshal(message, &req); err != nil {
			continue
		}
		switch req.Op {
		case "subscribe":
			c.subscribe(req.Channels)
		case "unsubscribe":
			c.unsubscribe(req.Channels)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
