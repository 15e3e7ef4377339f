// Package pubsub fans freshly rendered poll sessions out to websocket
// subscribers, one subscription per session key.
package pubsub

import (
	"context"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// Message carries one session's rendered blocks to its subscribers.
type Message struct {
	SessionKey string
	Data       []byte
}

// Client is one websocket subscriber watching a single session.
type Client struct {
	Hub        *Hub
	Conn       *websocket.Conn
	Send       chan []byte
	SessionKey string
}

// Hub routes rendered sessions to the clients subscribed to them.
type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	log        zerolog.Logger
}

// NewHub returns an idle hub; call Run to start routing.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan Message, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

// Broadcast queues a render for every subscriber of the session. Never
// blocks the caller; the engine's vote path must not wait on dashboards.
func (h *Hub) Broadcast(sessionKey string, payload []byte) {
	select {
	case h.broadcast <- Message{SessionKey: sessionKey, Data: payload}:
	default:
		h.log.Warn().Str("session", sessionKey).Msg("broadcast queue full, dropping render")
	}
}

// Run routes messages until the context is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			conns := h.clients[client.SessionKey]
			if conns == nil {
				conns = make(map[*Client]bool)
				h.clients[client.SessionKey] = conns
			}
			conns[client] = true

		case client := <-h.unregister:
			conns := h.clients[client.SessionKey]
			if conns != nil {
				if _, ok := conns[client]; ok {
					delete(conns, client)
					close(client.Send)
					if len(conns) == 0 {
						delete(h.clients, client.SessionKey)
					}
				}
			}

		case msg := <-h.broadcast:
			for c := range h.clients[msg.SessionKey] {
				select {
				case c.Send <- msg.Data:
				default:
					close(c.Send)
					delete(h.clients[msg.SessionKey], c)
				}
			}
		}
	}
}

// WritePump sends queued renders to the websocket connection.
func (c *Client) WritePump(ctx context.Context) {
	defer c.Conn.Close(websocket.StatusNormalClosure, "")

	for m := range c.Send {
		if err := c.Conn.Write(ctx, websocket.MessageText, m); err != nil {
			return
		}
	}
}

// ReadPump drains the connection until the peer goes away, then
// unregisters the client.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.Conn.Read(ctx); err != nil {
			return
		}
	}
}
