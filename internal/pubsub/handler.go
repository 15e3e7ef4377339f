package pubsub

import (
	"net/http"

	"github.com/coder/websocket"
)

// Handler upgrades requests on /ws/sessions/{key...} to a subscription for
// that session's renders. The key path segment is the raw session key
// (channel/timestamp), so it spans two path elements.
func Handler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("key")
		if key == "" {
			http.Error(w, "missing session key", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}

		client := &Client{
			Hub:        hub,
			Conn:       conn,
			Send:       make(chan []byte, 8),
			SessionKey: key,
		}
		hub.register <- client

		go client.WritePump(r.Context())
		client.ReadPump(r.Context())
	}
}
