package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestHubRoutesBySessionKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub(zerolog.Nop())
	go h.Run(ctx)

	watching := &Client{Hub: h, Send: make(chan []byte, 1), SessionKey: "C1/100.001"}
	other := &Client{Hub: h, Send: make(chan []byte, 1), SessionKey: "C2/200.002"}
	h.register <- watching
	h.register <- other

	h.Broadcast("C1/100.001", []byte("render"))

	select {
	case got := <-watching.Send:
		assert.Equal(t, "render", string(got))
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the render")
	}

	select {
	case <-other.Send:
		t.Fatal("unrelated session received the render")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub(zerolog.Nop())
	go h.Run(ctx)

	c := &Client{Hub: h, Send: make(chan []byte, 1), SessionKey: "C1/100.001"}
	h.register <- c
	h.unregister <- c

	select {
	case _, open := <-c.Send:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("send channel never closed")
	}
}
