// The board binary tails the live scoreboard for one poll session: it
// dials the bot's websocket endpoint and prints every render it pushes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("role", "board").Logger()

	if len(os.Args) < 2 {
		log.Fatal().Msg("usage: board <session-key> [host]")
	}
	key := os.Args[1]

	host := "localhost:8081"
	if len(os.Args) > 2 {
		host = os.Args[2]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	url := fmt.Sprintf("ws://%s/ws/sessions/%s", host, key)
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		log.Fatal().Err(err).Str("url", url).Msg("dial failed")
	}
	defer conn.Close(websocket.StatusNormalClosure, "board exit")

	log.Info().Str("session", key).Msg("watching session")
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info().Msg("connection closed")
				return
			}
			log.Error().Err(err).Msg("read failed")
			return
		}
		fmt.Println(string(msg))
	}
}
