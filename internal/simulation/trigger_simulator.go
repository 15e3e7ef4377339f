// Package simulation generates synthetic trigger traffic against the
// kafka bridge, including deliberate duplicate deliveries to exercise the
// engine's in-flight dedup.
package simulation

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vmglabs/luncheon-roulette/internal/chat"
	"github.com/vmglabs/luncheon-roulette/internal/event"
)

// Simulator publishes a trigger event every interval tick. Every few
// events it republishes the previous event verbatim, id included, which is
// what an at-least-once transport does under redelivery.
type Simulator struct {
	publisher event.TriggerPublisher
	rng       *rand.Rand
	log       zerolog.Logger
}

// New builds a simulator over a publisher.
func New(p event.TriggerPublisher, rng *rand.Rand, log zerolog.Logger) *Simulator {
	return &Simulator{publisher: p, rng: rng, log: log}
}

const duplicateFrequency = 5

// Run emits triggers until the context is canceled.
func (s *Simulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	channels := []string{"C_KITCHEN", "C_GENERAL", "C_RANDOM"}
	texts := []string{"<@U_BOT> spin", "<@U_BOT> add pizza", "<@U_BOT>", "<@U_BOT> dance"}

	var tickCount int
	var last chat.TriggerEvent

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("simulator stopping")
			return nil

		case <-ticker.C:
			tickCount++

			var ev chat.TriggerEvent
			if tickCount%duplicateFrequency == 0 && last.ID != "" {
				s.log.Info().Str("event_id", last.ID).Msg("redelivering previous event")
				ev = last
			} else {
				ev = chat.TriggerEvent{
					ID:      uuid.NewString(),
					Text:    texts[s.rng.Intn(len(texts))],
					Channel: channels[s.rng.Intn(len(channels))],
					Sender:  fmt.Sprintf("U_%04d", s.rng.Intn(100)),
				}
				last = ev
			}

			publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := s.publisher.Publish(publishCtx, ev); err != nil {
				s.log.Error().Err(err).Msg("publish trigger")
			}
			cancel()
		}
	}
}
