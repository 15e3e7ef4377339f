// The simulator binary floods the kafka trigger topic with synthetic
// events, duplicate deliveries included, so a worker plus the mock option
// source can be exercised without Slack.
package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vmglabs/luncheon-roulette/internal/config"
	"github.com/vmglabs/luncheon-roulette/internal/event"
	"github.com/vmglabs/luncheon-roulette/internal/simulation"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("role", "simulator").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	publisher, err := event.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		log.Fatal().Err(err).Msg("create kafka publisher")
	}
	defer publisher.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	sim := simulation.New(publisher, rng, log)

	log.Info().Str("topic", cfg.KafkaTopic).Msg("simulator running")
	if err := sim.Run(ctx); err != nil {
		log.Error().Err(err).Msg("simulator failed")
	}
	log.Info().Msg("simulator terminated")
}
