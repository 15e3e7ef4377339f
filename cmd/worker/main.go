// The worker binary consumes bridged trigger events from kafka and runs
// them through the engine. Several workers may share the consumer group;
// the session store must then be a shared backend (redis or firestore).
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/vmglabs/luncheon-roulette/internal/catalog"
	"github.com/vmglabs/luncheon-roulette/internal/chat"
	chatslack "github.com/vmglabs/luncheon-roulette/internal/chat/slack"
	"github.com/vmglabs/luncheon-roulette/internal/config"
	"github.com/vmglabs/luncheon-roulette/internal/dedup"
	"github.com/vmglabs/luncheon-roulette/internal/engine"
	"github.com/vmglabs/luncheon-roulette/internal/event"
	"github.com/vmglabs/luncheon-roulette/internal/metrics"
	"github.com/vmglabs/luncheon-roulette/internal/store"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("role", "worker").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if cfg.StoreBackend == "memory" {
		log.Warn().Msg("memory store in a worker: sessions are invisible to other processes")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sessions, pool, closeStores, err := buildStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize store")
	}
	defer closeStores()

	api := slack.New(cfg.BotToken)
	auth, err := api.AuthTestContext(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("slack auth test")
	}

	venueCatalog, source, err := buildOptionSource(cfg, pool, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize venue catalog")
	}

	client := chatslack.NewClient(api)
	eng := engine.New(engine.Config{
		Store:       sessions,
		Pool:        pool,
		Catalog:     venueCatalog,
		Source:      source,
		Chat:        client,
		Profiles:    client,
		Inflight:    dedup.New(cfg.DedupTTL),
		Metrics:     metrics.New(prometheus.DefaultRegisterer),
		SelfMention: fmt.Sprintf("<@%s>", auth.UserID),
		OptionCount: cfg.OptionCount,
		Prompt:      cfg.Prompt,
		Logger:      log,
	})

	consumer, err := event.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create kafka consumer")
	}
	defer consumer.Close()

	log.Info().Str("topic", cfg.KafkaTopic).Str("group", cfg.KafkaGroupID).Msg("worker running")

	for {
		ev, err := consumer.ReadEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			continue
		}
		// Each event runs independently; one hung external call must not
		// stall the stream.
		go func(ev chat.TriggerEvent) {
			if err := eng.HandleTrigger(ctx, ev); err != nil {
				log.Error().Err(err).Str("event_id", ev.ID).Msg("trigger handling failed")
			}
		}(ev)
	}

	log.Info().Msg("worker terminated")
}

// buildStores selects the session/pool store backend.
func buildStores(ctx context.Context, cfg config.Config) (store.SessionStore, store.PoolStore, func(), error) {
	switch cfg.StoreBackend {
	case "memory":
		m := store.NewMemoryStore()
		return m, m, func() {}, nil

	case "redis":
		rs, err := store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return rs, rs, func() { _ = rs.Close() }, nil

	case "firestore":
		fs, err := store.NewFirestoreStore(ctx, cfg.FirestoreProject, cfg.FirestoreCredentials)
		if err != nil {
			return nil, nil, nil, err
		}
		return fs, fs, func() { _ = fs.Close() }, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// buildOptionSource selects the live Places-backed source or the canned
// mock one.
func buildOptionSource(cfg config.Config, pool store.PoolStore, log zerolog.Logger) (catalog.Catalog, engine.OptionSource, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	if cfg.OptionSource == "mock" {
		static := catalog.NewStatic(nil)
		return static, engine.NewMockSource(rng), nil
	}

	if cfg.MapsAPIKey == "" {
		return nil, nil, fmt.Errorf("live option source requires MAPS_API_KEY")
	}
	provider, err := catalog.NewPlacesProvider(cfg.MapsAPIKey, catalog.PlacesConfig{
		Latitude:  cfg.Latitude,
		Longitude: cfg.Longitude,
		Radius:    cfg.RadiusMeters,
	})
	if err != nil {
		return nil, nil, err
	}

	nearby := catalog.NewNearby(provider, cfg.PageSettle, log)
	return nearby, engine.NewLiveSource(nearby, pool, rng, log), nil
}
