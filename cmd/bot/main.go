// The bot binary runs the full lunch-roulette loop in one process: Slack
// socket-mode events in, polls and vote updates out, plus the /metrics and
// live-board HTTP surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/vmglabs/luncheon-roulette/internal/catalog"
	chatslack "github.com/vmglabs/luncheon-roulette/internal/chat/slack"
	"github.com/vmglabs/luncheon-roulette/internal/config"
	"github.com/vmglabs/luncheon-roulette/internal/dedup"
	"github.com/vmglabs/luncheon-roulette/internal/engine"
	"github.com/vmglabs/luncheon-roulette/internal/metrics"
	"github.com/vmglabs/luncheon-roulette/internal/pubsub"
	"github.com/vmglabs/luncheon-roulette/internal/store"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sessions, pool, closeStores, err := buildStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize store")
	}
	defer closeStores()

	api := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))
	auth, err := api.AuthTestContext(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("slack auth test")
	}

	venueCatalog, source, err := buildOptionSource(cfg, pool, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize venue catalog")
	}

	hub := pubsub.NewHub(log)
	go hub.Run(ctx)

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
		Broadcaster: hub,
		SelfMention: fmt.Sprintf("<@%s>", auth.UserID),
		OptionCount: cfg.OptionCount,
		Prompt:      cfg.Prompt,
		Logger:      log,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws/sessions/{key...}", pubsub.Handler(hub))
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	log.Info().Str("bot_user", auth.UserID).Str("listen", cfg.ListenAddr).Msg("bot running")

	runner := chatslack.NewRunner(socketmode.New(api), eng, log)
	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("runner stopped")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	log.Info().Msg("bot terminated")
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
