// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full runtime configuration. One struct serves every
// binary; each one reads the fields it needs.
type Config struct {
	// Chat platform credentials.
	BotToken string `env:"LUNCH_BOT_TOKEN"`
	AppToken string `env:"LUNCH_APP_TOKEN"`

	// Venue catalog. The default bias is the office front door.
	MapsAPIKey   string  `env:"MAPS_API_KEY"`
	Latitude     float64 `env:"LUNCH_LATITUDE" envDefault:"51.083986"`
	Longitude    float64 `env:"LUNCH_LONGITUDE" envDefault:"-114.130609"`
	RadiusMeters uint    `env:"LUNCH_RADIUS_METERS" envDefault:"4000"`
	PageSettle   time.Duration `env:"LUNCH_PAGE_SETTLE" envDefault:"2s"`

	// Poll shape.
	OptionCount  int    `env:"LUNCH_OPTION_COUNT" envDefault:"4"`
	Prompt       string `env:"LUNCH_PROMPT"`
	OptionSource string `env:"LUNCH_OPTION_SOURCE" envDefault:"live"`

	// Session storage: memory, redis or firestore.
	StoreBackend         string `env:"LUNCH_STORE" envDefault:"memory"`
	RedisURL             string `env:"LUNCH_REDIS_URL" envDefault:"redis://localhost:6379"`
	FirestoreProject     string `env:"LUNCH_FIRESTORE_PROJECT"`
	FirestoreCredentials string `env:"LUNCH_FIRESTORE_CREDENTIALS"`

	// Trigger bridge.
	KafkaBrokers []string `env:"LUNCH_KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaTopic   string   `env:"LUNCH_KAFKA_TOPIC" envDefault:"lunch-triggers"`
	KafkaGroupID string   `env:"LUNCH_KAFKA_GROUP" envDefault:"lunch-workers"`

	// HTTP surface: /metrics and the live board websocket.
	ListenAddr string `env:"LUNCH_LISTEN_ADDR" envDefault:":8081"`

	DedupTTL time.Duration `env:"LUNCH_DEDUP_TTL" envDefault:"5m"`
}

// Load parses the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
