package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/quake-sync/internal/domain"
)

const (
	defaultFeedURL     = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_hour.geojson"
	defaultDisplayTZ   = "Europe/Rome"
	defaultCollection  = "terremoti"
	defaultKafkaTopic  = "earthquakes-synced"
	defaultNATSSubject = "quakes.synced"
)

// Store backends.
const (
	StorePocketBase = "pocketbase"
	StorePostgres   = "postgres"
	StoreBadger     = "badger"
)

// Auth backends.
const (
	AuthPocketBase = "pocketbase"
	AuthLocal      = "local"
)

// Event sinks.
const (
	SinkNone  = "none"
	SinkKafka = "kafka"
	SinkNATS  = "nats"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	FeedURL      string
	FeedTimeout  time.Duration
	PollInterval time.Duration

	RadiusTable     domain.RadiusTable
	DisplayLocation *time.Location
	PulseInterval   time.Duration

	StoreBackend         string
	PocketBaseURL        string
	PocketBaseCollection string
	PocketBaseToken      string
	DatabaseURL          string
	BadgerPath           string

	AuthBackend string
	JWTSecret   string
	SessionTTL  time.Duration
	RedisURL    string

	EventsSink   string
	KafkaBrokers []string
	KafkaTopic   string
	NATSURL      string
	NATSSubject  string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	feedTimeout, err := parseDuration("FEED_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parseDuration("POLL_INTERVAL", "60s")
	if err != nil {
		return nil, err
	}
	pulseInterval, err := parseDuration("PULSE_INTERVAL", "1s")
	if err != nil {
		return nil, err
	}
	sessionTTL, err := parseDuration("SESSION_TTL", "24h")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	mapboxCacheSize, err := parsePositiveInt("MAPBOX_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled, err := parseBool("MAPBOX_ENABLED", mapboxToken != "")
	if err != nil {
		return nil, err
	}

	table, err := loadRadiusTable(os.Getenv("RADIUS_TABLE"), os.Getenv("RADIUS_TABLE_FILE"))
	if err != nil {
		return nil, err
	}

	loc, err := loadLocation(os.Getenv("DISPLAY_TZ"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		CORSOrigins:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("CORS_ORIGINS", "*")),

		FeedURL:      sharedcfg.EnvOrDefault("FEED_URL", defaultFeedURL),
		FeedTimeout:  feedTimeout,
		PollInterval: pollInterval,

		RadiusTable:     table,
		DisplayLocation: loc,
		PulseInterval:   pulseInterval,

		StoreBackend:         sharedcfg.EnvOrDefault("STORE_BACKEND", StorePocketBase),
		PocketBaseURL:        sharedcfg.EnvOrDefault("POCKETBASE_URL", "http://127.0.0.1:8090"),
		PocketBaseCollection: sharedcfg.EnvOrDefault("POCKETBASE_COLLECTION", defaultCollection),
		PocketBaseToken:      os.Getenv("POCKETBASE_TOKEN"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		BadgerPath:           sharedcfg.EnvOrDefault("BADGER_PATH", "data/badger"),

		AuthBackend: sharedcfg.EnvOrDefault("AUTH_BACKEND", AuthPocketBase),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		SessionTTL:  sessionTTL,
		RedisURL:    os.Getenv("REDIS_URL"),

		EventsSink:   sharedcfg.EnvOrDefault("EVENTS_SINK", SinkNone),
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", defaultKafkaTopic),
		NATSURL:      sharedcfg.EnvOrDefault("NATS_URL", "nats://127.0.0.1:4222"),
		NATSSubject:  sharedcfg.EnvOrDefault("NATS_SUBJECT", defaultNATSSubject),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: mapboxCacheSize,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StorePocketBase:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	case StoreBadger:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.AuthBackend {
	case AuthPocketBase:
	case AuthLocal:
		if c.JWTSecret == "" {
			return errors.New("JWT_SECRET is required when AUTH_BACKEND=local")
		}
		if c.StoreBackend == StorePocketBase {
			return errors.New("AUTH_BACKEND=local needs STORE_BACKEND postgres or badger for user records")
		}
	default:
		return fmt.Errorf("unknown AUTH_BACKEND %q", c.AuthBackend)
	}

	switch c.EventsSink {
	case SinkNone, SinkNATS:
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when EVENTS_SINK=kafka")
		}
	default:
		return fmt.Errorf("unknown EVENTS_SINK %q", c.EventsSink)
	}

	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	return nil
}

// loadRadiusTable resolves the radius table. A file wins over a built-in name.
func loadRadiusTable(name, path string) (domain.RadiusTable, error) {
	if path == "" {
		table, err := domain.RadiusTableByName(name)
		if err != nil {
			return domain.RadiusTable{}, fmt.Errorf("RADIUS_TABLE: %w", err)
		}
		return table, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.RadiusTable{}, fmt.Errorf("read RADIUS_TABLE_FILE: %w", err)
	}
	var table domain.RadiusTable
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return domain.RadiusTable{}, fmt.Errorf("parse RADIUS_TABLE_FILE: %w", err)
	}
	if table.Name == "" {
		table.Name = "custom"
	}
	if err := table.Validate(); err != nil {
		return domain.RadiusTable{}, fmt.Errorf("RADIUS_TABLE_FILE: %w", err)
	}
	return table, nil
}

// loadLocation resolves DISPLAY_TZ. The default zone falls back to UTC when
// the host has no tzdata; an explicit zone must resolve.
func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		loc, err := time.LoadLocation(defaultDisplayTZ)
		if err != nil {
			return time.UTC, nil //nolint:nilerr // missing tzdata is not fatal for the default
		}
		return loc, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid DISPLAY_TZ %q: %w", name, err)
	}
	return loc, nil
}
