package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/quake-sync/internal/adapter/badgerstore"
	"github.com/couchcryptid/quake-sync/internal/adapter/kafka"
	"github.com/couchcryptid/quake-sync/internal/adapter/mapbox"
	"github.com/couchcryptid/quake-sync/internal/adapter/natsbus"
	"github.com/couchcryptid/quake-sync/internal/adapter/pocketbase"
	"github.com/couchcryptid/quake-sync/internal/adapter/postgres"
	"github.com/couchcryptid/quake-sync/internal/adapter/redisstore"
	"github.com/couchcryptid/quake-sync/internal/adapter/usgs"
	"github.com/couchcryptid/quake-sync/internal/auth"
	"github.com/couchcryptid/quake-sync/internal/config"
	"github.com/couchcryptid/quake-sync/internal/domain"
	"github.com/couchcryptid/quake-sync/internal/observability"
	"github.com/couchcryptid/quake-sync/internal/pipeline"
	"github.com/couchcryptid/quake-sync/internal/reconcile"
)

// closers runs cleanup functions in reverse order of registration.
type closers struct {
	fns    []func() error
	logger *slog.Logger
}

func (c *closers) add(name string, fn func() error) {
	c.fns = append(c.fns, func() error {
		if err := fn(); err != nil {
			return fmt.Errorf("close %s: %w", name, err)
		}
		return nil
	})
}

func (c *closers) close() {
	for i := len(c.fns) - 1; i >= 0; i-- {
		if err := c.fns[i](); err != nil {
			c.logger.Error("shutdown error", "error", err)
		}
	}
}

const (
	connectAttempts   = 5
	connectBackoff    = 500 * time.Millisecond
	connectMaxBackoff = 8 * time.Second
)

// connectWithRetry calls connect until it succeeds, the attempts run out or
// ctx is cancelled. Dependencies started alongside the service may not accept
// connections yet.
func connectWithRetry[T any](ctx context.Context, name string, logger *slog.Logger, backoff time.Duration, connect func(context.Context) (T, error)) (T, error) {
	var zero T
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		var v T
		if v, err = connect(ctx); err == nil {
			return v, nil
		}
		if attempt == connectAttempts {
			break
		}
		logger.Warn("connect failed, retrying", "dependency", name, "attempt", attempt, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return zero, fmt.Errorf("connect %s: %w", name, ctx.Err())
		}
		backoff = retry.NextBackoff(backoff, connectMaxBackoff)
	}
	return zero, fmt.Errorf("connect %s after %d attempts: %w", name, connectAttempts, err)
}

// stores holds the record collection and, for backends that have one, the
// local user store.
type stores struct {
	collection reconcile.Collection
	users      auth.UserStore
	pocketbase *pocketbase.Client
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger, cl *closers) (stores, error) {
	pb := pocketbase.NewClient(cfg.PocketBaseURL, cfg.PocketBaseCollection, pocketbase.WithToken(cfg.PocketBaseToken))

	switch cfg.StoreBackend {
	case config.StorePostgres:
		db, err := connectWithRetry(ctx, "postgres", logger, connectBackoff, func(ctx context.Context) (*pgxpool.Pool, error) {
			return postgres.Connect(ctx, cfg.DatabaseURL)
		})
		if err != nil {
			return stores{}, err
		}
		cl.add("postgres", func() error { db.Close(); return nil })
		store := postgres.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return stores{}, err
		}
		return stores{collection: store, users: store, pocketbase: pb}, nil
	case config.StoreBadger:
		store, err := badgerstore.Open(cfg.BadgerPath)
		if err != nil {
			return stores{}, err
		}
		cl.add("badger", store.Close)
		return stores{collection: store, users: store, pocketbase: pb}, nil
	default:
		return stores{collection: pb, pocketbase: pb}, nil
	}
}

func newGeocoder(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) domain.Geocoder {
	if !cfg.MapboxEnabled {
		logger.Info("mapbox geocoding disabled")
		return nil
	}
	client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
	logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	return mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
}

func newPublisher(cfg *config.Config, logger *slog.Logger, cl *closers) (pipeline.EventPublisher, error) {
	switch cfg.EventsSink {
	case config.SinkKafka:
		w := kafka.NewWriter(cfg)
		cl.add("kafka writer", w.Close)
		logger.Info("publishing sync events to kafka", "topic", cfg.KafkaTopic)
		return w, nil
	case config.SinkNATS:
		nc, err := natsbus.Connect(cfg.NATSURL, logger)
		if err != nil {
			return nil, err
		}
		p := natsbus.NewPublisher(nc, cfg.NATSSubject)
		cl.add("nats", p.Close)
		logger.Info("publishing sync events to nats", "subject", cfg.NATSSubject)
		return p, nil
	default:
		return nil, nil
	}
}

func newAuthManager(ctx context.Context, cfg *config.Config, st stores, logger *slog.Logger, metrics *observability.Metrics, cl *closers) (*auth.Manager, error) {
	var backend auth.Authenticator = st.pocketbase
	if cfg.AuthBackend == config.AuthLocal {
		backend = auth.NewLocal(st.users, cfg.JWTSecret, cfg.SessionTTL, nil)
	}

	var sessions auth.SessionStore = auth.NewMemoryStore(nil)
	if cfg.RedisURL != "" {
		rdb, err := connectWithRetry(ctx, "redis", logger, connectBackoff, func(ctx context.Context) (*redis.Client, error) {
			return redisstore.Connect(ctx, cfg.RedisURL)
		})
		if err != nil {
			return nil, err
		}
		cl.add("redis", rdb.Close)
		sessions = redisstore.NewSessionStore(rdb)
	}

	return auth.NewManager(backend, sessions, cfg.SessionTTL, nil, logger, metrics), nil
}

// newPipeline assembles the ingestion pass. sink and upserter may be nil for
// read-only use through Load.
func newPipeline(cfg *config.Config, upserter pipeline.Upserter, sink pipeline.SnapshotSink, pub pipeline.EventPublisher, logger *slog.Logger, metrics *observability.Metrics) *pipeline.Pipeline {
	fetcher := usgs.NewClient(cfg.FeedURL, cfg.FeedTimeout)
	transformer := pipeline.NewTransformer(domain.NewEncoder(cfg.RadiusTable), newGeocoder(cfg, logger, metrics), logger)

	var opts []pipeline.Option
	if pub != nil {
		opts = append(opts, pipeline.WithPublisher(pub))
	}
	return pipeline.New(fetcher, transformer, upserter, sink, logger, metrics, opts...)
}
