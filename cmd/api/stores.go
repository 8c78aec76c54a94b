package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gpstunnel/gpstunnel/internal/config"
	"github.com/gpstunnel/gpstunnel/internal/database"
	"github.com/gpstunnel/gpstunnel/internal/events"
	"github.com/gpstunnel/gpstunnel/internal/featureflags"
	"github.com/gpstunnel/gpstunnel/internal/tour"
)

// pingFunc adapts a function to tour.Pinger.
type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type stores struct {
	catalog  tour.Catalog
	sessions tour.SessionStore
	flags    featureflags.Repository
	checks   map[string]tour.Pinger
	closers  []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores connects the configured catalog and session backend. Feature
// flags persist in PostgreSQL when it is the store and in memory otherwise.
func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().
			Str("host", cfg.Postgres.Host).
			Str("database", cfg.Postgres.Database).
			Msg("database connected")

		store := tour.NewPostgresStore(pool)
		return &stores{
			catalog:  store,
			sessions: store,
			flags:    featureflags.NewPostgresRepository(pool),
			checks:   map[string]tour.Pinger{"postgres": store},
			closers:  []func(){pool.Close},
		}, nil

	case config.StoreMongo:
		client, db, err := database.ConnectMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		store := tour.NewMongoStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx) //nolint:errcheck // index error is what matters
			return nil, err
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("mongodb connected")

		return &stores{
			catalog:  store,
			sessions: store,
			flags:    featureflags.NewInMemoryRepository(),
			checks:   map[string]tour.Pinger{"mongodb": store},
			closers: []func(){func() {
				_ = client.Disconnect(context.Background()) //nolint:errcheck // shutting down
			}},
		}, nil

	case config.StoreMemory:
		log.Warn().Msg("using in-memory store, data is lost on restart")
		store := tour.NewInMemoryStore()
		return &stores{
			catalog:  store,
			sessions: store,
			flags:    featureflags.NewInMemoryRepository(),
			checks:   map[string]tour.Pinger{"memory": store},
		}, nil
	}
	return nil, fmt.Errorf("%w: STORE_BACKEND %q", config.ErrInvalidConfig, cfg.StoreBackend)
}

// openPublisher connects the configured progress event transport. The
// returned Pinger is nil when the transport has no health check.
func openPublisher(ctx context.Context, cfg *config.Config, log zerolog.Logger) (events.Publisher, tour.Pinger, error) {
	switch cfg.EventsBackend {
	case config.EventsRedis:
		client, err := database.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Msg("publishing progress events to redis")
		ping := pingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
		return events.NewRedisPublisher(client), ping, nil

	case config.EventsPubSub:
		publisher, err := events.NewPubSubPublisher(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("topic", cfg.PubSub.Topic).Msg("publishing progress events to pubsub")
		return publisher, nil, nil
	}
	return events.NopPublisher{}, nil, nil
}
