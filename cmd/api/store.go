package main

import (
	"context"
	"fmt"

	"github.com/querynotes/querynotes-api/internal/api/handler"
	"github.com/querynotes/querynotes-api/internal/core/ports"
	"github.com/querynotes/querynotes-api/internal/infrastructure/db/memory"
	"github.com/querynotes/querynotes-api/internal/infrastructure/db/mongo"
	"github.com/querynotes/querynotes-api/internal/infrastructure/db/postgres"
	"github.com/querynotes/querynotes-api/internal/pkg/config"
)

// store is the persistence backend selected by STORE_DRIVER.
type store struct {
	users   ports.UserRepository
	queries ports.QueryRepository
	probe   *handler.Dependency
	close   func(context.Context) error
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.DSN})
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &store{
			users:   postgres.NewUserRepository(pool),
			queries: postgres.NewQueryRepository(pool),
			probe:   &handler.Dependency{Name: "postgres", Check: pool.Ping},
			close: func(context.Context) error {
				pool.Close()
				return nil
			},
		}, nil

	case config.StoreMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		if err := mongo.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &store{
			users:   mongo.NewUserRepository(db),
			queries: mongo.NewQueryRepository(db),
			probe: &handler.Dependency{Name: "mongodb", Check: func(ctx context.Context) error {
				return client.Ping(ctx, nil)
			}},
			close: client.Disconnect,
		}, nil

	case config.StoreMemory:
		return &store{
			users:   memory.NewUserRepository(),
			queries: memory.NewQueryRepository(),
			close:   func(context.Context) error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
