package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/CineMatch/internal/config"
	"github.com/dkeye/CineMatch/internal/storage"
	"github.com/dkeye/CineMatch/internal/storage/dynamo"
	"github.com/dkeye/CineMatch/internal/storage/memory"
	"github.com/dkeye/CineMatch/internal/storage/mongostore"
	"github.com/dkeye/CineMatch/internal/storage/sqlite"
)

const connectTimeout = 10 * time.Second

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.SessionStore, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	var (
		store storage.SessionStore
		err   error
	)
	switch cfg.Driver {
	case config.DriverMemory:
		store = memory.New()
	case config.DriverSQLite:
		store, err = sqlite.Open(cfg.SQLitePath)
	case config.DriverMongo:
		store, err = mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.DriverDynamoDB:
		store, err = dynamo.Open(ctx, dynamo.Options{
			Table:    cfg.DynamoTable,
			Region:   cfg.DynamoRegion,
			Endpoint: cfg.DynamoEndpoint,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Driver, err)
	}
	log.Info().Str("module", "storage").Str("driver", cfg.Driver).Msg("storage ready")
	return store, nil
}
