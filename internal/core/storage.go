package core

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"docchain/internal/config"
	"docchain/internal/infra/persistence/memory"
	"docchain/internal/infra/persistence/postgres"
	"docchain/internal/infra/persistence/redis"
	"docchain/internal/infra/persistence/sqlite"
	"docchain/pkg/domain"
)

// StorageDriver identifies a concrete document backend.
type StorageDriver string

const (
	StorageMemory   StorageDriver = config.DriverMemory   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = config.DriverSQLite   // embedded sqlite file
	StoragePostgres StorageDriver = config.DriverPostgres // PostgreSQL server
	StorageRedis    StorageDriver = config.DriverRedis    // Redis server
)

// OpenBackend selects a backend from cfg. An empty driver means sqlite.
func OpenBackend(ctx context.Context, cfg config.Storage) (domain.Backend, error) {
	driver := StorageDriver(cfg.Driver)
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StorageRedis:
		store, err := redis.NewStore(ctx, &goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.Namespace)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
