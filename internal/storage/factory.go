// Package storage selects and constructs the result cache backend.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/analyst/internal/common"
	"github.com/bobmcallan/analyst/internal/interfaces"
	"github.com/bobmcallan/analyst/internal/storage/memory"
	"github.com/bobmcallan/analyst/internal/storage/postgres"
	"github.com/bobmcallan/analyst/internal/storage/redis"
	"github.com/bobmcallan/analyst/internal/storage/sqlite"
	"github.com/bobmcallan/analyst/internal/storage/surrealdb"
)

// Backend type constants.
const (
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendRedis     = "redis"
	BackendSurrealDB = "surrealdb"
	BackendPostgres  = "postgres"
)

// NewResultCache creates a result cache based on the configuration.
// Supported backends: "memory" (default), "sqlite", "redis", "surrealdb", "postgres".
func NewResultCache(ctx context.Context, logger *common.Logger, config common.CacheConfig) (interfaces.ResultCache, error) {
	backend := strings.ToLower(strings.TrimSpace(config.Backend))
	if backend == "" {
		backend = BackendMemory
	}

	switch backend {
	case BackendMemory:
		return memory.NewCache(logger), nil

	case BackendSQLite:
		c, err := sqlite.NewCache(logger, config.Path)
		if err != nil {
			return nil, err
		}
		return c, nil

	case BackendRedis:
		c, err := redis.NewCache(ctx, logger, config)
		if err != nil {
			return nil, err
		}
		return c, nil

	case BackendSurrealDB:
		c, err := surrealdb.NewCache(ctx, logger, config)
		if err != nil {
			return nil, err
		}
		return c, nil

	case BackendPostgres:
		c, err := postgres.NewCache(ctx, logger, config)
		if err != nil {
			return nil, err
		}
		return c, nil

	default:
		return nil, fmt.Errorf("unknown cache backend: %s (supported: memory, sqlite, redis, surrealdb, postgres)", config.Backend)
	}
}
