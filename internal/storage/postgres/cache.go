// Package postgres provides a result cache backed by a PostgreSQL table
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bobmcallan/analyst/internal/common"
	"github.com/bobmcallan/analyst/internal/interfaces"
	"github.com/bobmcallan/analyst/internal/models"
)

const schema = `CREATE TABLE IF NOT EXISTS analysis_cache (
	symbol     TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	payload    JSONB NOT NULL
)`

// Cache stores one row per symbol; Store is a single upsert.
type Cache struct {
	pool   *pgxpool.Pool
	logger *common.Logger
}

// NewCache connects to config.Address (a postgres:// URL), verifies the
// connection and creates the table.
func NewCache(ctx context.Context, logger *common.Logger, config common.CacheConfig) (*Cache, error) {
	if config.Address == "" {
		return nil, errors.New("postgres cache address is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres address: %w", err)
	}
	if config.Username != "" {
		poolConfig.ConnConfig.User = config.Username
	}
	if config.Password != "" {
		poolConfig.ConnConfig.Password = config.Password
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	c, err := NewCacheWithPool(ctx, logger, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Str("database", poolConfig.ConnConfig.Database).
		Msg("PostgreSQL result cache connected")
	return c, nil
}

// NewCacheWithPool wraps an existing pool and creates the table if needed
func NewCacheWithPool(ctx context.Context, logger *common.Logger, pool *pgxpool.Pool) (*Cache, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Cache{pool: pool, logger: logger}, nil
}

func (c *Cache) Lookup(ctx context.Context, symbol string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	err := c.pool.QueryRow(ctx, `SELECT payload FROM analysis_cache WHERE symbol = $1`, symbol).Scan(&entry)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry for %s: %w", symbol, err)
	}
	return &entry, nil
}

func (c *Cache) Store(ctx context.Context, entry *models.CacheEntry) error {
	if !entry.Complete() {
		return models.ErrIncompleteEntry
	}

	_, err := c.pool.Exec(ctx, `
		INSERT INTO analysis_cache (symbol, created_at, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol) DO UPDATE SET
			created_at = EXCLUDED.created_at,
			payload = EXCLUDED.payload
	`, entry.Symbol, entry.CreatedAt, entry)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}

	c.logger.Debug().Str("symbol", entry.Symbol).Msg("Cache entry stored")
	return nil
}

func (c *Cache) List(ctx context.Context) ([]models.CacheEntryInfo, error) {
	rows, err := c.pool.Query(ctx, `SELECT symbol, created_at FROM analysis_cache ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	var infos []models.CacheEntryInfo
	for rows.Next() {
		var info models.CacheEntryInfo
		if err := rows.Scan(&info.Symbol, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		info.CreatedAt = info.CreatedAt.UTC()
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (c *Cache) Close() error {
	c.pool.Close()
	return nil
}

var _ interfaces.ResultCache = (*Cache)(nil)
