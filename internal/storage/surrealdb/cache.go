// Package surrealdb provides a result cache backed by SurrealDB
package surrealdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/analyst/internal/common"
	"github.com/bobmcallan/analyst/internal/interfaces"
	"github.com/bobmcallan/analyst/internal/models"
)

const table = "analysis_cache"

// cacheRecord is the stored row. The entry itself is kept as a JSON
// payload so it round-trips exactly; symbol and created_at are
// duplicated as fields for listing.
type cacheRecord struct {
	Symbol    string    `json:"symbol"`
	CreatedAt time.Time `json:"created_at"`
	Payload   string    `json:"payload"`
}

// Cache implements ResultCache using one SurrealDB record per symbol.
// UPSERT replaces the record in a single statement.
type Cache struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewCache connects to SurrealDB and ensures the cache table exists
func NewCache(ctx context.Context, logger *common.Logger, config common.CacheConfig) (*Cache, error) {
	if config.Address == "" {
		return nil, errors.New("surrealdb cache address is required")
	}

	db, err := surrealdb.New(config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Username,
		"pass": config.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Namespace, config.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	c, err := NewCacheWithDB(ctx, db, logger)
	if err != nil {
		db.Close(ctx)
		return nil, err
	}

	logger.Info().
		Str("address", config.Address).
		Str("namespace", config.Namespace).
		Str("database", config.Database).
		Msg("SurrealDB result cache initialized")

	return c, nil
}

// NewCacheWithDB wraps an open connection that already has a namespace and database selected
func NewCacheWithDB(ctx context.Context, db *surrealdb.DB, logger *common.Logger) (*Cache, error) {
	// SurrealDB v3 errors on querying non-existent tables
	sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
	if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
		return nil, fmt.Errorf("failed to define table %s: %w", table, err)
	}
	return &Cache{db: db, logger: logger}, nil
}

func (c *Cache) Lookup(ctx context.Context, symbol string) (*models.CacheEntry, error) {
	rec, err := surrealdb.Select[cacheRecord](ctx, c.db, surrealmodels.NewRecordID(table, symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to select cache entry: %w", err)
	}
	if rec == nil || rec.Payload == "" {
		return nil, nil
	}

	var entry models.CacheEntry
	if err := json.Unmarshal([]byte(rec.Payload), &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry for %s: %w", symbol, err)
	}
	return &entry, nil
}

func (c *Cache) Store(ctx context.Context, entry *models.CacheEntry) error {
	if !entry.Complete() {
		return models.ErrIncompleteEntry
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	sql := "UPSERT $rid CONTENT $data"
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID(table, entry.Symbol),
		"data": cacheRecord{
			Symbol:    entry.Symbol,
			CreatedAt: entry.CreatedAt.UTC(),
			Payload:   string(payload),
		},
	}

	if _, err := surrealdb.Query[[]cacheRecord](ctx, c.db, sql, vars); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	c.logger.Debug().Str("symbol", entry.Symbol).Int("bytes", len(payload)).Msg("Cache entry stored")
	return nil
}

func (c *Cache) List(ctx context.Context) ([]models.CacheEntryInfo, error) {
	sql := fmt.Sprintf("SELECT symbol, created_at FROM %s ORDER BY symbol", table)

	results, err := surrealdb.Query[[]cacheRecord](ctx, c.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}

	var infos []models.CacheEntryInfo
	if results != nil && len(*results) > 0 {
		for _, rec := range (*results)[0].Result {
			infos = append(infos, models.CacheEntryInfo{Symbol: rec.Symbol, CreatedAt: rec.CreatedAt})
		}
	}
	return infos, nil
}

func (c *Cache) Close() error {
	return c.db.Close(context.Background())
}

var _ interfaces.ResultCache = (*Cache)(nil)
