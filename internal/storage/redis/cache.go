// Package redis provides a result cache shared between service instances
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bobmcallan/analyst/internal/common"
	"github.com/bobmcallan/analyst/internal/interfaces"
	"github.com/bobmcallan/analyst/internal/models"
)

const (
	entryKeyPrefix = "analyst:entry:"
	symbolsKey     = "analyst:symbols"
)

// Cache stores each entry as one JSON string value. The entry and the
// symbol index are written in a single MULTI/EXEC transaction.
type Cache struct {
	client *redis.Client
	logger *common.Logger
}

// NewCache connects to Redis. address may be a redis:// URL or host:port.
func NewCache(ctx context.Context, logger *common.Logger, config common.CacheConfig) (*Cache, error) {
	if config.Address == "" {
		return nil, errors.New("redis cache address is required")
	}

	opt, err := redis.ParseURL(config.Address)
	if err != nil {
		opt = &redis.Options{
			Addr:     config.Address,
			Username: config.Username,
			Password: config.Password,
		}
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info().Str("address", opt.Addr).Msg("Redis result cache connected")

	return NewCacheWithClient(client, logger), nil
}

// NewCacheWithClient wraps an existing client
func NewCacheWithClient(client *redis.Client, logger *common.Logger) *Cache {
	return &Cache{client: client, logger: logger}
}

func entryKey(symbol string) string {
	return entryKeyPrefix + symbol
}

func (c *Cache) Lookup(ctx context.Context, symbol string) (*models.CacheEntry, error) {
	data, err := c.client.Get(ctx, entryKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry for %s: %w", symbol, err)
	}
	return &entry, nil
}

func (c *Cache) Store(ctx context.Context, entry *models.CacheEntry) error {
	if !entry.Complete() {
		return models.ErrIncompleteEntry
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, entryKey(entry.Symbol), data, 0)
		pipe.SAdd(ctx, symbolsKey, entry.Symbol)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	c.logger.Debug().Str("symbol", entry.Symbol).Int("bytes", len(data)).Msg("Cache entry stored")
	return nil
}

func (c *Cache) List(ctx context.Context) ([]models.CacheEntryInfo, error) {
	symbols, err := c.client.SMembers(ctx, symbolsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list cached symbols: %w", err)
	}
	if len(symbols) == 0 {
		return nil, nil
	}

	keys := make([]string, len(symbols))
	for i, s := range symbols {
		keys[i] = entryKey(s)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entries: %w", err)
	}

	infos := make([]models.CacheEntryInfo, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		// only the header fields are needed for the listing
		var head struct {
			Symbol    string    `json:"symbol"`
			CreatedAt time.Time `json:"created_at"`
		}
		if err := json.Unmarshal([]byte(s), &head); err != nil {
			c.logger.Warn().Err(err).Str("symbol", symbols[i]).Msg("Skipping unreadable cache entry")
			continue
		}
		infos = append(infos, models.CacheEntryInfo{Symbol: head.Symbol, CreatedAt: head.CreatedAt})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Symbol < infos[j].Symbol })
	return infos, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

var _ interfaces.ResultCache = (*Cache)(nil)
