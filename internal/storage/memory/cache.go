// Package memory provides an in-process result cache
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bobmcallan/analyst/internal/common"
	"github.com/bobmcallan/analyst/internal/interfaces"
	"github.com/bobmcallan/analyst/internal/models"
)

// Cache stores entry pointers in a sync.Map. Entries are never mutated
// after Store, so swapping the pointer is the whole atomic write.
type Cache struct {
	entries sync.Map // symbol -> *models.CacheEntry
	logger  *common.Logger
}

// NewCache creates an empty in-memory cache
func NewCache(logger *common.Logger) *Cache {
	return &Cache{logger: logger}
}

func (c *Cache) Lookup(_ context.Context, symbol string) (*models.CacheEntry, error) {
	v, ok := c.entries.Load(symbol)
	if !ok {
		return nil, nil
	}
	return v.(*models.CacheEntry), nil
}

func (c *Cache) Store(_ context.Context, entry *models.CacheEntry) error {
	if !entry.Complete() {
		return fmt.Errorf("%w for %q", models.ErrIncompleteEntry, symbolOf(entry))
	}
	c.entries.Store(entry.Symbol, entry)
	c.logger.Debug().Str("symbol", entry.Symbol).Msg("Cache entry stored")
	return nil
}

func (c *Cache) List(_ context.Context) ([]models.CacheEntryInfo, error) {
	var infos []models.CacheEntryInfo
	c.entries.Range(func(_, v any) bool {
		e := v.(*models.CacheEntry)
		infos = append(infos, models.CacheEntryInfo{Symbol: e.Symbol, CreatedAt: e.CreatedAt})
		return true
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].Symbol < infos[j].Symbol })
	return infos, nil
}

func (c *Cache) Close() error {
	return nil
}

func symbolOf(entry *models.CacheEntry) string {
	if entry == nil {
		return ""
	}
	return entry.Symbol
}

var _ interfaces.ResultCache = (*Cache)(nil)
