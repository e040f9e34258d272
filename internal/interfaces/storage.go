package interfaces

import (
	"context"

	"github.com/bobmcallan/analyst/internal/models"
)

// ResultCache maps a symbol to its last computed analysis.
// Store replaces the whole entry atomically; concurrent stores for the same
// symbol resolve to the last writer and readers never observe a partial entry.
// Entries for different symbols are independent.
type ResultCache interface {
	// Lookup returns the entry for symbol, or (nil, nil) when absent
	Lookup(ctx context.Context, symbol string) (*models.CacheEntry, error)

	// Store overwrites the entry for entry.Symbol
	Store(ctx context.Context, entry *models.CacheEntry) error

	// List returns symbol and creation time for every entry
	List(ctx context.Context) ([]models.CacheEntryInfo, error)

	Close() error
}
