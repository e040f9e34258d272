// Package sqlite provides a result cache persisted to a local SQLite file
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bobmcallan/analyst/internal/common"
	"github.com/bobmcallan/analyst/internal/interfaces"
	"github.com/bobmcallan/analyst/internal/models"
)

const schema = `CREATE TABLE IF NOT EXISTS analysis_cache (
	symbol     TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	payload    TEXT NOT NULL
)`

// Cache stores one row per symbol. A write is a single upsert statement,
// so readers see either the previous row or the new one.
type Cache struct {
	db     *sql.DB
	logger *common.Logger
}

// memoryPath selects a private in-memory database instead of a file.
const memoryPath = ":memory:"

// busyTimeoutMillis is how long a connection waits on a locked database
// before failing with SQLITE_BUSY.
const busyTimeoutMillis = 5000

// dsn applies the pragmas through the connection string so that every
// connection the pool opens gets them, not only the first one.
func dsn(path string) string {
	// WAL lets readers proceed while a refresh is being written
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, busyTimeoutMillis)
}

// NewCache opens (or creates) the SQLite database and runs migrations
func NewCache(logger *common.Logger, path string) (*Cache, error) {
	if path == "" {
		return nil, errors.New("sqlite cache path is required")
	}
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == memoryPath {
		// each connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info().Str("path", path).Msg("SQLite result cache opened")

	return &Cache{db: db, logger: logger}, nil
}

func (c *Cache) Lookup(ctx context.Context, symbol string) (*models.CacheEntry, error) {
	var payload string
	err := c.db.QueryRowContext(ctx, `SELECT payload FROM analysis_cache WHERE symbol = ?`, symbol).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
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

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO analysis_cache (symbol, created_at, payload) VALUES (?, ?, ?)
		 ON CONFLICT(symbol) DO UPDATE SET created_at = excluded.created_at, payload = excluded.payload`,
		entry.Symbol, entry.CreatedAt.UnixNano(), string(payload))
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	c.logger.Debug().Str("symbol", entry.Symbol).Int("bytes", len(payload)).Msg("Cache entry stored")
	return nil
}

func (c *Cache) List(ctx context.Context) ([]models.CacheEntryInfo, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT symbol, created_at FROM analysis_cache ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	var infos []models.CacheEntryInfo
	for rows.Next() {
		var symbol string
		var createdAt int64
		if err := rows.Scan(&symbol, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		infos = append(infos, models.CacheEntryInfo{
			Symbol:    symbol,
			CreatedAt: time.Unix(0, createdAt).UTC(),
		})
	}
	return infos, rows.Err()
}

func (c *Cache) Close() error {
	return c.db.Close()
}

var _ interfaces.ResultCache = (*Cache)(nil)
