package analysis

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bobmcallan/analyst/internal/models"
)

// --- Fakes ---

type fakeMarket struct {
	calls atomic.Int32
	err   error
	block bool // wait for the context to expire
}

func (f *fakeMarket) Name() string { return "fake" }

func (f *fakeMarket) FetchSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.MarketSnapshot{
		Symbol:        symbol,
		Source:        "fake",
		DataTimestamp: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC),
		CompanyName:   symbol + " Corp",
		LatestTrading: models.LatestTradingData{Date: "2026-03-02", Price: 100},
	}, nil
}

type fakeSummarizer struct {
	calls atomic.Int32
	err   error
	block bool

	mu   sync.Mutex
	seen []*models.MarketSnapshot
}

func (f *fakeSummarizer) Summarize(ctx context.Context, snap *models.MarketSnapshot) (*models.AnalysisSummary, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, snap)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.AnalysisSummary{
		Symbol:     snap.Symbol,
		SnapshotAt: snap.DataTimestamp,
		Text:       "summary of " + snap.Symbol,
	}, nil
}

type fakeComposer struct {
	calls    atomic.Int32
	err      error
	markdown string // overrides the generated markdown when set

	mu   sync.Mutex
	seen []*models.AnalysisSummary
}

func (f *fakeComposer) Compose(_ context.Context, summary *models.AnalysisSummary) (*models.Report, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, summary)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	markdown := "# Report\n" + summary.Text
	if f.markdown != "" {
		markdown = f.markdown
	}
	return &models.Report{
		Symbol:   summary.Symbol,
		Markdown: markdown,
	}, nil
}

type fakeCache struct {
	mu        sync.Mutex
	entries   map[string]*models.CacheEntry
	lookupErr error
	storeErr  error
	lookups   int
	stores    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*models.CacheEntry)}
}

func (c *fakeCache) Lookup(_ context.Context, symbol string) (*models.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	if c.lookupErr != nil {
		return nil, c.lookupErr
	}
	return c.entries[symbol], nil
}

func (c *fakeCache) Store(_ context.Context, entry *models.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.storeErr != nil {
		return c.storeErr
	}
	if !entry.Complete() {
		return errors.New("incomplete entry")
	}
	c.stores++
	c.entries[entry.Symbol] = entry
	return nil
}

func (c *fakeCache) List(_ context.Context) ([]models.CacheEntryInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var infos []models.CacheEntryInfo
	for _, e := range c.entries {
		infos = append(infos, models.CacheEntryInfo{Symbol: e.Symbol, CreatedAt: e.CreatedAt})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Symbol < infos[j].Symbol })
	return infos, nil
}

func (c *fakeCache) Close() error { return nil }

func (c *fakeCache) get(symbol string) *models.CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[symbol]
}

type fakeGenerator struct {
	text   string
	err    error
	prompt string
}

func (g *fakeGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.text, g.err
}

func (g *fakeGenerator) Model() string { return "fake/model" }
