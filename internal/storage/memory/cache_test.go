package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/analyst/internal/common"
	"github.com/bobmcallan/analyst/internal/models"
)

func entryFor(symbol string, at time.Time) *models.CacheEntry {
	return &models.CacheEntry{
		Symbol:    symbol,
		Snapshot:  &models.MarketSnapshot{Symbol: symbol},
		Summary:   &models.AnalysisSummary{Symbol: symbol, Text: "summary"},
		Report:    &models.Report{Symbol: symbol, Markdown: "# " + symbol},
		CreatedAt: at,
	}
}

func TestCache_LookupMissing(t *testing.T) {
	c := NewCache(common.NewSilentLogger())

	entry, err := c.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestCache_StoreReplacesWholeEntry(t *testing.T) {
	c := NewCache(common.NewSilentLogger())
	ctx := context.Background()
	t0 := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	first := entryFor("AAPL", t0)
	require.NoError(t, c.Store(ctx, first))

	second := entryFor("AAPL", t0.Add(time.Minute))
	second.Report.Markdown = "# updated"
	require.NoError(t, c.Store(ctx, second))

	got, err := c.Lookup(ctx, "AAPL")
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.Equal(t, "# updated", got.Report.Markdown)
}

func TestCache_RejectsIncompleteEntry(t *testing.T) {
	c := NewCache(common.NewSilentLogger())
	ctx := context.Background()

	partial := entryFor("AAPL", time.Now())
	partial.Report = nil

	err := c.Store(ctx, partial)
	assert.ErrorIs(t, err, models.ErrIncompleteEntry)
	assert.ErrorIs(t, c.Store(ctx, nil), models.ErrIncompleteEntry)

	got, err := c.Lookup(ctx, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_ListSorted(t *testing.T) {
	c := NewCache(common.NewSilentLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	for _, s := range []string{"MSFT", "AAPL", "GOOG"} {
		require.NoError(t, c.Store(ctx, entryFor(s, now)))
	}

	infos, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "AAPL", infos[0].Symbol)
	assert.Equal(t, "GOOG", infos[1].Symbol)
	assert.Equal(t, "MSFT", infos[2].Symbol)
	assert.Equal(t, now, infos[0].CreatedAt)
}

func TestCache_ConcurrentWritersLeaveCompleteEntry(t *testing.T) {
	c := NewCache(common.NewSilentLogger())
	ctx := context.Background()
	base := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := entryFor("AAPL", base.Add(time.Duration(i)*time.Second))
			e.Report.Markdown = fmt.Sprintf("report %d", i)
			assert.NoError(t, c.Store(ctx, e))
			got, err := c.Lookup(ctx, "AAPL")
			assert.NoError(t, err)
			assert.True(t, got.Complete())
		}(i)
	}
	wg.Wait()

	got, err := c.Lookup(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, got.Complete())
	assert.Contains(t, got.Report.Markdown, "report ")
}
