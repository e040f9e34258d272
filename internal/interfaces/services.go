package interfaces

import (
	"context"

	"github.com/bobmcallan/analyst/internal/models"
)

// AnalysisStage turns a market snapshot into an analytical summary
type AnalysisStage interface {
	Summarize(ctx context.Context, snapshot *models.MarketSnapshot) (*models.AnalysisSummary, error)
}

// ReportStage turns an analytical summary into a markdown report
type ReportStage interface {
	Compose(ctx context.Context, summary *models.AnalysisSummary) (*models.Report, error)
}

// AnalysisService orchestrates cache lookups and the fetch → summarize → compose pipeline
type AnalysisService interface {
	// Analyze returns the cached triple when fresh and not forced, otherwise runs the pipeline
	Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error)

	// GetSnapshot fetches market data directly, bypassing the cache
	GetSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error)

	// CachedSymbols lists cached symbols with their freshness
	CachedSymbols(ctx context.Context) ([]models.CacheEntryInfo, error)

	// Warm runs a non-forced analysis for each symbol, refreshing only stale or missing entries
	Warm(ctx context.Context, symbols []string) models.WarmSummary
}
