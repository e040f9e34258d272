package models

import (
	"time"
)

// AnalysisRequest asks for a report on one symbol
type AnalysisRequest struct {
	Symbol       string `json:"symbol"`
	ForceRefresh bool   `json:"force_refresh"`
}

// AnalysisSummary is the analytical text produced from exactly one snapshot
type AnalysisSummary struct {
	Symbol      string    `json:"symbol"`
	SnapshotAt  time.Time `json:"snapshot_at"`
	Text        string    `json:"text"`
	Model       string    `json:"model,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Report is the markdown narrative produced from exactly one summary
type Report struct {
	Symbol      string    `json:"symbol"`
	Markdown    string    `json:"markdown"`
	Model       string    `json:"model,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// CacheEntry is the unit stored per symbol. It is always replaced whole.
type CacheEntry struct {
	Symbol    string           `json:"symbol"`
	Snapshot  *MarketSnapshot  `json:"snapshot"`
	Summary   *AnalysisSummary `json:"summary"`
	Report    *Report          `json:"report"`
	CreatedAt time.Time        `json:"created_at"`
}

// Complete reports whether every part of the entry is present
func (e *CacheEntry) Complete() bool {
	return e != nil && e.Symbol != "" && e.Snapshot != nil && e.Summary != nil && e.Report != nil && !e.CreatedAt.IsZero()
}

// CacheEntryInfo is the listing view of a cache entry
type CacheEntryInfo struct {
	Symbol    string    `json:"symbol"`
	CreatedAt time.Time `json:"created_at"`
	Fresh     bool      `json:"fresh"`
}

// AnalysisResult is the consistent triple returned to callers
type AnalysisResult struct {
	Symbol    string           `json:"symbol"`
	Snapshot  *MarketSnapshot  `json:"snapshot"`
	Summary   *AnalysisSummary `json:"summary"`
	Report    *Report          `json:"report"`
	CreatedAt time.Time        `json:"created_at"`
	FromCache bool             `json:"from_cache"`
}

// ResultFromEntry builds a result that shares the entry's immutable parts
func ResultFromEntry(entry *CacheEntry, fromCache bool) *AnalysisResult {
	return &AnalysisResult{
		Symbol:    entry.Symbol,
		Snapshot:  entry.Snapshot,
		Summary:   entry.Summary,
		Report:    entry.Report,
		CreatedAt: entry.CreatedAt,
		FromCache: fromCache,
	}
}

// WarmSummary reports the outcome of a cache warming pass
type WarmSummary struct {
	Requested int           `json:"requested"`
	Refreshed int           `json:"refreshed"`
	Cached    int           `json:"cached"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
}
