package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bobmcallan/analyst/internal/models"
)

// reportFileDateLayout is the date suffix of downloaded report filenames.
const reportFileDateLayout = "20060102"

// analyzeResponse is the body returned by the analyze endpoints.
type analyzeResponse struct {
	Symbol      string                 `json:"symbol"`
	Report      string                 `json:"report"`
	RawData     *models.MarketSnapshot `json:"raw_data"`
	GeneratedAt time.Time              `json:"generated_at"`
	Cached      bool                   `json:"cached"`
}

// --- Analysis handlers ---

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.AnalysisRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	result, err := s.app.AnalysisService.Analyze(r.Context(), req)
	if err != nil {
		WriteAnalysisError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, analyzeResponse{
		Symbol:      result.Symbol,
		Report:      result.Report.Markdown,
		RawData:     result.Snapshot,
		GeneratedAt: result.CreatedAt,
		Cached:      result.FromCache,
	})
}

// --- Stock handlers ---

func (s *Server) handleStockData(w http.ResponseWriter, r *http.Request, symbol string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	snapshot, err := s.app.AnalysisService.GetSnapshot(r.Context(), symbol)
	if err != nil {
		WriteAnalysisError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleStockReport(w http.ResponseWriter, r *http.Request, symbol string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	result, err := s.app.AnalysisService.Analyze(r.Context(), models.AnalysisRequest{Symbol: symbol})
	if err != nil {
		WriteAnalysisError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": result.Symbol,
		"report": result.Report.Markdown,
	})
}

// handleStockReportMarkdown serves the report as a markdown file download.
func (s *Server) handleStockReportMarkdown(w http.ResponseWriter, r *http.Request, symbol string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	result, err := s.app.AnalysisService.Analyze(r.Context(), models.AnalysisRequest{Symbol: symbol})
	if err != nil {
		WriteAnalysisError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, reportFilename(result)))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(result.Report.Markdown))
}

// reportFilename names a downloaded report after its symbol and creation date.
func reportFilename(result *models.AnalysisResult) string {
	return fmt.Sprintf("%s_Analysis_%s.md", result.Symbol, result.CreatedAt.UTC().Format(reportFileDateLayout))
}

// --- Cache handlers ---

func (s *Server) handleCacheList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	entries, err := s.app.AnalysisService.CachedSymbols(r.Context())
	if err != nil {
		WriteAnalysisError(w, err)
		return
	}
	if entries == nil {
		entries = []models.CacheEntryInfo{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
