package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bobmcallan/analyst/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Analysis
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/analyze2", s.handleAnalyze)

	// Stocks
	mux.HandleFunc("/api/stocks/", s.routeStocks)
	mux.HandleFunc("/stock/", s.routeStocks)

	// Cache
	mux.HandleFunc("/api/cache", s.handleCacheList)
}

// routeStocks dispatches /api/stocks/{symbol}/* and the legacy
// /stock/{symbol}/* paths to the appropriate handler.
func (s *Server) routeStocks(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/stocks/"
	if strings.HasPrefix(r.URL.Path, "/stock/") {
		prefix = "/stock/"
	}

	path := strings.TrimPrefix(r.URL.Path, prefix)
	symbol, action, ok := strings.Cut(path, "/")
	if symbol == "" {
		WriteErrorWithCode(w, http.StatusBadRequest, "Stock symbol is required", "invalid_symbol")
		return
	}
	if !ok {
		action = "report"
	}

	switch action {
	case "data":
		s.handleStockData(w, r, symbol)
	case "report":
		s.handleStockReport(w, r, symbol)
	case "report.md":
		s.handleStockReportMarkdown(w, r, symbol)
	default:
		WriteErrorWithCode(w, http.StatusNotFound, "Not found", "not_found")
	}
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, common.GetVersionInfo())
}
