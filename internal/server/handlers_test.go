package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/analyst/internal/app"
	"github.com/bobmcallan/analyst/internal/common"
	"github.com/bobmcallan/analyst/internal/models"
)

// mockAnalysisService implements interfaces.AnalysisService for handler tests.
type mockAnalysisService struct {
	analyze       func(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error)
	getSnapshot   func(ctx context.Context, symbol string) (*models.MarketSnapshot, error)
	cachedSymbols func(ctx context.Context) ([]models.CacheEntryInfo, error)

	lastRequest models.AnalysisRequest
	lastCtx     context.Context
}

func (m *mockAnalysisService) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	m.lastRequest = req
	m.lastCtx = ctx
	if m.analyze != nil {
		return m.analyze(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAnalysisService) GetSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error) {
	if m.getSnapshot != nil {
		return m.getSnapshot(ctx, symbol)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAnalysisService) CachedSymbols(ctx context.Context) ([]models.CacheEntryInfo, error) {
	if m.cachedSymbols != nil {
		return m.cachedSymbols(ctx)
	}
	return nil, nil
}

func (m *mockAnalysisService) Warm(ctx context.Context, symbols []string) models.WarmSummary {
	return models.WarmSummary{Requested: len(symbols)}
}

var testCreatedAt = time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC)

func sampleResult(symbol string, fromCache bool) *models.AnalysisResult {
	return &models.AnalysisResult{
		Symbol:    symbol,
		Snapshot:  &models.MarketSnapshot{Symbol: symbol, Source: "fake", CompanyName: symbol + " Inc"},
		Summary:   &models.AnalysisSummary{Symbol: symbol, Text: "summary"},
		Report:    &models.Report{Symbol: symbol, Markdown: "# " + symbol + " report"},
		CreatedAt: testCreatedAt,
		FromCache: fromCache,
	}
}

func newTestServer(svc *mockAnalysisService) *Server {
	logger := common.NewSilentLogger()
	a := &app.App{
		Config:          common.NewDefaultConfig(),
		Logger:          logger,
		AnalysisService: svc,
	}
	return NewServer(a)
}

func serve(t *testing.T, srv *Server, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestHandleAnalyze_Success(t *testing.T) {
	svc := &mockAnalysisService{
		analyze: func(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
			return sampleResult("AAPL", false), nil
		},
	}
	srv := newTestServer(svc)

	rr := serve(t, srv, http.MethodPost, "/api/analyze", `{"symbol":"aapl","force_refresh":true}`)
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, "aapl", svc.lastRequest.Symbol)
	assert.True(t, svc.lastRequest.ForceRefresh)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "AAPL", resp["symbol"])
	assert.Equal(t, "# AAPL report", resp["report"])
	assert.Equal(t, false, resp["cached"])
	assert.Equal(t, "2026-03-02T15:04:05Z", resp["generated_at"])
	raw, ok := resp["raw_data"].(map[string]interface{})
	require.True(t, ok, "raw_data should be an object")
	assert.Equal(t, "AAPL Inc", raw["company_name"])
}

func TestHandleAnalyze_LegacyPaths(t *testing.T) {
	for _, path := range []string{"/analyze", "/analyze2"} {
		t.Run(path, func(t *testing.T) {
			svc := &mockAnalysisService{
				analyze: func(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
					return sampleResult("MSFT", true), nil
				},
			}
			rr := serve(t, newTestServer(svc), http.MethodPost, path, `{"symbol":"MSFT"}`)
			require.Equal(t, http.StatusOK, rr.Code)

			var resp analyzeResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, "MSFT", resp.Symbol)
			assert.True(t, resp.Cached)
			assert.False(t, svc.lastRequest.ForceRefresh)
		})
	}
}

func TestHandleAnalyze_MethodNotAllowed(t *testing.T) {
	rr := serve(t, newTestServer(&mockAnalysisService{}), http.MethodGet, "/api/analyze", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "POST", rr.Header().Get("Allow"))
}

func TestHandleAnalyze_InvalidJSON(t *testing.T) {
	svc := &mockAnalysisService{}
	rr := serve(t, newTestServer(svc), http.MethodPost, "/api/analyze", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rr).Code)
	assert.Nil(t, svc.lastCtx, "service must not be called")
}

func TestHandleAnalyze_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid symbol", models.NewPipelineError(models.ErrInvalidSymbol, models.StageValidate, "", errors.New("stock symbol is required")), http.StatusBadRequest, "invalid_symbol"},
		{"not found", models.NewPipelineError(models.ErrSymbolNotFound, models.StageFetch, "ZZZZ", errors.New("404")), http.StatusNotFound, "symbol_not_found"},
		{"rate limited", models.NewPipelineError(models.ErrRateLimited, models.StageFetch, "AAPL", errors.New("429")), http.StatusTooManyRequests, "rate_limited"},
		{"data unavailable", models.NewPipelineError(models.ErrDataUnavailable, models.StageFetch, "AAPL", errors.New("503")), http.StatusBadGateway, "data_unavailable"},
		{"generation failed", models.NewPipelineError(models.ErrGenerationFailed, models.StageCompose, "AAPL", errors.New("boom")), http.StatusBadGateway, "generation_failed"},
		{"timeout", models.NewPipelineError(models.ErrTimeout, models.StageSummarize, "AAPL", context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout"},
		{"cache unavailable", models.NewPipelineError(models.ErrCacheUnavailable, models.StageStore, "AAPL", errors.New("disk full")), http.StatusInternalServerError, "cache_unavailable"},
		{"unexpected", errors.New("secret internals"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockAnalysisService{
				analyze: func(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
					return nil, tc.err
				},
			}
			rr := serve(t, newTestServer(svc), http.MethodPost, "/api/analyze", `{"symbol":"AAPL"}`)
			assert.Equal(t, tc.status, rr.Code)

			resp := decodeError(t, rr)
			assert.Equal(t, tc.code, resp.Code)
			assert.NotEmpty(t, resp.Detail)
			assert.NotContains(t, resp.Detail, "secret internals")
		})
	}
}

func TestHandleStockData(t *testing.T) {
	var gotSymbol string
	svc := &mockAnalysisService{
		getSnapshot: func(ctx context.Context, symbol string) (*models.MarketSnapshot, error) {
			gotSymbol = symbol
			return &models.MarketSnapshot{Symbol: "TSLA", Source: "fake"}, nil
		},
	}
	srv := newTestServer(svc)

	for _, path := range []string{"/api/stocks/tsla/data", "/stock/tsla/data"} {
		rr := serve(t, srv, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, "tsla", gotSymbol)

		var snap models.MarketSnapshot
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
		assert.Equal(t, "TSLA", snap.Symbol)
	}
}

func TestHandleStockReport_NonForced(t *testing.T) {
	svc := &mockAnalysisService{
		analyze: func(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
			return sampleResult("NVDA", true), nil
		},
	}
	srv := newTestServer(svc)

	for _, path := range []string{"/api/stocks/NVDA/report", "/stock/NVDA/report", "/api/stocks/NVDA"} {
		rr := serve(t, srv, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, "NVDA", svc.lastRequest.Symbol)
		assert.False(t, svc.lastRequest.ForceRefresh)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "NVDA", resp["symbol"])
		assert.Equal(t, "# NVDA report", resp["report"])
	}
}

func TestHandleStockReportMarkdown(t *testing.T) {
	svc := &mockAnalysisService{
		analyze: func(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
			return sampleResult("AAPL", true), nil
		},
	}

	rr := serve(t, newTestServer(svc), http.MethodGet, "/api/stocks/AAPL/report.md", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/markdown"))
	assert.Equal(t, `attachment; filename="AAPL_Analysis_20260302.md"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "# AAPL report", rr.Body.String())
}

func TestHandleStockReportMarkdown_Error(t *testing.T) {
	svc := &mockAnalysisService{
		analyze: func(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
			return nil, models.NewPipelineError(models.ErrSymbolNotFound, models.StageFetch, "NOPE", errors.New("404"))
		},
	}

	rr := serve(t, newTestServer(svc), http.MethodGet, "/api/stocks/NOPE/report.md", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Empty(t, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "symbol_not_found", decodeError(t, rr).Code)
}

func TestRouteStocks_UnknownActionAndMissingSymbol(t *testing.T) {
	srv := newTestServer(&mockAnalysisService{})

	rr := serve(t, srv, http.MethodGet, "/api/stocks/AAPL/chart", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(t, srv, http.MethodGet, "/api/stocks/", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_symbol", decodeError(t, rr).Code)
}

func TestHandleCacheList(t *testing.T) {
	svc := &mockAnalysisService{
		cachedSymbols: func(ctx context.Context) ([]models.CacheEntryInfo, error) {
			return []models.CacheEntryInfo{
				{Symbol: "AAPL", CreatedAt: testCreatedAt, Fresh: true},
				{Symbol: "MSFT", CreatedAt: testCreatedAt.Add(-time.Hour), Fresh: false},
			}, nil
		},
	}

	rr := serve(t, newTestServer(svc), http.MethodGet, "/api/cache", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Entries []models.CacheEntryInfo `json:"entries"`
		Count   int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "AAPL", resp.Entries[0].Symbol)
	assert.True(t, resp.Entries[0].Fresh)
	assert.False(t, resp.Entries[1].Fresh)
}

func TestHandleCacheList_Empty(t *testing.T) {
	rr := serve(t, newTestServer(&mockAnalysisService{}), http.MethodGet, "/api/cache", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"entries":[]`)
}

func TestHandleHealthAndVersion(t *testing.T) {
	srv := newTestServer(&mockAnalysisService{})

	rr := serve(t, srv, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = serve(t, srv, http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var info common.VersionInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	assert.Equal(t, common.Version, info.Version)
}

func TestHandleShutdown_DisabledInProduction(t *testing.T) {
	srv := newTestServer(&mockAnalysisService{})
	srv.app.Config.Environment = "production"

	rr := serve(t, srv, http.MethodPost, "/api/shutdown", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandleShutdown_SignalsChannel(t *testing.T) {
	srv := newTestServer(&mockAnalysisService{})
	ch := make(chan struct{}, 1)
	srv.SetShutdownChannel(ch)

	rr := serve(t, srv, http.MethodPost, "/api/shutdown", "")
	require.Equal(t, http.StatusOK, rr.Code)

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown channel was not signaled")
	}
}
