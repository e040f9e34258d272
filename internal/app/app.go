// Package app wires configuration, clients, the result cache and the
// analysis service into a single App shared by the server binary.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/analyst/internal/clients/eodhd"
	"github.com/bobmcallan/analyst/internal/clients/yahoo"
	"github.com/bobmcallan/analyst/internal/common"
	"github.com/bobmcallan/analyst/internal/interfaces"
	"github.com/bobmcallan/analyst/internal/services/analysis"
	"github.com/bobmcallan/analyst/internal/storage"
)

// Market data providers
const (
	ProviderYahoo = "yahoo"
	ProviderEODHD = "eodhd"
)

// App holds all initialized clients, the result cache and the analysis service.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Cache            interfaces.ResultCache
	MarketClient     interfaces.MarketDataClient
	SummaryGenerator interfaces.TextGenerator
	ReportGenerator  interfaces.TextGenerator
	AnalysisService  interfaces.AnalysisService
	StartupTime      time.Time

	scheduler       *cron.Cron
	schedulerCancel context.CancelFunc
	warmCacheCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath checks the provided path, ANALYST_CONFIG, the binary
// directory, then the development fallback.
func resolveConfigPath(configPath, binDir string) string {
	if configPath == "" {
		configPath = os.Getenv("ANALYST_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "analyst.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/analyst.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp initializes configuration, logging, the result cache, clients and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	// Get binary directory for self-contained operation
	binDir := getBinaryDir()

	config, err := common.LoadConfig(resolveConfigPath(configPath, binDir))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative sqlite path to binary directory
	if config.Cache.Path != "" && !filepath.IsAbs(config.Cache.Path) {
		config.Cache.Path = filepath.Join(binDir, config.Cache.Path)
	}

	// Resolve relative log file path to binary directory
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	return newAppWithConfig(context.Background(), config, logger, startupStart)
}

func newAppWithConfig(ctx context.Context, config *common.Config, logger *common.Logger, startupStart time.Time) (*App, error) {
	cache, err := storage.NewResultCache(ctx, logger, config.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize result cache: %w", err)
	}

	marketClient := newMarketClient(config, logger)

	summaryGen, err := newGenerator(ctx, config.Pipeline.SummarizeProvider, analysis.AnalystSystemPrompt, config, logger)
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("failed to initialize summarize generator: %w", err)
	}

	reportGen, err := newGenerator(ctx, config.Pipeline.ComposeProvider, analysis.WriterSystemPrompt, config, logger)
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("failed to initialize compose generator: %w", err)
	}

	service := analysis.NewService(
		marketClient,
		analysis.NewSummarizer(summaryGen, logger),
		analysis.NewComposer(reportGen, logger),
		cache,
		analysis.SettingsFromConfig(config),
		logger,
	)

	a := &App{
		Config:           config,
		Logger:           logger,
		Cache:            cache,
		MarketClient:     marketClient,
		SummaryGenerator: summaryGen,
		ReportGenerator:  reportGen,
		AnalysisService:  service,
		StartupTime:      startupStart,
	}

	logger.Info().
		Str("cache", config.Cache.Backend).
		Str("market", marketClient.Name()).
		Str("summarize_model", summaryGen.Model()).
		Str("compose_model", reportGen.Model()).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// newMarketClient selects the market data provider. EODHD without an API
// key falls back to Yahoo.
func newMarketClient(config *common.Config, logger *common.Logger) interfaces.MarketDataClient {
	provider := strings.ToLower(strings.TrimSpace(config.Clients.Market.Provider))

	if provider == ProviderEODHD {
		key, err := common.ResolveAPIKey("eodhd_api_key", config.Clients.EODHD.APIKey)
		if err == nil {
			return eodhd.NewClient(key,
				eodhd.WithLogger(logger),
				eodhd.WithBaseURL(config.Clients.EODHD.BaseURL),
				eodhd.WithRateLimit(config.Clients.EODHD.RateLimit),
				eodhd.WithTimeout(config.Clients.EODHD.GetTimeout()),
			)
		}
		logger.Warn().Msg("EODHD API key not configured - falling back to Yahoo Finance")
	} else if provider != ProviderYahoo && provider != "" {
		logger.Warn().Str("provider", provider).Msg("Unknown market data provider - using Yahoo Finance")
	}

	return yahoo.NewClient(
		yahoo.WithLogger(logger),
		yahoo.WithBaseURL(config.Clients.Yahoo.BaseURL),
		yahoo.WithRateLimit(config.Clients.Yahoo.RateLimit),
		yahoo.WithTimeout(config.Clients.Yahoo.GetTimeout()),
	)
}

// Close releases all resources held by the App.
// Shutdown order: cancel and stop the scheduler, cancel warm cache, close the result cache.
func (a *App) Close() {
	if a.schedulerCancel != nil {
		a.schedulerCancel()
		a.schedulerCancel = nil
	}
	if a.scheduler != nil {
		stopCtx := a.scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			a.Logger.Warn().Msg("Warm scheduler: running job did not finish before shutdown")
		}
		a.scheduler = nil
	}
	if a.warmCacheCancel != nil {
		a.warmCacheCancel()
		a.warmCacheCancel = nil
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close result cache")
		}
		a.Cache = nil
	}
}
