package app

import (
	"context"
	"os"
	"time"
)

// startupWarmTimeout bounds the warm pass run at startup.
const startupWarmTimeout = 5 * time.Minute

// StartWarmCache launches a single background warm pass over the configured
// symbols so the first requests after startup are served from the cache.
// Set ANALYST_WARM_CACHE=off to disable it.
func (a *App) StartWarmCache() {
	if os.Getenv("ANALYST_WARM_CACHE") == "off" {
		a.Logger.Info().Msg("Warm cache: disabled via ANALYST_WARM_CACHE=off")
		return
	}

	symbols := a.Config.Warm.Symbols
	if len(symbols) == 0 {
		a.Logger.Info().Msg("Warm cache: no symbols configured, skipping")
		return
	}

	warmCtx, warmCancel := context.WithTimeout(context.Background(), startupWarmTimeout)
	a.warmCacheCancel = warmCancel
	go func() {
		defer warmCancel()
		a.Logger.Info().Int("symbols", len(symbols)).Msg("Warm cache: starting")
		a.AnalysisService.Warm(warmCtx, symbols)
	}()
}
