// Package analysis runs the cached fetch → summarize → compose pipeline
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bobmcallan/analyst/internal/common"
	"github.com/bobmcallan/analyst/internal/interfaces"
	"github.com/bobmcallan/analyst/internal/models"
)

// Default stage deadlines
const (
	DefaultFetchTimeout     = 30 * time.Second
	DefaultSummarizeTimeout = 2 * time.Minute
	DefaultComposeTimeout   = 2 * time.Minute
)

// Settings holds the freshness window and per-stage deadlines.
// Zero timeouts fall back to the defaults. MaxAge is taken as given:
// a value <= 0 means no entry is ever fresh.
type Settings struct {
	MaxAge           time.Duration
	FetchTimeout     time.Duration
	SummarizeTimeout time.Duration
	ComposeTimeout   time.Duration
}

// SettingsFromConfig reads the pipeline settings from the service config
func SettingsFromConfig(config *common.Config) Settings {
	return Settings{
		MaxAge:           config.Cache.GetMaxAge(),
		FetchTimeout:     config.Pipeline.GetFetchTimeout(),
		SummarizeTimeout: config.Pipeline.GetSummarizeTimeout(),
		ComposeTimeout:   config.Pipeline.GetComposeTimeout(),
	}
}

func (s Settings) withDefaults() Settings {
	if s.FetchTimeout <= 0 {
		s.FetchTimeout = DefaultFetchTimeout
	}
	if s.SummarizeTimeout <= 0 {
		s.SummarizeTimeout = DefaultSummarizeTimeout
	}
	if s.ComposeTimeout <= 0 {
		s.ComposeTimeout = DefaultComposeTimeout
	}
	return s
}

// Service implements AnalysisService. It holds no lock: per-symbol
// atomicity is provided by the cache, and concurrent misses for the same
// symbol each run the full pipeline with the last Store winning.
type Service struct {
	market     interfaces.MarketDataClient
	summarizer interfaces.AnalysisStage
	composer   interfaces.ReportStage
	cache      interfaces.ResultCache
	settings   Settings
	logger     *common.Logger
	now        func() time.Time // injectable clock for testing
}

// NewService creates a new analysis service
func NewService(
	market interfaces.MarketDataClient,
	summarizer interfaces.AnalysisStage,
	composer interfaces.ReportStage,
	cache interfaces.ResultCache,
	settings Settings,
	logger *common.Logger,
) *Service {
	return &Service{
		market:     market,
		summarizer: summarizer,
		composer:   composer,
		cache:      cache,
		settings:   settings.withDefaults(),
		logger:     logger,
		now:        time.Now,
	}
}

// Analyze returns the cached triple for a symbol when it is fresh and the
// request is not forced; otherwise it fetches, summarizes, composes and
// stores a new triple. On any failure the cache is left untouched.
func (s *Service) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	symbol, err := models.NormalizeSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}

	log := s.requestLogger(ctx, symbol)

	if !req.ForceRefresh {
		if result := s.lookupFresh(ctx, symbol, log); result != nil {
			return result, nil
		}
	} else {
		log.Info().Msg("Forced refresh, skipping cache")
	}

	start := time.Now()

	snapshot, err := runStage(ctx, s.settings.FetchTimeout, models.StageFetch, symbol, models.ErrDataUnavailable,
		func(ctx context.Context) (*models.MarketSnapshot, error) {
			return s.market.FetchSnapshot(ctx, symbol)
		})
	if err != nil {
		return nil, s.fail(log, err)
	}
	log.Debug().Str("source", snapshot.Source).Msg("Market data fetched")

	summary, err := runStage(ctx, s.settings.SummarizeTimeout, models.StageSummarize, symbol, models.ErrGenerationFailed,
		func(ctx context.Context) (*models.AnalysisSummary, error) {
			return s.summarizer.Summarize(ctx, snapshot)
		})
	if err != nil {
		return nil, s.fail(log, err)
	}
	log.Debug().Msg("Analysis summarized")

	report, err := runStage(ctx, s.settings.ComposeTimeout, models.StageCompose, symbol, models.ErrGenerationFailed,
		func(ctx context.Context) (*models.Report, error) {
			return s.composer.Compose(ctx, summary)
		})
	if err != nil {
		return nil, s.fail(log, err)
	}
	log.Debug().Msg("Report composed")

	entry := &models.CacheEntry{
		Symbol:    symbol,
		Snapshot:  snapshot,
		Summary:   summary,
		Report:    report,
		CreatedAt: s.now().UTC(),
	}

	if err := s.cache.Store(ctx, entry); err != nil {
		return nil, s.fail(log, models.NewPipelineError(models.ErrCacheUnavailable, models.StageStore, symbol, err))
	}

	log.Info().Dur("elapsed", time.Since(start)).Msg("Analysis complete")

	return models.ResultFromEntry(entry, false), nil
}

// lookupFresh returns the cached result when a complete, fresh entry exists.
// Lookup errors are logged and treated as a miss.
func (s *Service) lookupFresh(ctx context.Context, symbol string, log zerolog.Logger) *models.AnalysisResult {
	entry, err := s.cache.Lookup(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Msg("Cache lookup failed, treating as miss")
		return nil
	}
	if entry == nil {
		log.Debug().Msg("Cache miss")
		return nil
	}
	if !entry.Complete() || !common.IsFresh(entry.CreatedAt, s.now(), s.settings.MaxAge) {
		log.Debug().Time("created_at", entry.CreatedAt).Msg("Cache entry stale")
		return nil
	}

	log.Info().Time("created_at", entry.CreatedAt).Msg("Cache hit")
	return models.ResultFromEntry(entry, true)
}

// GetSnapshot fetches market data for a symbol directly, bypassing the cache
func (s *Service) GetSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error) {
	symbol, err := models.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	snapshot, err := runStage(ctx, s.settings.FetchTimeout, models.StageFetch, symbol, models.ErrDataUnavailable,
		func(ctx context.Context) (*models.MarketSnapshot, error) {
			return s.market.FetchSnapshot(ctx, symbol)
		})
	if err != nil {
		return nil, s.fail(s.requestLogger(ctx, symbol), err)
	}
	return snapshot, nil
}

// CachedSymbols lists cache entries annotated with freshness at the current time
func (s *Service) CachedSymbols(ctx context.Context) ([]models.CacheEntryInfo, error) {
	infos, err := s.cache.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrCacheUnavailable, err)
	}

	now := s.now()
	for i := range infos {
		infos[i].Fresh = common.IsFresh(infos[i].CreatedAt, now, s.settings.MaxAge)
	}
	return infos, nil
}

// Warm runs a non-forced analysis for each symbol in turn. Fresh entries
// are served from the cache; failures are logged and counted.
func (s *Service) Warm(ctx context.Context, symbols []string) models.WarmSummary {
	start := time.Now()
	summary := models.WarmSummary{Requested: len(symbols)}

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			summary.Failed += summary.Requested - summary.Refreshed - summary.Cached - summary.Failed
			break
		}

		result, err := s.Analyze(ctx, models.AnalysisRequest{Symbol: symbol})
		switch {
		case err != nil:
			summary.Failed++
		case result.FromCache:
			summary.Cached++
		default:
			summary.Refreshed++
		}
	}

	summary.Elapsed = time.Since(start)
	s.logger.Info().
		Int("requested", summary.Requested).
		Int("refreshed", summary.Refreshed).
		Int("cached", summary.Cached).
		Int("failed", summary.Failed).
		Dur("elapsed", summary.Elapsed).
		Msg("Cache warm complete")

	return summary
}

func (s *Service) requestLogger(ctx context.Context, symbol string) zerolog.Logger {
	c := s.logger.With().Str("symbol", symbol)
	if id := common.CorrelationIDFromContext(ctx); id != "" {
		c = c.Str("correlation_id", id)
	}
	return c.Logger()
}

func (s *Service) fail(log zerolog.Logger, err error) error {
	var pe *models.PipelineError
	if errors.As(err, &pe) {
		log.Error().Err(pe.Err).Str("stage", pe.Stage).Str("kind", pe.Kind.Error()).Msg("Analysis failed")
	} else {
		log.Error().Err(err).Msg("Analysis failed")
	}
	return err
}

// runStage runs one leaf call under its own deadline and converts any
// failure into a PipelineError. An expired stage deadline becomes
// ErrTimeout; otherwise the most specific known kind in the error chain
// wins, falling back to defaultKind.
func runStage[T any](ctx context.Context, timeout time.Duration, stage, symbol string, defaultKind error, fn func(context.Context) (*T, error)) (*T, error) {
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := fn(stageCtx)
	if err == nil && out == nil {
		err = fmt.Errorf("%s returned no result", stage)
	}
	if err == nil {
		return out, nil
	}

	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		return nil, models.NewPipelineError(models.ErrTimeout, stage, symbol, err)
	}
	return nil, models.NewPipelineError(classify(err, defaultKind), stage, symbol, err)
}

// knownKinds is ordered most specific first
var knownKinds = []error{
	models.ErrSymbolNotFound,
	models.ErrRateLimited,
	models.ErrTimeout,
	models.ErrDataUnavailable,
	models.ErrGenerationFailed,
}

func classify(err, defaultKind error) error {
	for _, kind := range knownKinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return defaultKind
}

// Ensure Service implements AnalysisService
var _ interfaces.AnalysisService = (*Service)(nil)
