package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/analyst/internal/common"
	"github.com/bobmcallan/analyst/internal/interfaces"
)

// warmJobTimeout bounds one scheduled warm pass.
const warmJobTimeout = 10 * time.Minute

// cronLogger adapts common.Logger to cron.Logger.
type cronLogger struct {
	logger *common.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("Warm scheduler: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("Warm scheduler: " + msg)
}

// StartWarmScheduler registers the warm-cache job on the configured cron
// schedule (six fields, seconds first). It is a no-op when no symbols are
// configured. Overlapping runs are skipped.
func (a *App) StartWarmScheduler() error {
	symbols := a.Config.Warm.Symbols
	if len(symbols) == 0 {
		a.Logger.Info().Msg("Warm scheduler: no symbols configured, not started")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger := cronLogger{logger: a.Logger}

	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(a.Config.Warm.Schedule, func() {
		runWarm(ctx, a.AnalysisService, symbols, a.Logger)
	}); err != nil {
		cancel()
		return fmt.Errorf("register warm job %q: %w", a.Config.Warm.Schedule, err)
	}

	c.Start()
	a.scheduler = c
	a.schedulerCancel = cancel

	a.Logger.Info().
		Str("schedule", a.Config.Warm.Schedule).
		Strs("symbols", symbols).
		Msg("Warm scheduler: started")
	return nil
}

// runWarm performs one bounded warm pass through the analysis service.
func runWarm(ctx context.Context, service interfaces.AnalysisService, symbols []string, logger *common.Logger) {
	ctx, cancel := context.WithTimeout(ctx, warmJobTimeout)
	defer cancel()

	summary := service.Warm(ctx, symbols)
	if summary.Failed > 0 {
		logger.Warn().
			Int("failed", summary.Failed).
			Int("requested", summary.Requested).
			Msg("Warm scheduler: some symbols failed")
	}
}
