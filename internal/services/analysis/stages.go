package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/analyst/internal/common"
	"github.com/bobmcallan/analyst/internal/interfaces"
	"github.com/bobmcallan/analyst/internal/models"
)

// ReportDateLayout is the date format written into reports
const ReportDateLayout = "January 2, 2006"

// Summarizer produces an analytical summary from a snapshot
type Summarizer struct {
	generator interfaces.TextGenerator
	logger    *common.Logger
	now       func() time.Time
}

// NewSummarizer creates a summarizer backed by the given generator
func NewSummarizer(generator interfaces.TextGenerator, logger *common.Logger) *Summarizer {
	return &Summarizer{
		generator: generator,
		logger:    logger,
		now:       time.Now,
	}
}

// Summarize turns exactly one snapshot into a summary
func (s *Summarizer) Summarize(ctx context.Context, snapshot *models.MarketSnapshot) (*models.AnalysisSummary, error) {
	if snapshot == nil {
		return nil, errors.New("no snapshot to summarize")
	}

	prompt, err := buildAnalystPrompt(snapshot)
	if err != nil {
		return nil, err
	}

	text, err := generate(ctx, s.generator, prompt)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("symbol", snapshot.Symbol).Str("model", s.generator.Model()).Int("chars", len(text)).Msg("Summary generated")

	return &models.AnalysisSummary{
		Symbol:      snapshot.Symbol,
		SnapshotAt:  snapshot.DataTimestamp,
		Text:        text,
		Model:       s.generator.Model(),
		GeneratedAt: s.now().UTC(),
	}, nil
}

// Composer turns a summary into the final markdown report
type Composer struct {
	generator interfaces.TextGenerator
	logger    *common.Logger
	now       func() time.Time
}

// NewComposer creates a composer backed by the given generator
func NewComposer(generator interfaces.TextGenerator, logger *common.Logger) *Composer {
	return &Composer{
		generator: generator,
		logger:    logger,
		now:       time.Now,
	}
}

// Compose turns exactly one summary into a report dated today
func (c *Composer) Compose(ctx context.Context, summary *models.AnalysisSummary) (*models.Report, error) {
	if summary == nil {
		return nil, errors.New("no summary to compose")
	}

	now := c.now()
	date := now.Format(ReportDateLayout)

	text, err := generate(ctx, c.generator, buildReportPrompt(summary, date))
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Str("symbol", summary.Symbol).Str("model", c.generator.Model()).Int("chars", len(text)).Msg("Report composed")

	return &models.Report{
		Symbol:      summary.Symbol,
		Markdown:    replaceDatePlaceholders(text, date),
		Model:       c.generator.Model(),
		GeneratedAt: now.UTC(),
	}, nil
}

// generate calls the provider and rejects blank output
func generate(ctx context.Context, gen interfaces.TextGenerator, prompt string) (string, error) {
	text, err := gen.GenerateContent(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", models.ErrGenerationFailed, gen.Model(), err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s returned empty output", models.ErrGenerationFailed, gen.Model())
	}
	return text, nil
}

// Ensure stages implement their interfaces
var (
	_ interfaces.AnalysisStage = (*Summarizer)(nil)
	_ interfaces.ReportStage   = (*Composer)(nil)
)
