package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/analyst/internal/clients/anthropic"
	"github.com/bobmcallan/analyst/internal/clients/gemini"
	"github.com/bobmcallan/analyst/internal/clients/openai"
	"github.com/bobmcallan/analyst/internal/common"
	"github.com/bobmcallan/analyst/internal/interfaces"
	"github.com/bobmcallan/analyst/internal/models"
)

// Text generation providers
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// newGenerator builds the text generator for one pipeline stage. The SDK
// clients are created with retries disabled; a missing API key yields a
// generator that fails every call with ErrGenerationFailed, so the service
// still starts and serves cached reports.
func newGenerator(ctx context.Context, provider, systemPrompt string, config *common.Config, logger *common.Logger) (interfaces.TextGenerator, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = ProviderGemini
	}

	switch provider {
	case ProviderGemini:
		cfg := config.Clients.Gemini
		key, err := common.ResolveAPIKey("gemini_api_key", cfg.APIKey)
		if err != nil {
			logger.Warn().Msg("Gemini API key not configured - AI analysis will be unavailable")
			return &unavailableGenerator{model: provider + "/" + cfg.Model, reason: err}, nil
		}
		client, err := gemini.NewClient(ctx, key,
			gemini.WithLogger(logger),
			gemini.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, err
		}
		return client, nil

	case ProviderOpenAI:
		cfg := config.Clients.OpenAI
		key, err := common.ResolveAPIKey("openai_api_key", cfg.APIKey)
		if err != nil {
			logger.Warn().Msg("OpenAI API key not configured - AI analysis will be unavailable")
			return &unavailableGenerator{model: provider + "/" + cfg.Model, reason: err}, nil
		}
		return openai.NewClient(key,
			openai.WithLogger(logger),
			openai.WithModel(cfg.Model),
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithMaxRetries(0),
			openai.WithSystemPrompt(systemPrompt),
		), nil

	case ProviderAnthropic:
		cfg := config.Clients.Anthropic
		key, err := common.ResolveAPIKey("anthropic_api_key", cfg.APIKey)
		if err != nil {
			logger.Warn().Msg("Anthropic API key not configured - AI analysis will be unavailable")
			return &unavailableGenerator{model: provider + "/" + cfg.Model, reason: err}, nil
		}
		return anthropic.NewClient(key,
			anthropic.WithLogger(logger),
			anthropic.WithModel(cfg.Model),
			anthropic.WithMaxTokens(cfg.MaxTokens),
			anthropic.WithMaxRetries(0),
			anthropic.WithSystemPrompt(systemPrompt),
		), nil

	default:
		return nil, fmt.Errorf("unknown generation provider: %s (supported: gemini, openai, anthropic)", provider)
	}
}

// unavailableGenerator stands in for a provider with no credentials.
type unavailableGenerator struct {
	model  string
	reason error
}

var _ interfaces.TextGenerator = (*unavailableGenerator)(nil)

func (g *unavailableGenerator) Model() string { return g.model }

func (g *unavailableGenerator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	return "", fmt.Errorf("%w: %s unavailable: %w", models.ErrGenerationFailed, g.model, g.reason)
}
