// Package common provides shared utilities for the analyst service
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the analyst service
type Config struct {
	Environment string         `toml:"environment" yaml:"environment"`
	Server      ServerConfig   `toml:"server" yaml:"server"`
	Cache       CacheConfig    `toml:"cache" yaml:"cache"`
	Pipeline    PipelineConfig `toml:"pipeline" yaml:"pipeline"`
	Clients     ClientsConfig  `toml:"clients" yaml:"clients"`
	Warm        WarmConfig     `toml:"warm" yaml:"warm"`
	Logging     LoggingConfig  `toml:"logging" yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host" yaml:"host"`
	Port int    `toml:"port" yaml:"port"`
}

// CacheConfig selects and configures the result cache backend.
// Path is used by sqlite; Address/Username/Password by redis and surrealdb;
// Namespace/Database by surrealdb only.
type CacheConfig struct {
	Backend   string `toml:"backend" yaml:"backend"` // memory, sqlite, redis, surrealdb, postgres
	MaxAge    string `toml:"max_age" yaml:"max_age"`
	Path      string `toml:"path" yaml:"path"`
	Address   string `toml:"address" yaml:"address"`
	Username  string `toml:"username" yaml:"username"`
	Password  string `toml:"password" yaml:"password"`
	Namespace string `toml:"namespace" yaml:"namespace"`
	Database  string `toml:"database" yaml:"database"`
}

// GetMaxAge parses and returns the freshness window
func (c *CacheConfig) GetMaxAge() time.Duration {
	d, err := time.ParseDuration(c.MaxAge)
	if err != nil {
		return DefaultCacheMaxAge
	}
	return d
}

// PipelineConfig holds per-stage timeouts and generator selection
type PipelineConfig struct {
	FetchTimeout      string `toml:"fetch_timeout" yaml:"fetch_timeout"`
	SummarizeTimeout  string `toml:"summarize_timeout" yaml:"summarize_timeout"`
	ComposeTimeout    string `toml:"compose_timeout" yaml:"compose_timeout"`
	SummarizeProvider string `toml:"summarize_provider" yaml:"summarize_provider"`
	ComposeProvider   string `toml:"compose_provider" yaml:"compose_provider"`
}

// GetFetchTimeout returns the market data fetch timeout
func (c *PipelineConfig) GetFetchTimeout() time.Duration {
	return parseDurationOr(c.FetchTimeout, 30*time.Second)
}

// GetSummarizeTimeout returns the summarization timeout
func (c *PipelineConfig) GetSummarizeTimeout() time.Duration {
	return parseDurationOr(c.SummarizeTimeout, 2*time.Minute)
}

// GetComposeTimeout returns the report composition timeout
func (c *PipelineConfig) GetComposeTimeout() time.Duration {
	return parseDurationOr(c.ComposeTimeout, 2*time.Minute)
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Market    MarketConfig    `toml:"market" yaml:"market"`
	Yahoo     YahooConfig     `toml:"yahoo" yaml:"yahoo"`
	EODHD     EODHDConfig     `toml:"eodhd" yaml:"eodhd"`
	Gemini    GeminiConfig    `toml:"gemini" yaml:"gemini"`
	OpenAI    OpenAIConfig    `toml:"openai" yaml:"openai"`
	Anthropic AnthropicConfig `toml:"anthropic" yaml:"anthropic"`
}

// MarketConfig selects the market data provider
type MarketConfig struct {
	Provider string `toml:"provider" yaml:"provider"` // yahoo, eodhd
}

// YahooConfig holds Yahoo Finance chart API configuration
type YahooConfig struct {
	BaseURL   string `toml:"base_url" yaml:"base_url"`
	RateLimit int    `toml:"rate_limit" yaml:"rate_limit"`
	Timeout   string `toml:"timeout" yaml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *YahooConfig) GetTimeout() time.Duration {
	return parseDurationOr(c.Timeout, 30*time.Second)
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL   string `toml:"base_url" yaml:"base_url"`
	APIKey    string `toml:"api_key" yaml:"api_key"`
	RateLimit int    `toml:"rate_limit" yaml:"rate_limit"`
	Timeout   string `toml:"timeout" yaml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	return parseDurationOr(c.Timeout, 30*time.Second)
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey string `toml:"api_key" yaml:"api_key"`
	Model  string `toml:"model" yaml:"model"`
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey  string `toml:"api_key" yaml:"api_key"`
	Model   string `toml:"model" yaml:"model"`
	BaseURL string `toml:"base_url" yaml:"base_url"`
}

// AnthropicConfig holds Anthropic API configuration
type AnthropicConfig struct {
	APIKey    string `toml:"api_key" yaml:"api_key"`
	Model     string `toml:"model" yaml:"model"`
	MaxTokens int    `toml:"max_tokens" yaml:"max_tokens"`
}

// WarmConfig lists symbols kept warm by the background scheduler.
// Schedule is a six-field cron expression (seconds first).
type WarmConfig struct {
	Symbols  []string `toml:"symbols" yaml:"symbols"`
	Schedule string   `toml:"schedule" yaml:"schedule"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level" yaml:"level"`
	Format   string   `toml:"format" yaml:"format"`
	Outputs  []string `toml:"outputs" yaml:"outputs"`
	FilePath string   `toml:"file_path" yaml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Cache: CacheConfig{
			Backend:   "memory",
			MaxAge:    "10m",
			Path:      "data/analyst.db",
			Namespace: "analyst",
			Database:  "analyst",
		},
		Pipeline: PipelineConfig{
			FetchTimeout:      "30s",
			SummarizeTimeout:  "2m",
			ComposeTimeout:    "2m",
			SummarizeProvider: "gemini",
			ComposeProvider:   "gemini",
		},
		Clients: ClientsConfig{
			Market: MarketConfig{Provider: "yahoo"},
			Yahoo: YahooConfig{
				BaseURL:   "https://query1.finance.yahoo.com",
				RateLimit: 2,
				Timeout:   "30s",
			},
			EODHD: EODHDConfig{
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 10,
				Timeout:   "30s",
			},
			Gemini: GeminiConfig{
				Model: "gemini-2.0-flash",
			},
			OpenAI: OpenAIConfig{
				Model: "gpt-4o-mini",
			},
			Anthropic: AnthropicConfig{
				Model:     "claude-haiku-4-5",
				MaxTokens: 4096,
			},
		},
		Warm: WarmConfig{
			Schedule: "0 */15 * * * *",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "console",
			Outputs:  []string{"console"},
			FilePath: "./logs/analyst.log",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Files ending in .yaml or .yml are decoded as YAML, everything else as TOML.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, config)
		default:
			err = toml.Unmarshal(data, config)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("ANALYST_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("ANALYST_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("ANALYST_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("ANALYST_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if v := os.Getenv("ANALYST_CACHE_BACKEND"); v != "" {
		config.Cache.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("ANALYST_CACHE_MAX_AGE"); v != "" {
		config.Cache.MaxAge = v
	}
	if v := os.Getenv("ANALYST_CACHE_ADDRESS"); v != "" {
		config.Cache.Address = v
	}

	if v := os.Getenv("ANALYST_MARKET_PROVIDER"); v != "" {
		config.Clients.Market.Provider = strings.ToLower(v)
	}

	if v := os.Getenv("ANALYST_WARM_SYMBOLS"); v != "" {
		var symbols []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, s)
			}
		}
		config.Warm.Symbols = symbols
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ResolveAPIKey resolves an API key from the environment, falling back to the configured value
func ResolveAPIKey(name string, fallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"eodhd_api_key":     {"EODHD_API_KEY", "ANALYST_EODHD_API_KEY"},
		"gemini_api_key":    {"GEMINI_API_KEY", "ANALYST_GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"openai_api_key":    {"OPENAI_API_KEY", "ANALYST_OPENAI_API_KEY"},
		"anthropic_api_key": {"ANTHROPIC_API_KEY", "ANALYST_ANTHROPIC_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if fallback != "" {
		return fallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
