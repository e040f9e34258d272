// Package anthropic provides a TextGenerator backed by the Anthropic messages API
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/bobmcallan/analyst/internal/common"
	"github.com/bobmcallan/analyst/internal/interfaces"
)

const (
	DefaultModel     = string(anthropic.ModelClaudeHaiku4_5)
	DefaultMaxTokens = 4096
)

// Client implements the TextGenerator interface
type Client struct {
	client       *anthropic.Client
	model        string
	maxTokens    int64
	systemPrompt string
	logger       *common.Logger
	reqOpts      []option.RequestOption
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens caps the response length
func WithMaxTokens(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = int64(n)
		}
	}
}

// WithBaseURL overrides the API endpoint
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.reqOpts = append(c.reqOpts, option.WithBaseURL(url))
		}
	}
}

// WithMaxRetries overrides the SDK retry count
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.reqOpts = append(c.reqOpts, option.WithMaxRetries(n))
	}
}

// WithSystemPrompt sets the system prompt
func WithSystemPrompt(prompt string) ClientOption {
	return func(c *Client) {
		c.systemPrompt = prompt
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Anthropic client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
		logger:    common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, c.reqOpts...)...)
	c.client = &client

	return c
}

// Model returns the configured model name
func (c *Client) Model() string {
	return "anthropic/" + c.model
}

// GenerateContent sends the prompt as a single user turn and joins the text blocks of the reply
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug().Str("model", c.model).Int("prompt_chars", len(prompt)).Msg("Generating content")

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if c.systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.systemPrompt}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	if len(resp.Content) == 0 {
		return "", fmt.Errorf("no response from anthropic")
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return strings.TrimSpace(sb.String()), nil
}

// Ensure Client implements TextGenerator
var _ interfaces.TextGenerator = (*Client)(nil)
