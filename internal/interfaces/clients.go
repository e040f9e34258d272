// Package interfaces defines service contracts for the analyst service
package interfaces

import (
	"context"

	"github.com/bobmcallan/analyst/internal/models"
)

// MarketDataClient fetches a snapshot of a symbol's current and historical data.
// Implementations never retry. Errors wrap models.ErrSymbolNotFound,
// models.ErrDataUnavailable or models.ErrRateLimited.
type MarketDataClient interface {
	FetchSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error)

	// Name identifies the provider in snapshots and logs
	Name() string
}

// TextGenerator produces text from a prompt via a generative service
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)

	// Model returns the model identifier used for generation
	Model() string
}
