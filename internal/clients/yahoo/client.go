// Package yahoo provides a market data client for the Yahoo Finance chart API
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/analyst/internal/common"
	"github.com/bobmcallan/analyst/internal/interfaces"
	"github.com/bobmcallan/analyst/internal/models"
	"github.com/bobmcallan/analyst/internal/signals"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 2 // requests per second
	userAgent        = "Mozilla/5.0 (compatible; analyst/1.0)"
)

// Client implements the MarketDataClient interface
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithClock sets the time source used to stamp snapshots
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new Yahoo Finance client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name returns the provider name recorded on snapshots
func (c *Client) Name() string {
	return "yahoo"
}

// APIError represents a non-200 chart API response
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Yahoo API error: %s %s (status: %d)", e.Code, e.Description, e.StatusCode)
}

// Unwrap maps the response onto the pipeline error kinds
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound, strings.EqualFold(e.Code, "Not Found"):
		return models.ErrSymbolNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return models.ErrRateLimited
	default:
		return models.ErrDataUnavailable
	}
}

// chartResponse is the response structure from the chart API
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Currency         string  `json:"currency"`
		Symbol           string  `json:"symbol"`
		ExchangeName     string  `json:"exchangeName"`
		FullExchangeName string  `json:"fullExchangeName"`
		LongName         string  `json:"longName"`
		ShortName        string  `json:"shortName"`
		GMTOffset        int64   `json:"gmtoffset"`
		FiftyTwoWeekHigh float64 `json:"fiftyTwoWeekHigh"`
		FiftyTwoWeekLow  float64 `json:"fiftyTwoWeekLow"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// FetchSnapshot retrieves one year of daily bars and the chart metadata
func (c *Client) FetchSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error) {
	result, err := c.fetchChart(ctx, symbol, "1d", "1y")
	if err != nil {
		return nil, err
	}

	now := c.now()
	snap := &models.MarketSnapshot{
		Symbol:        symbol,
		Source:        c.Name(),
		DataTimestamp: now.UTC(),
		CompanyName:   firstNonEmpty(result.Meta.LongName, result.Meta.ShortName, symbol),
		Currency:      result.Meta.Currency,
		Exchange:      firstNonEmpty(result.Meta.FullExchangeName, result.Meta.ExchangeName),
	}

	if !signals.ApplyBars(snap, barsFromChart(result), now) {
		return nil, fmt.Errorf("%w: no price history for %s", models.ErrSymbolNotFound, symbol)
	}

	return snap, nil
}

func (c *Client) fetchChart(ctx context.Context, symbol, interval, rng string) (*chartResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("interval", interval)
	params.Set("range", rng)
	path := "/v8/finance/chart/" + url.PathEscape(symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug().Str("url", c.baseURL+path).Msg("Yahoo chart request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo fetch: %w", models.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo read body: %w", models.ErrDataUnavailable, err)
	}

	var chart chartResponse
	decodeErr := json.Unmarshal(body, &chart)

	if resp.StatusCode != http.StatusOK || chart.Chart.Error != nil {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr == nil && chart.Chart.Error != nil {
			apiErr.Code = chart.Chart.Error.Code
			apiErr.Description = chart.Chart.Error.Description
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: yahoo decode: %w", models.ErrDataUnavailable, decodeErr)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("%w: no data returned for %s", models.ErrSymbolNotFound, symbol)
	}

	return &chart.Chart.Result[0], nil
}

// barsFromChart converts the columnar quote arrays into bars. Sessions with
// null prices (holidays, halts) are skipped.
func barsFromChart(result *chartResult) []models.EODBar {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	quote := result.Indicators.Quote[0]

	bars := make([]models.EODBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, h, l, cl := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if o == 0 && h == 0 && l == 0 && cl == 0 {
			continue
		}
		local := time.Unix(ts+result.Meta.GMTOffset, 0).UTC()
		bars = append(bars, models.EODBar{
			Date:   time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  cl,
			Volume: int64(at(quote.Volume, i)),
		})
	}

	return bars
}

func at(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Ensure Client implements MarketDataClient
var _ interfaces.MarketDataClient = (*Client)(nil)
