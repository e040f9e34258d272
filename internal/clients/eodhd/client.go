// Package eodhd provides a market data client for the EODHD API
package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/analyst/internal/common"
	"github.com/bobmcallan/analyst/internal/interfaces"
	"github.com/bobmcallan/analyst/internal/models"
	"github.com/bobmcallan/analyst/internal/signals"
)

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	if string(data) == "null" {
		*f = 0
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
	DefaultExchange  = "US"

	// history window requested from /eod, a little over a year so the
	// 52-week range and SMA200 have enough bars
	historyDays = 380
)

// Client implements the MarketDataClient interface
type Client struct {
	baseURL    string
	apiKey     string
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

// NewClient creates a new EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
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
	return "eodhd"
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Unwrap maps the HTTP status onto the pipeline error kinds
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return models.ErrSymbolNotFound
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		return models.ErrRateLimited
	default:
		return models.ErrDataUnavailable
	}
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to execute request: %w", models.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", models.ErrDataUnavailable, err)
	}

	return nil
}

// eodTicker qualifies a bare symbol with the default exchange
func eodTicker(symbol string) string {
	if strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + "." + DefaultExchange
}

// FetchSnapshot retrieves a year of daily bars plus fundamentals and
// assembles them into a snapshot. Missing fundamentals are tolerated;
// missing price history is not.
func (c *Client) FetchSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error) {
	ticker := eodTicker(symbol)
	now := c.now()

	bars, err := c.getEOD(ctx, ticker, now.AddDate(0, 0, -historyDays), now)
	if err != nil {
		return nil, err
	}

	snap := &models.MarketSnapshot{
		Symbol:        symbol,
		Source:        c.Name(),
		DataTimestamp: now.UTC(),
		CompanyName:   symbol,
	}

	if !signals.ApplyBars(snap, bars, now) {
		return nil, fmt.Errorf("%w: no price history for %s", models.ErrSymbolNotFound, symbol)
	}

	fund, err := c.getFundamentals(ctx, ticker)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, models.ErrRateLimited) {
			return nil, err
		}
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Fundamentals unavailable, continuing with price data only")
		return snap, nil
	}

	applyFundamentals(snap, fund)
	return snap, nil
}

// getEOD retrieves end-of-day price data, most recent first
func (c *Client) getEOD(ctx context.Context, ticker string, from, to time.Time) ([]models.EODBar, error) {
	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "d")
	params.Set("from", from.Format("2006-01-02"))
	params.Set("to", to.Format("2006-01-02"))

	var bars []eodBarResponse
	if err := c.get(ctx, fmt.Sprintf("/eod/%s", ticker), params, &bars); err != nil {
		return nil, err
	}

	result := make([]models.EODBar, 0, len(bars))
	for _, bar := range bars {
		date, err := time.Parse("2006-01-02", bar.Date)
		if err != nil {
			continue
		}
		result = append(result, models.EODBar{
			Date:     date,
			Open:     float64(bar.Open),
			High:     float64(bar.High),
			Low:      float64(bar.Low),
			Close:    float64(bar.Close),
			AdjClose: float64(bar.AdjustedClose),
			Volume:   int64(bar.Volume),
		})
	}

	return result, nil
}

// eodBarResponse represents the API response for EOD data
type eodBarResponse struct {
	Date          string      `json:"date"`
	Open          flexFloat64 `json:"open"`
	High          flexFloat64 `json:"high"`
	Low           flexFloat64 `json:"low"`
	Close         flexFloat64 `json:"close"`
	AdjustedClose flexFloat64 `json:"adjusted_close"`
	Volume        flexFloat64 `json:"volume"`
}

func (c *Client) getFundamentals(ctx context.Context, ticker string) (*fundamentalsResponse, error) {
	var resp fundamentalsResponse
	if err := c.get(ctx, fmt.Sprintf("/fundamentals/%s", ticker), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// fundamentalsResponse represents the API response structure
type fundamentalsResponse struct {
	General struct {
		Code              string      `json:"Code"`
		Name              string      `json:"Name"`
		Type              string      `json:"Type"`
		Exchange          string      `json:"Exchange"`
		CurrencyCode      string      `json:"CurrencyCode"`
		Sector            string      `json:"Sector"`
		Industry          string      `json:"Industry"`
		Description       string      `json:"Description"`
		WebURL            string      `json:"WebURL"`
		FullTimeEmployees flexFloat64 `json:"FullTimeEmployees"`
	} `json:"General"`
	Highlights struct {
		MarketCapitalization flexFloat64 `json:"MarketCapitalization"`
		PERatio              flexFloat64 `json:"PERatio"`
		EarningsShare        flexFloat64 `json:"EarningsShare"`
		DividendYield        flexFloat64 `json:"DividendYield"` // fraction
		ProfitMargin         flexFloat64 `json:"ProfitMargin"`
		RevenueTTM           flexFloat64 `json:"RevenueTTM"`
	} `json:"Highlights"`
	Technicals struct {
		Beta flexFloat64 `json:"Beta"`
	} `json:"Technicals"`
	AnalystRatings struct {
		Rating      flexFloat64 `json:"Rating"` // 1 (strong sell) to 5 (strong buy)
		TargetPrice flexFloat64 `json:"TargetPrice"`
		StrongBuy   int         `json:"StrongBuy"`
		Buy         int         `json:"Buy"`
		Hold        int         `json:"Hold"`
		Sell        int         `json:"Sell"`
		StrongSell  int         `json:"StrongSell"`
	} `json:"AnalystRatings"`
}

func applyFundamentals(snap *models.MarketSnapshot, f *fundamentalsResponse) {
	if f.General.Name != "" {
		snap.CompanyName = f.General.Name
	}
	snap.Currency = f.General.CurrencyCode
	snap.Exchange = f.General.Exchange

	snap.Company = models.CompanyInfo{
		Sector:            f.General.Sector,
		Industry:          f.General.Industry,
		Website:           f.General.WebURL,
		FullTimeEmployees: int64(f.General.FullTimeEmployees),
		BusinessSummary:   f.General.Description,
	}

	snap.Financials = models.FinancialMetrics{
		MarketCap:     float64(f.Highlights.MarketCapitalization),
		PERatio:       float64(f.Highlights.PERatio),
		EPS:           float64(f.Highlights.EarningsShare),
		DividendYield: float64(f.Highlights.DividendYield) * 100,
		Beta:          float64(f.Technicals.Beta),
		ProfitMargin:  float64(f.Highlights.ProfitMargin),
		Revenue:       float64(f.Highlights.RevenueTTM),
	}

	r := f.AnalystRatings
	snap.Analyst = models.AnalystData{
		Recommendation:   recommendationFromRating(float64(r.Rating)),
		TargetMeanPrice:  float64(r.TargetPrice),
		NumberOfOpinions: r.StrongBuy + r.Buy + r.Hold + r.Sell + r.StrongSell,
	}
}

// recommendationFromRating maps the 1-5 consensus score onto the
// recommendation keys used by the other providers
func recommendationFromRating(rating float64) string {
	switch {
	case rating <= 0:
		return ""
	case rating >= 4.5:
		return "strong_buy"
	case rating >= 3.5:
		return "buy"
	case rating >= 2.5:
		return "hold"
	case rating >= 1.5:
		return "sell"
	default:
		return "strong_sell"
	}
}

// Ensure Client implements MarketDataClient
var _ interfaces.MarketDataClient = (*Client)(nil)
