// Package models defines data structures for the analyst service
package models

import (
	"time"
)

// Trading status labels
const (
	MarketOpen   = "Market Open"
	MarketClosed = "Market Closed"
)

// EODBar represents a single day's price data
type EODBar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adjusted_close,omitempty"`
	Volume   int64     `json:"volume"`
}

// MarketSnapshot is a point-in-time record of a symbol's market data.
// It is built once per fetch and never modified afterwards.
type MarketSnapshot struct {
	Symbol        string              `json:"symbol"`
	Source        string              `json:"source"`
	DataTimestamp time.Time           `json:"data_timestamp"`
	CompanyName   string              `json:"company_name"`
	Currency      string              `json:"currency,omitempty"`
	Exchange      string              `json:"exchange,omitempty"`
	LatestTrading LatestTradingData   `json:"latest_trading_data"`
	FiftyTwoWeek  FiftyTwoWeekData    `json:"52_week_data"`
	Financials    FinancialMetrics    `json:"financial_metrics"`
	Company       CompanyInfo         `json:"company_info"`
	Analyst       AnalystData         `json:"analyst_data"`
	Technicals    TechnicalIndicators `json:"technical_indicators"`
	RecentHistory []EODBar            `json:"recent_history,omitempty"` // most recent first
}

// LatestTradingData describes the most recent trading session
type LatestTradingData struct {
	Date          string  `json:"date"` // YYYY-MM-DD
	Price         float64 `json:"price"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Volume        int64   `json:"volume"`
	ChangePercent float64 `json:"change_percent"`
	TradingStatus string  `json:"trading_status"`
}

// PricePoint is a price with the session date it was recorded on
type PricePoint struct {
	Price float64 `json:"price"`
	Date  string  `json:"date,omitempty"`
}

// FiftyTwoWeekData holds the trailing one-year range.
// PositionInRange is nil when the range is empty or degenerate.
type FiftyTwoWeekData struct {
	High            PricePoint `json:"high"`
	Low             PricePoint `json:"low"`
	PositionInRange *float64   `json:"current_position_in_range"`
}

// FinancialMetrics holds valuation metrics. Zero means not reported.
type FinancialMetrics struct {
	MarketCap     float64 `json:"market_cap,omitempty"`
	PERatio       float64 `json:"pe_ratio,omitempty"`
	EPS           float64 `json:"eps,omitempty"`
	DividendYield float64 `json:"dividend_yield,omitempty"` // percent
	Beta          float64 `json:"beta,omitempty"`
	ProfitMargin  float64 `json:"profit_margin,omitempty"`
	Revenue       float64 `json:"revenue,omitempty"`
}

// CompanyInfo holds descriptive company data
type CompanyInfo struct {
	Sector            string `json:"sector,omitempty"`
	Industry          string `json:"industry,omitempty"`
	Website           string `json:"website,omitempty"`
	FullTimeEmployees int64  `json:"full_time_employees,omitempty"`
	BusinessSummary   string `json:"business_summary,omitempty"`
}

// AnalystData holds the consensus view of covering analysts
type AnalystData struct {
	Recommendation   string  `json:"recommendation,omitempty"`
	TargetMeanPrice  float64 `json:"target_mean_price,omitempty"`
	NumberOfOpinions int     `json:"number_of_analyst_opinions,omitempty"`
}

// TechnicalIndicators are derived from daily bars. Zero means not enough history.
type TechnicalIndicators struct {
	SMA20       float64 `json:"sma_20,omitempty"`
	SMA50       float64 `json:"sma_50,omitempty"`
	SMA200      float64 `json:"sma_200,omitempty"`
	RSI14       float64 `json:"rsi_14,omitempty"`
	AvgVolume20 int64   `json:"avg_volume_20,omitempty"`
	VolumeRatio float64 `json:"volume_ratio,omitempty"`
}
