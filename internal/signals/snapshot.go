package signals

import (
	"sort"
	"time"

	"github.com/bobmcallan/analyst/internal/models"
)

// RecentHistoryBars is the number of sessions carried in a snapshot
const RecentHistoryBars = 22

const dateLayout = "2006-01-02"

var newYork = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// Minimal containers may lack tzdata
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// SortDescending orders bars most recent first and drops empty sessions
func SortDescending(bars []models.EODBar) []models.EODBar {
	out := make([]models.EODBar, 0, len(bars))
	for _, b := range bars {
		if b.Open == 0 && b.High == 0 && b.Low == 0 && b.Close == 0 {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

// LatestTrading describes the most recent session. The change is measured
// against the previous close, or against the open when only one bar exists.
func LatestTrading(bars []models.EODBar, now time.Time) (models.LatestTradingData, bool) {
	if len(bars) == 0 {
		return models.LatestTradingData{}, false
	}

	latest := bars[0]
	base := latest.Open
	if len(bars) > 1 {
		base = bars[1].Close
	}

	var change float64
	if base != 0 {
		change = (latest.Close - base) / base * 100
	}

	return models.LatestTradingData{
		Date:          latest.Date.Format(dateLayout),
		Price:         round2(latest.Close),
		Open:          round2(latest.Open),
		High:          round2(latest.High),
		Low:           round2(latest.Low),
		Volume:        latest.Volume,
		ChangePercent: round2(change),
		TradingStatus: MarketStatus(now),
	}, true
}

// FiftyTwoWeek finds the high and low of the year ending at the latest bar
// and where the latest close sits in that range.
func FiftyTwoWeek(bars []models.EODBar) models.FiftyTwoWeekData {
	var data models.FiftyTwoWeekData
	if len(bars) == 0 {
		return data
	}

	cutoff := bars[0].Date.AddDate(-1, 0, 0)
	high, low := bars[0], bars[0]
	for _, b := range bars {
		if b.Date.Before(cutoff) {
			break
		}
		if b.High > high.High {
			high = b
		}
		if b.Low < low.Low {
			low = b
		}
	}

	data.High = models.PricePoint{Price: round2(high.High), Date: high.Date.Format(dateLayout)}
	data.Low = models.PricePoint{Price: round2(low.Low), Date: low.Date.Format(dateLayout)}
	data.PositionInRange = RangePosition(bars[0].Close, low.Low, high.High)
	return data
}

// RangePosition returns where price sits between low and high as a percentage,
// or nil when the range is degenerate.
func RangePosition(price, low, high float64) *float64 {
	if high <= low {
		return nil
	}
	pos := round2((price - low) / (high - low) * 100)
	return &pos
}

// MarketStatus reports whether US equity markets are in regular session
// (weekdays 09:30–16:00 New York time). Exchange holidays are not modelled.
func MarketStatus(now time.Time) string {
	local := now.In(newYork)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return models.MarketClosed
	}
	minutes := local.Hour()*60 + local.Minute()
	if minutes < 9*60+30 || minutes >= 16*60 {
		return models.MarketClosed
	}
	return models.MarketOpen
}

// RecentHistory returns up to n of the most recent bars as a new slice
func RecentHistory(bars []models.EODBar, n int) []models.EODBar {
	if len(bars) < n {
		n = len(bars)
	}
	out := make([]models.EODBar, n)
	copy(out, bars[:n])
	return out
}

// ApplyBars fills the price-derived fields of a snapshot from daily bars.
// It returns false when there are no usable bars.
func ApplyBars(snap *models.MarketSnapshot, bars []models.EODBar, now time.Time) bool {
	bars = SortDescending(bars)
	latest, ok := LatestTrading(bars, now)
	if !ok {
		return false
	}
	snap.LatestTrading = latest
	snap.FiftyTwoWeek = FiftyTwoWeek(bars)
	snap.Technicals = Technicals(bars)
	snap.RecentHistory = RecentHistory(bars, RecentHistoryBars)
	return true
}
