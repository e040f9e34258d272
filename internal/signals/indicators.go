// Package signals derives price fields and technical indicators from daily bars.
// All functions expect bars ordered most recent first.
package signals

import (
	"math"

	"github.com/bobmcallan/analyst/internal/models"
)

// SMA calculates Simple Moving Average for the given period
func SMA(bars []models.EODBar, period int) float64 {
	if period <= 0 || len(bars) < period {
		return 0
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += bars[i].Close
	}
	return sum / float64(period)
}

// RSI calculates Relative Strength Index
func RSI(bars []models.EODBar, period int) float64 {
	if len(bars) < period+1 {
		return 0
	}

	var gains, losses float64
	for i := 0; i < period; i++ {
		change := bars[i].Close - bars[i+1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// AverageVolume calculates average volume over a period
func AverageVolume(bars []models.EODBar, period int) int64 {
	if period <= 0 || len(bars) < period {
		return 0
	}

	var sum int64
	for i := 0; i < period; i++ {
		sum += bars[i].Volume
	}
	return sum / int64(period)
}

// VolumeRatio calculates the latest volume as a ratio of the period average
func VolumeRatio(bars []models.EODBar, period int) float64 {
	if len(bars) == 0 {
		return 0
	}

	avg := AverageVolume(bars, period)
	if avg == 0 {
		return 0
	}

	return float64(bars[0].Volume) / float64(avg)
}

// Technicals computes the indicator block carried in a snapshot
func Technicals(bars []models.EODBar) models.TechnicalIndicators {
	return models.TechnicalIndicators{
		SMA20:       round2(SMA(bars, 20)),
		SMA50:       round2(SMA(bars, 50)),
		SMA200:      round2(SMA(bars, 200)),
		RSI14:       round2(RSI(bars, 14)),
		AvgVolume20: AverageVolume(bars, 20),
		VolumeRatio: round2(VolumeRatio(bars, 20)),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
