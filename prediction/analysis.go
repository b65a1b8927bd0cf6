package prediction

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"ai-exchange/models"
)

const rsiPeriod = 14

// Analysis is the intermediate signal bundle derived from a look-back window.
// All percentages are in percent units (1.5 means 1.5%).
type Analysis struct {
	Valid  bool
	Reason string // why the analysis is not valid

	Bars               int
	LastClose          float64
	ShortMA            float64
	LongMA             float64
	MASpreadPercent    float64 // (short - long) / long
	VolumeTrendPercent float64 // recent half average volume vs prior half
	VolatilityPercent  float64 // stdev of closes relative to their mean
	MomentumPercent    float64 // last close vs first close
	RSI                float64
	HasRSI             bool
}

// AnalyzeMarket derives moving average, volume, volatility and momentum
// signals from bars ordered oldest to newest. Too-short or malformed history
// yields an invalid analysis, never an error.
func (p *Predictor) AnalyzeMarket(bars []models.HistoricalBar) Analysis {
	if len(bars) < p.longWindow {
		return Analysis{Bars: len(bars), Reason: "Insufficient price history for technical analysis"}
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		c := b.Close.InexactFloat64()
		if c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) || b.Volume < 0 {
			return Analysis{Bars: len(bars), Reason: "Price history contains malformed bars"}
		}
		closes[i] = c
		volumes[i] = float64(b.Volume)
	}

	shortMA, ok := lastSMA(closes, p.shortWindow)
	if !ok {
		return Analysis{Bars: len(bars), Reason: "Insufficient price history for technical analysis"}
	}
	longMA, ok := lastSMA(closes, p.longWindow)
	if !ok {
		return Analysis{Bars: len(bars), Reason: "Insufficient price history for technical analysis"}
	}

	a := Analysis{
		Valid:              true,
		Bars:               len(bars),
		LastClose:          closes[len(closes)-1],
		ShortMA:            shortMA,
		LongMA:             longMA,
		MASpreadPercent:    (shortMA - longMA) / longMA * 100,
		VolumeTrendPercent: volumeTrend(volumes),
		MomentumPercent:    (closes[len(closes)-1] - closes[0]) / closes[0] * 100,
	}

	if mean := stat.Mean(closes, nil); mean > 0 {
		a.VolatilityPercent = stat.StdDev(closes, nil) / mean * 100
	}

	if len(closes) > rsiPeriod {
		rsi := talib.Rsi(closes, rsiPeriod)
		if last := rsi[len(rsi)-1]; !math.IsNaN(last) {
			a.RSI = last
			a.HasRSI = true
		}
	}

	return a
}

// lastSMA returns the simple moving average of the most recent period closes
func lastSMA(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}
	sma := talib.Sma(closes, period)
	last := sma[len(sma)-1]
	if math.IsNaN(last) || last <= 0 {
		return 0, false
	}
	return last, true
}

// volumeTrend compares the average volume of the recent half of the window
// with the prior half. A zero prior average yields no trend.
func volumeTrend(volumes []float64) float64 {
	half := len(volumes) / 2
	if half == 0 {
		return 0
	}
	prior := stat.Mean(volumes[:half], nil)
	recent := stat.Mean(volumes[len(volumes)-half:], nil)
	if prior == 0 {
		return 0
	}
	return (recent - prior) / prior * 100
}
