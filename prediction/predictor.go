package prediction

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"ai-exchange/config"
	"ai-exchange/models"
)

const (
	// NeutralConfidenceCap bounds the confidence of a neutral call
	NeutralConfidenceCap = 50

	agreementWeight     = 20 // per signal agreeing with the direction
	maxStrengthBonus    = 20
	strengthPerPercent  = 10 // bonus per percent of MA spread
	volatilityWeight    = 4  // penalty per percent of volatility
	maxVolatilityWeight = 40
	elevatedVolatility  = 5.0
)

var hundred = decimal.NewFromInt(100)

var trendLabels = map[models.Trend]string{
	models.TrendBullish: "Bullish",
	models.TrendBearish: "Bearish",
}

// Predictor turns a look-back window into a StockPrediction. It holds no
// state between calls: identical inputs give identical outputs.
type Predictor struct {
	strategy    TrendStrategy
	shortWindow int
	longWindow  int
	maxDrift    decimal.Decimal // fraction, 0.05 for 5%
}

// NewPredictor creates a predictor from the prediction configuration
func NewPredictor(cfg config.PredictionConfig) *Predictor {
	short, long := cfg.ShortWindow, cfg.LongWindow
	if short <= 0 {
		short = 5
	}
	if long <= short {
		long = short * 4
	}
	drift := cfg.MaxDriftPercent
	if drift < 0 {
		drift = 0
	}
	return &Predictor{
		strategy:    StrategyFromConfig(cfg),
		shortWindow: short,
		longWindow:  long,
		maxDrift:    decimal.NewFromFloat(drift).Div(hundred),
	}
}

// WithStrategy replaces the trend strategy
func (p *Predictor) WithStrategy(s TrendStrategy) *Predictor {
	if s != nil {
		p.strategy = s
	}
	return p
}

// Strategy returns the active trend strategy
func (p *Predictor) Strategy() TrendStrategy {
	return p.strategy
}

// Predict analyzes bars and generates a prediction in one step
func (p *Predictor) Predict(symbol string, bars []models.HistoricalBar, currentPrice decimal.Decimal) models.StockPrediction {
	return p.GeneratePrediction(symbol, p.AnalyzeMarket(bars), currentPrice)
}

// GeneratePrediction maps an analysis to a trend, confidence, predicted price
// and reasoning. An invalid analysis gives a neutral zero-confidence
// prediction at the current price. GeneratedAt is left for the caller.
func (p *Predictor) GeneratePrediction(symbol string, a Analysis, currentPrice decimal.Decimal) models.StockPrediction {
	pred := models.StockPrediction{
		Symbol:         symbol,
		Trend:          models.TrendNeutral,
		CurrentPrice:   currentPrice,
		PredictedPrice: currentPrice,
	}
	if !a.Valid {
		pred.Reasoning = a.Reason
		if pred.Reasoning == "" {
			pred.Reasoning = "Insufficient price history for technical analysis"
		}
		return pred
	}

	direction := models.TrendNeutral
	switch {
	case a.MASpreadPercent > 0:
		direction = models.TrendBullish
	case a.MASpreadPercent < 0:
		direction = models.TrendBearish
	}

	confidence := directionalConfidence(a, direction)
	trend := p.strategy.DetermineTrend(a.MASpreadPercent, a.VolumeTrendPercent, confidence)
	if trend == models.TrendNeutral {
		confidence = neutralConfidence(a)
	}

	pred.Trend = trend
	pred.Confidence = confidence
	pred.PredictedPrice = p.predictedPrice(currentPrice, trend, confidence)
	pred.Reasoning = p.reasoning(a, trend)
	return pred
}

func (p *Predictor) predictedPrice(current decimal.Decimal, trend models.Trend, confidence int) decimal.Decimal {
	drift := decimal.NewFromInt(int64(confidence)).Div(hundred).Mul(p.maxDrift)
	switch trend {
	case models.TrendBullish:
		return current.Mul(decimal.NewFromInt(1).Add(drift)).Round(2)
	case models.TrendBearish:
		return current.Mul(decimal.NewFromInt(1).Sub(drift)).Round(2)
	default:
		return current
	}
}

// agreements counts the signals pointing the same way as direction. The MA
// spread defines the direction, so it always agrees.
func agreements(a Analysis, direction models.Trend) int {
	sign := 1.0
	if direction == models.TrendBearish {
		sign = -1.0
	}
	count := 1
	if a.VolumeTrendPercent*sign > 0 {
		count++
	}
	if a.MomentumPercent*sign > 0 {
		count++
	}
	if a.HasRSI && (a.RSI-50)*sign > 0 {
		count++
	}
	return count
}

func directionalConfidence(a Analysis, direction models.Trend) int {
	if direction == models.TrendNeutral {
		return 0
	}
	score := agreements(a, direction) * agreementWeight
	score += int(math.Min(math.Abs(a.MASpreadPercent)*strengthPerPercent, maxStrengthBonus))
	score -= volatilityPenalty(a)
	return clamp(score, 0, 100)
}

// neutralConfidence falls as the MA gap widens or volatility rises
func neutralConfidence(a Analysis) int {
	score := NeutralConfidenceCap
	score -= int(math.Min(math.Abs(a.MASpreadPercent)*strengthPerPercent, maxStrengthBonus))
	score -= volatilityPenalty(a)
	return clamp(score, 0, NeutralConfidenceCap)
}

func volatilityPenalty(a Analysis) int {
	return int(math.Min(a.VolatilityPercent*volatilityWeight, maxVolatilityWeight))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (p *Predictor) reasoning(a Analysis, trend models.Trend) string {
	relation := "above"
	if a.MASpreadPercent < 0 {
		relation = "below"
	}
	volume := "rising"
	if a.VolumeTrendPercent < 0 {
		volume = "falling"
	} else if a.VolumeTrendPercent == 0 {
		volume = "flat"
	}

	var b strings.Builder
	switch trend {
	case models.TrendBullish, models.TrendBearish:
		fmt.Fprintf(&b, "%s: %d-bar average is %.2f%% %s the %d-bar average on %s volume (%+.1f%%), momentum %+.2f%%.",
			trendLabels[trend], p.shortWindow, math.Abs(a.MASpreadPercent), relation, p.longWindow,
			volume, a.VolumeTrendPercent, a.MomentumPercent)
		if a.HasRSI {
			fmt.Fprintf(&b, " RSI %.0f.", a.RSI)
		}
	default:
		fmt.Fprintf(&b, "No clear trend: %d-bar average is %.2f%% %s the %d-bar average with %s volume (%+.1f%%).",
			p.shortWindow, math.Abs(a.MASpreadPercent), relation, p.longWindow, volume, a.VolumeTrendPercent)
	}
	if a.VolatilityPercent >= elevatedVolatility {
		fmt.Fprintf(&b, " Elevated volatility (%.1f%%) tempers confidence.", a.VolatilityPercent)
	}
	return b.String()
}
