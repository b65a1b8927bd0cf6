package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trend is the direction classification of a prediction
type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendNeutral Trend = "neutral"
)

// StockPrediction is the predictor output for one symbol. It is regenerated
// wholesale on every refresh cycle.
type StockPrediction struct {
	Symbol         string          `json:"symbol"`
	Trend          Trend           `json:"trend"`
	Confidence     int             `json:"confidence"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	PredictedPrice decimal.Decimal `json:"predicted_price"`
	Reasoning      string          `json:"reasoning"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// ExpectedReturnPercent returns the predicted move relative to the current price
func (p StockPrediction) ExpectedReturnPercent() decimal.Decimal {
	if p.CurrentPrice.IsZero() {
		return decimal.Zero
	}
	return p.PredictedPrice.Sub(p.CurrentPrice).Div(p.CurrentPrice).Mul(decimal.NewFromInt(100)).Round(2)
}
