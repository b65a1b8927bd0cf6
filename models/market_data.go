package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceSynthetic marks price data produced by the synthetic generator
const SourceSynthetic = "synthetic"

// PricePoint is an immutable price sample for a symbol at one feed tick
type PricePoint struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        int64           `json:"volume"`
	Timestamp     time.Time       `json:"timestamp"`
	Source        string          `json:"source"`
}

// IsSynthetic reports whether the point came from the synthetic generator
func (p PricePoint) IsSynthetic() bool {
	return p.Source == SourceSynthetic
}

// NewPricePoint builds a PricePoint from the latest and previous price,
// deriving change and change percent
func NewPricePoint(symbol string, price, previous decimal.Decimal, volume int64, ts time.Time, source string) PricePoint {
	change := price.Sub(previous)
	changePercent := decimal.Zero
	if !previous.IsZero() {
		changePercent = change.Div(previous).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return PricePoint{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: changePercent,
		Volume:        volume,
		Timestamp:     ts,
		Source:        source,
	}
}

// HistoricalBar is one closed bar of the prediction look-back window
type HistoricalBar struct {
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewsArticle is one item of the news ticker rotation
type NewsArticle struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url,omitempty"`
	Source      string    `json:"source"`
	Symbol      string    `json:"symbol,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}
