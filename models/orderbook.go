package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookSide identifies one side of the order book
type BookSide string

const (
	BookSideBid BookSide = "bid"
	BookSideAsk BookSide = "ask"
)

// OrderBookEntry is one price level of the ladder. Total is the running
// notional of the side up to and including this level.
type OrderBookEntry struct {
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
	Total    decimal.Decimal `json:"total"`
}

// DepthEntry is one point of the cumulative depth curve
type DepthEntry struct {
	Price      decimal.Decimal `json:"price"`
	Quantity   int64           `json:"quantity"`
	Cumulative int64           `json:"cumulative"`
	Side       BookSide        `json:"side"`
}

// OrderBook is a read-only snapshot of the synthetic book for a symbol.
// Bids are sorted by price descending and asks ascending.
type OrderBook struct {
	Symbol         string           `json:"symbol"`
	ReferencePrice decimal.Decimal  `json:"reference_price"`
	Bids           []OrderBookEntry `json:"bids"`
	Asks           []OrderBookEntry `json:"asks"`
	Depth          []DepthEntry     `json:"depth"`
	BestBid        decimal.Decimal  `json:"best_bid"`
	BestAsk        decimal.Decimal  `json:"best_ask"`
	MidPrice       decimal.Decimal  `json:"mid_price"`
	Spread         decimal.Decimal  `json:"spread"`
	SpreadPercent  decimal.Decimal  `json:"spread_percent"`
	Timestamp      time.Time        `json:"timestamp"`
}

// HasLiquidity reports whether both sides of the book have at least one level
func (b *OrderBook) HasLiquidity() bool {
	return b != nil && len(b.Bids) > 0 && len(b.Asks) > 0
}

// DepthSide returns the depth entries of one side in book order
func (b *OrderBook) DepthSide(side BookSide) []DepthEntry {
	entries := make([]DepthEntry, 0, len(b.Depth)/2)
	for _, d := range b.Depth {
		if d.Side == side {
			entries = append(entries, d)
		}
	}
	return entries
}
