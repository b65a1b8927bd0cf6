package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// TimeInForceGTC is the only supported time in force
const TimeInForceGTC = "GTC"

// TradeIntent is a buy or sell request coming from the UI
type TradeIntent struct {
	Symbol      string           `json:"symbol"`
	Type        TradeSide        `json:"type"`
	OrderType   OrderType        `json:"orderType"`
	Quantity    int64            `json:"quantity"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	TimeInForce string           `json:"timeInForce"`
}

// Normalize upper-cases the symbol and defaults the time in force
func (i TradeIntent) Normalize() TradeIntent {
	i.Symbol = strings.ToUpper(strings.TrimSpace(i.Symbol))
	i.Type = TradeSide(strings.ToLower(string(i.Type)))
	i.OrderType = OrderType(strings.ToLower(string(i.OrderType)))
	if i.OrderType == "" {
		i.OrderType = OrderTypeMarket
	}
	if i.TimeInForce == "" {
		i.TimeInForce = TimeInForceGTC
	}
	i.TimeInForce = strings.ToUpper(i.TimeInForce)
	return i
}

// Notional returns price * quantity
func (i TradeIntent) Notional(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(i.Quantity))
}

type TradeStatus string

const (
	TradeStatusExecuted TradeStatus = "executed"
	TradeStatusRejected TradeStatus = "rejected"
)

// Trade is the record of an executed intent
type Trade struct {
	ID         uuid.UUID       `json:"id"`
	Symbol     string          `json:"symbol"`
	Side       TradeSide       `json:"side"`
	OrderType  OrderType       `json:"order_type"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	TotalValue decimal.Decimal `json:"total_value"`
	Status     TradeStatus     `json:"status"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// NewTrade creates an executed trade record for an intent filled at price
func NewTrade(intent TradeIntent, price decimal.Decimal, at time.Time) *Trade {
	return &Trade{
		ID:         uuid.New(),
		Symbol:     intent.Symbol,
		Side:       intent.Type,
		OrderType:  intent.OrderType,
		Quantity:   intent.Quantity,
		Price:      price,
		TotalValue: intent.Notional(price),
		Status:     TradeStatusExecuted,
		ExecutedAt: at,
	}
}

// TradeResult is the outcome of a trade intent as returned to the UI
type TradeResult struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Trade     *Trade    `json:"trade,omitempty"`
}

// TradeSucceeded builds a successful result
func TradeSucceeded(trade *Trade) TradeResult {
	return TradeResult{Success: true, Trade: trade}
}

// TradeFailed builds a failed result from an error, keeping its kind
func TradeFailed(err error) TradeResult {
	return TradeResult{
		Success:   false,
		Error:     err.Error(),
		ErrorKind: KindOf(err),
	}
}
