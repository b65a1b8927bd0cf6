package trading

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ai-exchange/ledger"
	"ai-exchange/models"
	"ai-exchange/observability"
)

// DefaultRecentLimit is the number of executed trades kept in memory
const DefaultRecentLimit = 100

const outcomeExecuted = "executed"

// Journal records executed trades outside the session
type Journal interface {
	CreateTrade(ctx context.Context, trade *models.Trade) error
}

// Coordinator validates trade intents, prices them against an order book
// snapshot and applies them to the ledger. It never mutates the book.
type Coordinator struct {
	ledger  *ledger.Ledger
	journal Journal
	metrics *observability.Metrics
	now     func() time.Time
	limit   int

	mu     sync.RWMutex
	recent []models.Trade // newest first
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithJournal mirrors executed trades into j
func WithJournal(j Journal) Option {
	return func(c *Coordinator) {
		c.journal = j
	}
}

// WithMetrics records trade outcomes on m
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithClock sets the clock used to stamp trades
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRecentLimit sets how many executed trades are kept in memory
func WithRecentLimit(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.limit = n
		}
	}
}

// NewCoordinator creates a coordinator applying trades to l
func NewCoordinator(l *ledger.Ledger, opts ...Option) *Coordinator {
	c := &Coordinator{
		ledger: l,
		now:    time.Now,
		limit:  DefaultRecentLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs an intent against book. Every failure is reported in the
// result, never as a Go error or panic.
func (c *Coordinator) Execute(ctx context.Context, intent models.TradeIntent, book *models.OrderBook) models.TradeResult {
	intent = intent.Normalize()

	fill, err := c.price(intent, book)
	if err == nil {
		_, err = c.ledger.ApplyTrade(intent, fill)
	}
	if err != nil {
		c.record(intent, string(outcomeOf(err)), 0)
		observability.WithSymbol(intent.Symbol).Info("Trade rejected",
			"side", intent.Type,
			"quantity", intent.Quantity,
			"reason", err.Error())
		return models.TradeFailed(err)
	}

	trade := models.NewTrade(intent, fill, c.now())
	c.remember(*trade)
	c.record(intent, outcomeExecuted, trade.TotalValue.InexactFloat64())

	observability.WithSymbol(trade.Symbol).Info("Trade executed",
		"side", trade.Side,
		"order_type", trade.OrderType,
		"quantity", trade.Quantity,
		"price", trade.Price.String())

	if c.journal != nil {
		if err := c.journal.CreateTrade(ctx, trade); err != nil {
			observability.Warn("Failed to journal trade",
				"trade_id", trade.ID.String(),
				"symbol", trade.Symbol,
				"error", err)
		}
	}

	return models.TradeSucceeded(trade)
}

// price validates the intent and returns the fill price from book
func (c *Coordinator) price(intent models.TradeIntent, book *models.OrderBook) (decimal.Decimal, error) {
	if err := Validate(intent); err != nil {
		return decimal.Zero, err
	}
	if book == nil {
		return decimal.Zero, models.InvalidIntentf("no order book for %s", intent.Symbol)
	}
	if book.Symbol != intent.Symbol {
		return decimal.Zero, models.InvalidIntentf("order book is for %s, not %s", book.Symbol, intent.Symbol)
	}
	return FillPrice(intent, book)
}

// Validate checks the shape of a normalized intent
func Validate(intent models.TradeIntent) error {
	if intent.Symbol == "" {
		return models.InvalidIntentf("symbol is required")
	}
	if intent.Quantity <= 0 {
		return models.InvalidIntentf("quantity must be positive, got %d", intent.Quantity)
	}
	switch intent.Type {
	case models.TradeSideBuy, models.TradeSideSell:
	default:
		return models.InvalidIntentf("unknown trade type %q", intent.Type)
	}
	switch intent.OrderType {
	case models.OrderTypeMarket:
	case models.OrderTypeLimit:
		if intent.Price == nil || !intent.Price.IsPositive() {
			return models.InvalidIntentf("limit orders need a positive price")
		}
	default:
		return models.InvalidIntentf("unknown order type %q", intent.OrderType)
	}
	if intent.TimeInForce != models.TimeInForceGTC {
		return models.InvalidIntentf("unsupported time in force %q", intent.TimeInForce)
	}
	return nil
}

// FillPrice returns the best opposite price of book for intent. A limit
// order fills at the book price when its limit crosses it.
func FillPrice(intent models.TradeIntent, book *models.OrderBook) (decimal.Decimal, error) {
	var best decimal.Decimal
	switch intent.Type {
	case models.TradeSideBuy:
		if len(book.Asks) == 0 {
			return decimal.Zero, fmt.Errorf("%w: no asks for %s", models.ErrNotMarketable, intent.Symbol)
		}
		best = book.Asks[0].Price
		if intent.OrderType == models.OrderTypeLimit && intent.Price.LessThan(best) {
			return decimal.Zero, fmt.Errorf("%w: buy limit %s below best ask %s",
				models.ErrNotMarketable, models.FormatMoney(*intent.Price), models.FormatMoney(best))
		}
	case models.TradeSideSell:
		if len(book.Bids) == 0 {
			return decimal.Zero, fmt.Errorf("%w: no bids for %s", models.ErrNotMarketable, intent.Symbol)
		}
		best = book.Bids[0].Price
		if intent.OrderType == models.OrderTypeLimit && intent.Price.GreaterThan(best) {
			return decimal.Zero, fmt.Errorf("%w: sell limit %s above best bid %s",
				models.ErrNotMarketable, models.FormatMoney(*intent.Price), models.FormatMoney(best))
		}
	default:
		return decimal.Zero, models.InvalidIntentf("unknown trade type %q", intent.Type)
	}
	return best, nil
}

// RecentTrades returns up to limit executed trades, newest first. A
// non-positive limit returns all of them.
func (c *Coordinator) RecentTrades(limit int) []models.Trade {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if limit <= 0 || limit > len(c.recent) {
		limit = len(c.recent)
	}
	trades := make([]models.Trade, limit)
	copy(trades, c.recent[:limit])
	return trades
}

func (c *Coordinator) remember(trade models.Trade) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recent = append([]models.Trade{trade}, c.recent...)
	if len(c.recent) > c.limit {
		c.recent = c.recent[:c.limit]
	}
}

func (c *Coordinator) record(intent models.TradeIntent, outcome string, notional float64) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordTrade(string(intent.Type), string(intent.OrderType), outcome, notional)
}

func outcomeOf(err error) models.ErrorKind {
	if kind := models.KindOf(err); kind != "" {
		return kind
	}
	return "error"
}
