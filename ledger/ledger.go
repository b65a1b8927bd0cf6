package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ai-exchange/models"
	"ai-exchange/observability"
)

// Ledger is the in-memory paper account: cash, open positions and realized
// P&L. One mutex serializes trades and marks, so a reader never observes a
// partially applied trade.
type Ledger struct {
	mu        sync.Mutex
	cash      decimal.Decimal
	positions map[string]*models.Position
	realized  decimal.Decimal
	updatedAt time.Time

	now     func() time.Time
	metrics *observability.Metrics
}

// New creates a ledger holding initialCash and no positions. A nil clock uses
// time.Now.
func New(initialCash decimal.Decimal, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	if initialCash.IsNegative() {
		initialCash = decimal.Zero
	}
	return &Ledger{
		cash:      initialCash,
		positions: make(map[string]*models.Position),
		now:       now,
		updatedAt: now(),
	}
}

// WithMetrics publishes portfolio gauges after every mutation
func (l *Ledger) WithMetrics(m *observability.Metrics) *Ledger {
	l.metrics = m
	return l
}

// ApplyTrade applies a filled intent and returns the resulting positions.
//
// A buy needs fillPrice*quantity of cash and folds into the position at the
// weighted-average cost. A sell needs the shares, credits cash, books the
// realized gain against the unchanged cost basis, and removes the position
// once it is flat. On error the ledger is unchanged.
func (l *Ledger) ApplyTrade(intent models.TradeIntent, fillPrice decimal.Decimal) ([]models.Position, error) {
	if intent.Symbol == "" {
		return nil, models.InvalidIntentf("symbol is required")
	}
	if intent.Quantity <= 0 {
		return nil, models.InvalidIntentf("quantity must be positive, got %d", intent.Quantity)
	}
	if !fillPrice.IsPositive() {
		return nil, models.InvalidIntentf("fill price must be positive, got %s", fillPrice)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	amount := intent.Notional(fillPrice)
	qty := decimal.NewFromInt(intent.Quantity)

	switch intent.Type {
	case models.TradeSideBuy:
		if amount.GreaterThan(l.cash) {
			return nil, fmt.Errorf("%w: need %s, have %s",
				models.ErrInsufficientFunds, models.FormatMoney(amount), models.FormatMoney(l.cash))
		}

		pos, ok := l.positions[intent.Symbol]
		if !ok {
			pos = &models.Position{
				ID:        uuid.New(),
				Symbol:    intent.Symbol,
				CostBasis: fillPrice,
				OpenedAt:  now,
			}
			l.positions[intent.Symbol] = pos
		} else {
			held := decimal.NewFromInt(pos.Quantity)
			pos.CostBasis = pos.CostValue().Add(amount).Div(held.Add(qty))
		}
		pos.Quantity += intent.Quantity
		pos.Mark(fillPrice)
		pos.UpdatedAt = now
		l.cash = l.cash.Sub(amount)

	case models.TradeSideSell:
		pos, ok := l.positions[intent.Symbol]
		if !ok {
			return nil, fmt.Errorf("%w: no %s position", models.ErrInsufficientShares, intent.Symbol)
		}
		if intent.Quantity > pos.Quantity {
			return nil, fmt.Errorf("%w: selling %d %s, holding %d",
				models.ErrInsufficientShares, intent.Quantity, intent.Symbol, pos.Quantity)
		}

		l.realized = l.realized.Add(fillPrice.Sub(pos.CostBasis).Mul(qty))
		l.cash = l.cash.Add(amount)
		pos.Quantity -= intent.Quantity
		if pos.Quantity == 0 {
			delete(l.positions, intent.Symbol)
		} else {
			pos.Mark(fillPrice)
			pos.UpdatedAt = now
		}

	default:
		return nil, models.InvalidIntentf("unknown trade type %q", intent.Type)
	}

	l.updatedAt = now
	l.publish()
	return l.positionsLocked(), nil
}

// MarkToMarket revalues every position that has a price in prices and returns
// the updated portfolio. Positions without a price keep their last mark.
// Marking twice with the same prices gives the same portfolio.
func (l *Ledger) MarkToMarket(prices map[string]models.PricePoint) models.Portfolio {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for symbol, pos := range l.positions {
		point, ok := prices[symbol]
		if !ok || !point.Price.IsPositive() {
			continue
		}
		pos.Mark(point.Price)
		pos.UpdatedAt = now
	}
	l.updatedAt = now
	l.publish()
	return l.portfolioLocked()
}

// Mark revalues a single position, if held
func (l *Ledger) Mark(symbol string, price decimal.Decimal) {
	if !price.IsPositive() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[symbol]
	if !ok {
		return
	}
	pos.Mark(price)
	pos.UpdatedAt = l.now()
	l.publish()
}

// Portfolio returns a snapshot of the account
func (l *Ledger) Portfolio() models.Portfolio {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.portfolioLocked()
}

// Positions returns a snapshot of the open positions sorted by symbol
func (l *Ledger) Positions() []models.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.positionsLocked()
}

// Position returns a copy of the position for symbol, if held
func (l *Ledger) Position(symbol string) (models.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[symbol]
	if !ok {
		return models.Position{}, false
	}
	return *pos, true
}

// Symbols returns the held symbols sorted
func (l *Ledger) Symbols() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	symbols := make([]string, 0, len(l.positions))
	for symbol := range l.positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Cash returns the cash balance
func (l *Ledger) Cash() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

func (l *Ledger) positionsLocked() []models.Position {
	positions := make([]models.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		positions = append(positions, *pos)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions
}

func (l *Ledger) portfolioLocked() models.Portfolio {
	return models.NewPortfolio(l.cash, l.positionsLocked(), l.realized, l.updatedAt)
}

func (l *Ledger) publish() {
	if l.metrics == nil {
		return
	}
	p := l.portfolioLocked()
	l.metrics.SetPortfolio(p.TotalValue.InexactFloat64(), p.CashBalance.InexactFloat64())
}
