package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Position is a held quantity of one symbol in the paper portfolio
type Position struct {
	ID                   uuid.UUID       `json:"id"`
	Symbol               string          `json:"symbol"`
	Quantity             int64           `json:"quantity"`
	CostBasis            decimal.Decimal `json:"cost_basis"`
	CurrentPrice         decimal.Decimal `json:"current_price"`
	TotalValue           decimal.Decimal `json:"total_value"`
	UnrealizedPnL        decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnLPercent decimal.Decimal `json:"unrealized_pnl_percent"`
	OpenedAt             time.Time       `json:"opened_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// CostValue returns the amount paid for the currently held shares
func (p *Position) CostValue() decimal.Decimal {
	return p.CostBasis.Mul(decimal.NewFromInt(p.Quantity))
}

// Mark revalues the position at price. Quantity and cost basis are untouched.
func (p *Position) Mark(price decimal.Decimal) {
	qty := decimal.NewFromInt(p.Quantity)
	p.CurrentPrice = price
	p.TotalValue = price.Mul(qty)
	p.UnrealizedPnL = price.Sub(p.CostBasis).Mul(qty)
	if p.CostBasis.IsZero() {
		p.UnrealizedPnLPercent = decimal.Zero
		return
	}
	p.UnrealizedPnLPercent = price.Sub(p.CostBasis).Div(p.CostBasis).Mul(hundred).Round(2)
}

// Portfolio is a read-only snapshot of the paper account
type Portfolio struct {
	CashBalance     decimal.Decimal `json:"cash_balance"`
	Positions       []Position      `json:"positions"`
	TotalValue      decimal.Decimal `json:"total_value"`
	TotalPnL        decimal.Decimal `json:"total_pnl"`
	TotalPnLPercent decimal.Decimal `json:"total_pnl_percent"`
	RealizedPnL     decimal.Decimal `json:"realized_pnl"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewPortfolio computes the aggregates of a portfolio from cash and positions
func NewPortfolio(cash decimal.Decimal, positions []Position, realized decimal.Decimal, ts time.Time) Portfolio {
	total := cash
	pnl := decimal.Zero
	cost := decimal.Zero
	for i := range positions {
		total = total.Add(positions[i].TotalValue)
		pnl = pnl.Add(positions[i].UnrealizedPnL)
		cost = cost.Add(positions[i].CostValue())
	}

	pct := decimal.Zero
	if !cost.IsZero() {
		pct = pnl.Div(cost).Mul(hundred).Round(2)
	}

	if positions == nil {
		positions = []Position{}
	}

	return Portfolio{
		CashBalance:     cash,
		Positions:       positions,
		TotalValue:      total,
		TotalPnL:        pnl,
		TotalPnLPercent: pct,
		RealizedPnL:     realized,
		UpdatedAt:       ts,
	}
}

// Position returns the position for symbol, if held
func (p Portfolio) Position(symbol string) (Position, bool) {
	for _, pos := range p.Positions {
		if pos.Symbol == symbol {
			return pos, true
		}
	}
	return Position{}, false
}
