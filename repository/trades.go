package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"ai-exchange/models"
)

const tradesTable = "trades"

const tradeColumns = `id, symbol, side, order_type, quantity, price, total_value, status, executed_at`

// GetTrades returns trades with optional limit
func (r *Repository) GetTrades(ctx context.Context, limit int) (trades []models.Trade, err error) {
	if limit <= 0 {
		limit = 50
	}
	timer := r.timer()
	defer func() { r.observe(timer, "select", tradesTable, err) }()

	rows, err := r.db.Query(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		ORDER BY executed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	return scanTrades(rows)
}

// GetTrade returns a single trade by ID, or nil when it does not exist
func (r *Repository) GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	var t models.Trade
	err := r.db.QueryRow(ctx, `
		SELECT `+tradeColumns+`
		FROM trades WHERE id = $1
	`, id).Scan(&t.ID, &t.Symbol, &t.Side, &t.OrderType, &t.Quantity, &t.Price, &t.TotalValue, &t.Status, &t.ExecutedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trade: %w", err)
	}

	return &t, nil
}

// CreateTrade creates a new trade record
func (r *Repository) CreateTrade(ctx context.Context, trade *models.Trade) (err error) {
	timer := r.timer()
	defer func() { r.observe(timer, "insert", tradesTable, err) }()

	_, err = r.db.Exec(ctx, `
		INSERT INTO trades (`+tradeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, trade.ID, trade.Symbol, trade.Side, trade.OrderType, trade.Quantity, trade.Price, trade.TotalValue, trade.Status, trade.ExecutedAt)

	if err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}

	return nil
}

// GetTradesBySymbol returns trades for a specific symbol
func (r *Repository) GetTradesBySymbol(ctx context.Context, symbol string, limit int) (trades []models.Trade, err error) {
	if limit <= 0 {
		limit = 50
	}
	timer := r.timer()
	defer func() { r.observe(timer, "select", tradesTable, err) }()

	rows, err := r.db.Query(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE symbol = $1
		ORDER BY executed_at DESC
		LIMIT $2
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	return scanTrades(rows)
}

func scanTrades(rows pgx.Rows) ([]models.Trade, error) {
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var t models.Trade
		err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.OrderType, &t.Quantity, &t.Price, &t.TotalValue, &t.Status, &t.ExecutedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trades: %w", err)
	}

	return trades, nil
}
