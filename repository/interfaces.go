package repository

import (
	"context"

	"github.com/google/uuid"

	"ai-exchange/models"
)

// TradeJournal defines the trade journal operations
type TradeJournal interface {
	// Health and lifecycle
	Close()
	Health(ctx context.Context) error
	Migrate(ctx context.Context) error

	// Trades
	GetTrades(ctx context.Context, limit int) ([]models.Trade, error)
	GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error)
	CreateTrade(ctx context.Context, trade *models.Trade) error
	GetTradesBySymbol(ctx context.Context, symbol string, limit int) ([]models.Trade, error)
}

// Compile-time interface verification
var _ TradeJournal = (*Repository)(nil)
