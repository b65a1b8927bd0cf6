package services

import (
	"context"

	"ai-exchange/models"
)

// MarketDataProvider is a live price source behind the feed's provider boundary
type MarketDataProvider interface {
	Name() string
	Quote(ctx context.Context, symbol string) (models.PricePoint, error)
	Bars(ctx context.Context, symbol string, n int) ([]models.HistoricalBar, error)
}

// NewsSource supplies headlines for the ticker rotation
type NewsSource interface {
	GetHeadlines(ctx context.Context, query string, limit int) ([]models.NewsArticle, error)
}

// Compile-time interface verification
var _ MarketDataProvider = (*AlpacaProvider)(nil)
var _ MarketDataProvider = (*AlphaVantageProvider)(nil)
var _ NewsSource = (*NewsAPIService)(nil)
