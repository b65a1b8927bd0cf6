package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"ai-exchange/config"
	"ai-exchange/models"
)

// alpacaDataClient is the subset of the Alpaca market data client we use
type alpacaDataClient interface {
	GetSnapshot(symbol string, req marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error)
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaProvider serves quotes and daily bars from Alpaca market data
type AlpacaProvider struct {
	dataClient alpacaDataClient
	now        func() time.Time
}

// NewAlpacaProvider creates an AlpacaProvider from feed credentials
func NewAlpacaProvider(cfg config.FeedConfig) *AlpacaProvider {
	dataClient := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.BaseURL,
	})

	return &AlpacaProvider{
		dataClient: dataClient,
		now:        time.Now,
	}
}

// Name returns the provider name
func (p *AlpacaProvider) Name() string {
	return config.ProviderAlpaca
}

// Quote returns the latest trade price with change against the previous daily close
func (p *AlpacaProvider) Quote(ctx context.Context, symbol string) (models.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return models.PricePoint{}, err
	}

	symbol = strings.ToUpper(symbol)
	snapshot, err := p.dataClient.GetSnapshot(symbol, marketdata.GetSnapshotRequest{})
	if err != nil {
		return models.PricePoint{}, fmt.Errorf("failed to get snapshot for %s: %w", symbol, err)
	}
	if snapshot == nil || snapshot.LatestTrade == nil {
		return models.PricePoint{}, fmt.Errorf("no latest trade for %s", symbol)
	}

	price := decimal.NewFromFloat(snapshot.LatestTrade.Price).Round(2)
	previous := price
	var volume int64
	if snapshot.PrevDailyBar != nil {
		previous = decimal.NewFromFloat(snapshot.PrevDailyBar.Close).Round(2)
	} else if snapshot.DailyBar != nil {
		previous = decimal.NewFromFloat(snapshot.DailyBar.Open).Round(2)
	}
	if snapshot.DailyBar != nil {
		volume = int64(snapshot.DailyBar.Volume)
	}

	return models.NewPricePoint(symbol, price, previous, volume, snapshot.LatestTrade.Timestamp, p.Name()), nil
}

// Bars returns the last n daily bars, oldest first
func (p *AlpacaProvider) Bars(ctx context.Context, symbol string, n int) ([]models.HistoricalBar, error) {
	if n <= 0 {
		return nil, errors.New("bar count must be positive")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(symbol)
	end := p.now()
	// Calendar days cover weekends and holidays
	start := end.AddDate(0, 0, -(n*2 + 7))

	bars, err := p.dataClient.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get bars for %s: %w", symbol, err)
	}

	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}

	result := make([]models.HistoricalBar, 0, len(bars))
	for _, bar := range bars {
		result = append(result, models.HistoricalBar{
			Close:     decimal.NewFromFloat(bar.Close).Round(2),
			Volume:    int64(bar.Volume),
			Timestamp: bar.Timestamp,
		})
	}

	return result, nil
}
