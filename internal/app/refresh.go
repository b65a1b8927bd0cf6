package app

import (
	"context"
	"errors"
	"time"

	"ai-exchange/models"
	"ai-exchange/scheduler"
)

// Task names, also used as metric labels
const (
	TaskMarketRefresh  = "market-refresh"
	TaskTickerRotation = "ticker-rotation"
)

// ErrRefreshInProgress is returned when a market refresh is requested while
// another one is running
var ErrRefreshInProgress = errors.New("market refresh already in progress")

// ScheduledTask pairs an engine task with its interval
type ScheduledTask struct {
	Interval time.Duration
	Task     scheduler.Task
}

// Tasks returns the engine's periodic tasks. A skipped market refresh is not
// reported as a task failure.
func (a *App) Tasks() []ScheduledTask {
	return []ScheduledTask{
		{
			Interval: a.cfg.Engine.RefreshInterval(),
			Task: scheduler.TaskFunc(TaskMarketRefresh, func(ctx context.Context) error {
				if err := a.RefreshMarket(ctx); err != nil && !errors.Is(err, ErrRefreshInProgress) {
					return err
				}
				return nil
			}),
		},
		{
			Interval: time.Duration(a.cfg.Engine.TickerRotationMillis) * time.Millisecond,
			Task:     scheduler.TaskFunc(TaskTickerRotation, a.RotateTicker),
		},
	}
}

// RefreshMarket runs one refresh cycle: fetch prices for the universe, extend
// the history buffers, rebuild the cached books, mark the portfolio and
// regenerate every prediction. Only one cycle runs at a time.
func (a *App) RefreshMarket(ctx context.Context) error {
	if !a.refreshing.CompareAndSwap(false, true) {
		a.metrics.RecordRefreshSkipped(TaskMarketRefresh)
		a.log.Debug("Market refresh skipped, one is already running")
		return ErrRefreshInProgress
	}
	defer a.refreshing.Store(false)

	start := time.Now()
	universe := a.Universe()

	prices := a.feed.Poll(ctx, universe)
	if err := ctx.Err(); err != nil {
		return err
	}

	history := a.extendHistory(ctx, universe, prices)
	books := a.rebuildBooks(prices)
	portfolio := a.ledger.MarkToMarket(prices)
	predictions := a.predict(universe, prices, history)

	a.mu.Lock()
	a.prices = prices
	a.history = history
	a.books = books
	a.predictions = predictions
	a.lastRefresh = a.now()
	a.mu.Unlock()

	a.log.Info("Market refreshed",
		"symbols", len(prices),
		"books", len(books),
		"predictions", len(predictions),
		"portfolio_value", models.FormatMoney(portfolio.TotalValue),
		"duration", time.Since(start))
	return nil
}

// extendHistory seeds a symbol's buffer from the feed the first time it is
// seen, then appends each new tick, trimmed to the look-back window
func (a *App) extendHistory(ctx context.Context, universe []string, prices map[string]models.PricePoint) map[string][]models.HistoricalBar {
	lookback := a.cfg.Engine.LookbackBars

	a.mu.RLock()
	previous := a.history
	a.mu.RUnlock()

	history := make(map[string][]models.HistoricalBar, len(universe))
	for _, symbol := range universe {
		bars, seeded := previous[symbol]
		if !seeded {
			seed, err := a.feed.GetHistory(ctx, symbol, lookback)
			if err != nil {
				a.log.Warn("Failed to seed price history", "symbol", symbol, "error", err)
			}
			bars = seed
		}

		next := make([]models.HistoricalBar, len(bars), len(bars)+1)
		copy(next, bars)
		if point, ok := prices[symbol]; ok {
			if n := len(next); n == 0 || point.Timestamp.After(next[n-1].Timestamp) {
				next = append(next, models.HistoricalBar{
					Close:     point.Price,
					Volume:    point.Volume,
					Timestamp: point.Timestamp,
				})
			}
		}
		if len(next) > lookback {
			next = next[len(next)-lookback:]
		}
		history[symbol] = next
	}
	return history
}

// rebuildBooks rebuilds the selected symbol's book and every cached book at
// the new prices. A symbol without a price keeps its last book.
func (a *App) rebuildBooks(prices map[string]models.PricePoint) map[string]*models.OrderBook {
	a.mu.RLock()
	symbols := map[string]bool{a.selected: true}
	books := make(map[string]*models.OrderBook, len(a.books)+1)
	for symbol, book := range a.books {
		symbols[symbol] = true
		books[symbol] = book
	}
	a.mu.RUnlock()

	for symbol := range symbols {
		point, ok := prices[symbol]
		if !ok {
			continue
		}
		book, err := a.builder.Build(symbol, point.Price, a.cfg.Engine.OrderBookLevels, a.cfg.Engine.SpreadBps)
		if err != nil {
			a.log.Warn("Failed to build order book", "symbol", symbol, "error", err)
			continue
		}
		books[symbol] = book
	}
	return books
}

// predict regenerates predictions for every priced symbol. Bad history for
// one symbol yields a neutral prediction for it and never stops the batch.
func (a *App) predict(universe []string, prices map[string]models.PricePoint, history map[string][]models.HistoricalBar) map[string]models.StockPrediction {
	timer := a.metrics.NewTimer()
	defer timer.ObservePredictionBatch()

	generatedAt := a.now()
	predictions := make(map[string]models.StockPrediction, len(universe))
	for _, symbol := range universe {
		point, ok := prices[symbol]
		if !ok {
			continue
		}
		p := a.predictor.Predict(symbol, history[symbol], point.Price)
		p.GeneratedAt = generatedAt
		predictions[symbol] = p
		a.metrics.RecordPrediction(string(p.Trend), p.Confidence)
	}
	return predictions
}
