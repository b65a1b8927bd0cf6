package app

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"ai-exchange/config"
	"ai-exchange/ledger"
	"ai-exchange/models"
	"ai-exchange/observability"
	"ai-exchange/orderbook"
	"ai-exchange/prediction"
	"ai-exchange/services"
	"ai-exchange/trading"
)

// ErrNoJournal is returned by journal reads when no database is configured
var ErrNoJournal = errors.New("trade journal not configured")

// Journal is the trade journal as seen by the engine
type Journal interface {
	trading.Journal
	Close()
	Health(ctx context.Context) error
	GetTrades(ctx context.Context, limit int) ([]models.Trade, error)
}

// App owns the symbol universe and the latest market snapshots, and drives
// the refresh cycle and trade entry point. Snapshots are replaced wholesale
// and never mutated in place.
type App struct {
	cfg       *config.Config
	feed      *services.Feed
	news      services.NewsSource
	journal   Journal
	builder   *orderbook.Builder
	predictor *prediction.Predictor
	ledger    *ledger.Ledger
	trader    *trading.Coordinator
	metrics   *observability.Metrics
	now       func() time.Time
	log       *slog.Logger

	refreshing atomic.Bool

	mu          sync.RWMutex
	selected    string
	prices      map[string]models.PricePoint
	books       map[string]*models.OrderBook
	predictions map[string]models.StockPrediction
	history     map[string][]models.HistoricalBar
	lastRefresh time.Time

	tickerMu  sync.RWMutex
	headlines []models.NewsArticle
	tickerPos int
	tickerAt  time.Time
}

// Option configures an App
type Option func(*App)

// WithClock sets the engine clock
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		if now != nil {
			a.now = now
		}
	}
}

// WithMetrics sets the metrics sink shared by the engine components
func WithMetrics(m *observability.Metrics) Option {
	return func(a *App) {
		a.metrics = m
	}
}

// New creates the engine. A nil feed builds one from cfg.Feed stepping once
// per refresh interval, a nil news
// source writes synthetic headlines from the engine's own state, and a nil
// journal disables trade mirroring.
func New(cfg *config.Config, feed *services.Feed, news services.NewsSource, journal Journal, opts ...Option) *App {
	a := &App{
		cfg:         cfg,
		journal:     journal,
		now:         time.Now,
		log:         observability.WithComponent("engine"),
		prices:      make(map[string]models.PricePoint),
		books:       make(map[string]*models.OrderBook),
		predictions: make(map[string]models.StockPrediction),
		history:     make(map[string][]models.HistoricalBar),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = observability.GetMetrics()
	}

	if feed == nil {
		feed = services.NewFeed(cfg.Feed,
			services.WithClock(a.now),
			services.WithTickPeriod(cfg.Engine.RefreshInterval()),
			services.WithFeedMetrics(a.metrics))
	}
	a.feed = feed

	if news == nil {
		news = services.NewSyntheticNews(a.marketSnapshot, a.now)
	}
	a.news = news

	a.builder = orderbook.NewBuilder(a.now, a.metrics)
	a.predictor = prediction.NewPredictor(cfg.Prediction)
	a.ledger = ledger.New(decimal.NewFromFloat(cfg.Engine.InitialCash), a.now).WithMetrics(a.metrics)

	traderOpts := []trading.Option{
		trading.WithMetrics(a.metrics),
		trading.WithClock(a.now),
		trading.WithRecentLimit(cfg.Engine.RecentTradesLimit),
	}
	if journal != nil {
		traderOpts = append(traderOpts, trading.WithJournal(journal))
	}
	a.trader = trading.NewCoordinator(a.ledger, traderOpts...)

	a.selected = strings.ToUpper(strings.TrimSpace(cfg.Engine.DefaultSymbol))
	if !contains(cfg.Engine.WatchList, a.selected) && len(cfg.Engine.WatchList) > 0 {
		a.selected = cfg.Engine.WatchList[0]
	}

	return a
}

// Startup runs the first refresh so reads have data before the first tick
func (a *App) Startup(ctx context.Context) error {
	a.log.Info("Engine starting",
		"feed", a.feed.Status().Provider,
		"symbols", len(a.Universe()),
		"strategy", a.predictor.Strategy().Name(),
		"journal", a.journal != nil)

	if err := a.RefreshMarket(ctx); err != nil {
		return err
	}
	return a.RotateTicker(ctx)
}

// Shutdown releases the journal
func (a *App) Shutdown(ctx context.Context) {
	if a.journal != nil {
		a.journal.Close()
	}
}

// Universe returns held symbols and the watch list, sorted and de-duplicated
func (a *App) Universe() []string {
	seen := make(map[string]bool)
	var symbols []string
	for _, s := range append(a.ledger.Symbols(), a.cfg.Engine.WatchList...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// InUniverse reports whether symbol is tradable
func (a *App) InUniverse(symbol string) bool {
	return contains(a.Universe(), strings.ToUpper(strings.TrimSpace(symbol)))
}

// SelectSymbol makes symbol the one whose order book is rebuilt every cycle
func (a *App) SelectSymbol(symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return models.InvalidIntentf("symbol is required")
	}
	if !a.InUniverse(symbol) {
		return models.InvalidIntentf("%s is not in the trading universe", symbol)
	}

	a.mu.Lock()
	a.selected = symbol
	price, hasPrice := a.prices[symbol]
	a.mu.Unlock()

	if hasPrice {
		if _, err := a.cacheBook(price); err != nil {
			a.log.Warn("Failed to build order book", "symbol", symbol, "error", err)
		}
	}
	a.log.Info("Symbol selected", "symbol", symbol)
	return nil
}

// SelectedSymbol returns the currently selected symbol
func (a *App) SelectedSymbol() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.selected
}

// Portfolio returns the marked portfolio snapshot
func (a *App) Portfolio() models.Portfolio {
	return a.ledger.Portfolio()
}

// Positions returns the open positions
func (a *App) Positions() []models.Position {
	return a.ledger.Positions()
}

// Prices returns a copy of the latest price samples
func (a *App) Prices() map[string]models.PricePoint {
	a.mu.RLock()
	defer a.mu.RUnlock()

	prices := make(map[string]models.PricePoint, len(a.prices))
	for k, v := range a.prices {
		prices[k] = v
	}
	return prices
}

// Price returns the latest sample for symbol
func (a *App) Price(symbol string) (models.PricePoint, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.prices[strings.ToUpper(strings.TrimSpace(symbol))]
	return p, ok
}

// OrderBook returns the book for symbol at the latest price. A non-positive
// levels uses the configured depth; only books at that depth are cached.
func (a *App) OrderBook(ctx context.Context, symbol string, levels int) (*models.OrderBook, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, models.InvalidIntentf("symbol is required")
	}
	if levels <= 0 {
		levels = a.cfg.Engine.OrderBookLevels
	}

	price, ok := a.Price(symbol)
	if !ok {
		var err error
		if price, err = a.feed.GetPrice(ctx, symbol); err != nil {
			return nil, err
		}
	}

	if levels != a.cfg.Engine.OrderBookLevels {
		return a.builder.Build(symbol, price.Price, levels, a.cfg.Engine.SpreadBps)
	}

	a.mu.RLock()
	cached, ok := a.books[symbol]
	a.mu.RUnlock()
	if ok && cached.ReferencePrice.Equal(price.Price) {
		return cached, nil
	}
	return a.cacheBook(price)
}

// Predictions returns a copy of the latest predictions
func (a *App) Predictions() map[string]models.StockPrediction {
	a.mu.RLock()
	defer a.mu.RUnlock()

	predictions := make(map[string]models.StockPrediction, len(a.predictions))
	for k, v := range a.predictions {
		predictions[k] = v
	}
	return predictions
}

// Prediction returns the latest prediction for symbol
func (a *App) Prediction(symbol string) (models.StockPrediction, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.predictions[strings.ToUpper(strings.TrimSpace(symbol))]
	return p, ok
}

// Trades returns up to limit trades executed this session, newest first
func (a *App) Trades(limit int) []models.Trade {
	return a.trader.RecentTrades(limit)
}

// JournalTrades returns up to limit trades from the journal
func (a *App) JournalTrades(ctx context.Context, limit int) ([]models.Trade, error) {
	if a.journal == nil {
		return nil, ErrNoJournal
	}
	return a.journal.GetTrades(ctx, limit)
}

// JournalHealth pings the journal. It returns ErrNoJournal when none is configured.
func (a *App) JournalHealth(ctx context.Context) error {
	if a.journal == nil {
		return ErrNoJournal
	}
	return a.journal.Health(ctx)
}

// FeedStatus returns the price feed provider status
func (a *App) FeedStatus() services.FeedStatus {
	return a.feed.Status()
}

// Subscribe forwards feed ticks for symbols to onTick until the returned
// function is called
func (a *App) Subscribe(symbols []string, onTick func(models.PricePoint)) func() {
	return a.feed.Subscribe(symbols, onTick)
}

// LastRefresh returns when the last market refresh completed
func (a *App) LastRefresh() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastRefresh
}

// ExecuteTrade runs intent against the current book of its symbol. On
// success the position is marked at the latest price right away.
func (a *App) ExecuteTrade(ctx context.Context, intent models.TradeIntent) models.TradeResult {
	intent = intent.Normalize()
	if err := trading.Validate(intent); err != nil {
		return models.TradeFailed(err)
	}
	if !a.InUniverse(intent.Symbol) {
		return models.TradeFailed(models.InvalidIntentf("%s is not in the trading universe", intent.Symbol))
	}

	price, ok := a.Price(intent.Symbol)
	if !ok {
		return models.TradeFailed(models.InvalidIntentf("no price for %s yet", intent.Symbol))
	}

	book, err := a.OrderBook(ctx, intent.Symbol, 0)
	if err != nil {
		return models.TradeFailed(models.InvalidIntentf("no order book for %s: %v", intent.Symbol, err))
	}

	result := a.trader.Execute(ctx, intent, book)
	if result.Success {
		a.ledger.Mark(intent.Symbol, price.Price)
	}
	return result
}

// cacheBook builds the configured-depth book at price and stores it
func (a *App) cacheBook(price models.PricePoint) (*models.OrderBook, error) {
	book, err := a.builder.Build(price.Symbol, price.Price, a.cfg.Engine.OrderBookLevels, a.cfg.Engine.SpreadBps)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.books[book.Symbol] = book
	a.mu.Unlock()
	return book, nil
}

func (a *App) marketSnapshot() (map[string]models.StockPrediction, map[string]models.PricePoint) {
	return a.Predictions(), a.Prices()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
