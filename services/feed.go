package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"ai-exchange/config"
	"ai-exchange/models"
	"ai-exchange/observability"
)

// FeedStatus describes the provider boundary as seen by the engine
type FeedStatus struct {
	Provider   string    `json:"provider"`
	Configured bool      `json:"configured"`
	Degraded   bool      `json:"degraded"`
	LastError  string    `json:"last_error,omitempty"`
	Since      time.Time `json:"since"`
}

// Feed serves price samples and history, from a live provider when one is
// configured and from the synthetic generator otherwise. A failing provider
// call falls back to synthetic data for that call and marks the feed degraded
// until a provider call succeeds again.
type Feed struct {
	provider  MarketDataProvider
	synthetic *SyntheticGenerator
	breakers  *CircuitBreakerRegistry
	metrics   *observability.Metrics
	now       func() time.Time

	mu     sync.RWMutex
	status FeedStatus

	subMu   sync.Mutex
	subs    map[uint64]subscription
	nextSub uint64
}

type subscription struct {
	symbols map[string]bool // empty means every symbol
	onTick  func(models.PricePoint)
}

// FeedOption configures a Feed
type FeedOption func(*feedOptions)

type feedOptions struct {
	provider   MarketDataProvider
	hasProv    bool
	tickPeriod time.Duration
	now        func() time.Time
	breakers   *CircuitBreakerRegistry
	metrics    *observability.Metrics
}

// WithProvider overrides the provider built from FeedConfig. A nil provider
// forces synthetic data.
func WithProvider(p MarketDataProvider) FeedOption {
	return func(o *feedOptions) {
		o.provider = p
		o.hasProv = true
	}
}

// WithTickPeriod sets the synthetic walk step
func WithTickPeriod(d time.Duration) FeedOption {
	return func(o *feedOptions) { o.tickPeriod = d }
}

// WithClock injects the time source
func WithClock(now func() time.Time) FeedOption {
	return func(o *feedOptions) { o.now = now }
}

// WithBreakers sets the circuit breaker registry
func WithBreakers(r *CircuitBreakerRegistry) FeedOption {
	return func(o *feedOptions) { o.breakers = r }
}

// WithFeedMetrics sets the metrics sink
func WithFeedMetrics(m *observability.Metrics) FeedOption {
	return func(o *feedOptions) { o.metrics = m }
}

// NewFeed creates a Feed. The zero FeedConfig is valid and yields a
// synthetic-only feed.
func NewFeed(cfg config.FeedConfig, opts ...FeedOption) *Feed {
	o := feedOptions{
		tickPeriod: DefaultTickPeriod,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.breakers == nil {
		o.breakers = GetGlobalRegistry()
	}
	if o.metrics == nil {
		o.metrics = observability.GetMetrics()
	}

	provider := o.provider
	if !o.hasProv {
		provider = providerFromConfig(cfg)
	}

	f := &Feed{
		provider:  provider,
		synthetic: NewSyntheticGenerator(cfg.MaxMovePercent, o.tickPeriod, o.now),
		breakers:  o.breakers,
		metrics:   o.metrics,
		now:       o.now,
		subs:      make(map[uint64]subscription),
	}
	f.status = FeedStatus{
		Provider:   f.providerName(),
		Configured: provider != nil,
		Since:      o.now(),
	}
	f.metrics.SetFeedDegraded(false)
	return f
}

func providerFromConfig(cfg config.FeedConfig) MarketDataProvider {
	if !cfg.IsLive() {
		return nil
	}
	switch cfg.Provider {
	case config.ProviderAlpaca:
		return NewAlpacaProvider(cfg)
	case config.ProviderAlphaVantage:
		return NewAlphaVantageProvider(cfg)
	}
	return nil
}

func (f *Feed) providerName() string {
	if f.provider == nil {
		return models.SourceSynthetic
	}
	return f.provider.Name()
}

// Synthetic exposes the fallback generator
func (f *Feed) Synthetic() *SyntheticGenerator {
	return f.synthetic
}

// GetPrice returns the latest sample for symbol. Provider failures never
// surface here; the synthetic sample is returned instead.
func (f *Feed) GetPrice(ctx context.Context, symbol string) (models.PricePoint, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return models.PricePoint{}, models.InvalidIntentf("symbol is required")
	}
	if f.provider == nil {
		return f.synthetic.Price(symbol), nil
	}

	start := time.Now()
	point, err := executeTyped(ctx, f.breakers, f.provider.Name(), func() (models.PricePoint, error) {
		return f.provider.Quote(ctx, symbol)
	})
	f.metrics.RecordFeedRequest(f.provider.Name(), "quote", time.Since(start))
	if err != nil {
		f.fallback("quote", symbol, err)
		return f.synthetic.Price(symbol), nil
	}

	f.recovered()
	return point, nil
}

// GetPrices returns the latest sample for each symbol. Blank symbols are skipped.
func (f *Feed) GetPrices(ctx context.Context, symbols []string) map[string]models.PricePoint {
	prices := make(map[string]models.PricePoint, len(symbols))
	for _, symbol := range symbols {
		point, err := f.GetPrice(ctx, symbol)
		if err != nil {
			continue
		}
		prices[point.Symbol] = point
	}
	return prices
}

// GetHistory returns up to n bars for symbol, oldest first
func (f *Feed) GetHistory(ctx context.Context, symbol string, n int) ([]models.HistoricalBar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, models.InvalidIntentf("symbol is required")
	}
	if n <= 0 {
		return nil, nil
	}
	if f.provider == nil {
		return f.synthetic.History(symbol, n), nil
	}

	start := time.Now()
	bars, err := executeTyped(ctx, f.breakers, f.provider.Name(), func() ([]models.HistoricalBar, error) {
		return f.provider.Bars(ctx, symbol, n)
	})
	f.metrics.RecordFeedRequest(f.provider.Name(), "bars", time.Since(start))
	if err == nil && len(bars) == 0 {
		err = errors.New("provider returned no bars")
	}
	if err != nil {
		f.fallback("bars", symbol, err)
		return f.synthetic.History(symbol, n), nil
	}

	f.recovered()
	return bars, nil
}

// Subscribe registers onTick for samples of the given symbols (all symbols
// when empty). The returned function removes the subscription.
func (f *Feed) Subscribe(symbols []string, onTick func(models.PricePoint)) func() {
	filter := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			filter[s] = true
		}
	}

	f.subMu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = subscription{symbols: filter, onTick: onTick}
	f.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.subMu.Lock()
			delete(f.subs, id)
			f.subMu.Unlock()
		})
	}
}

// Poll fetches samples for symbols and delivers them to subscribers
// synchronously, in symbol order
func (f *Feed) Poll(ctx context.Context, symbols []string) map[string]models.PricePoint {
	prices := f.GetPrices(ctx, symbols)

	f.subMu.Lock()
	subs := make([]subscription, 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.subMu.Unlock()

	if len(subs) == 0 {
		return prices
	}

	ordered := make([]string, 0, len(prices))
	for symbol := range prices {
		ordered = append(ordered, symbol)
	}
	sort.Strings(ordered)

	for _, symbol := range ordered {
		point := prices[symbol]
		for _, s := range subs {
			if len(s.symbols) == 0 || s.symbols[symbol] {
				s.onTick(point)
			}
		}
	}
	return prices
}

// Status returns the current provider status
func (f *Feed) Status() FeedStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.status
}

func (f *Feed) fallback(operation, symbol string, err error) {
	name := f.provider.Name()
	f.metrics.RecordFeedFallback(name, operation)

	f.mu.Lock()
	wasDegraded := f.status.Degraded
	f.status.Degraded = true
	f.status.LastError = err.Error()
	if !wasDegraded {
		f.status.Since = f.now()
	}
	f.mu.Unlock()

	f.metrics.SetFeedDegraded(true)
	observability.Warn("price feed degraded, using synthetic data",
		"provider", name,
		"operation", operation,
		"symbol", symbol,
		"error", err)
}

func (f *Feed) recovered() {
	f.mu.Lock()
	wasDegraded := f.status.Degraded
	if wasDegraded {
		f.status.Degraded = false
		f.status.LastError = ""
		f.status.Since = f.now()
	}
	f.mu.Unlock()

	if wasDegraded {
		f.metrics.SetFeedDegraded(false)
		observability.Info("price feed recovered", "provider", f.provider.Name())
	}
}
