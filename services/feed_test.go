package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"ai-exchange/config"
	"ai-exchange/models"
	"ai-exchange/observability"
)

// mockProvider is a scriptable MarketDataProvider
type mockProvider struct {
	mu        sync.Mutex
	quoteErr  error
	barsErr   error
	bars      []models.HistoricalBar
	price     decimal.Decimal
	quoteHits int
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Quote(ctx context.Context, symbol string) (models.PricePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quoteHits++
	if m.quoteErr != nil {
		return models.PricePoint{}, m.quoteErr
	}
	return models.NewPricePoint(symbol, m.price, m.price, 1000, testEpoch, "mock"), nil
}

func (m *mockProvider) Bars(ctx context.Context, symbol string, n int) ([]models.HistoricalBar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.barsErr != nil {
		return nil, m.barsErr
	}
	return m.bars, nil
}

func (m *mockProvider) setQuoteErr(err error) {
	m.mu.Lock()
	m.quoteErr = err
	m.mu.Unlock()
}

func newTestFeed(t *testing.T, provider MarketDataProvider) (*Feed, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	feed := NewFeed(config.FeedConfig{MaxMovePercent: 2},
		WithProvider(provider),
		WithClock(fixedClock(testEpoch)),
		WithBreakers(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)),
		WithFeedMetrics(metrics),
	)
	return feed, metrics
}

func TestNewFeed_UnconfiguredIsSynthetic(t *testing.T) {
	feed := NewFeed(config.FeedConfig{},
		WithClock(fixedClock(testEpoch)),
		WithFeedMetrics(observability.NewMetrics(prometheus.NewRegistry())),
	)

	status := feed.Status()
	if status.Configured {
		t.Error("expected unconfigured feed")
	}
	if status.Provider != models.SourceSynthetic {
		t.Errorf("expected synthetic provider, got %s", status.Provider)
	}

	point, err := feed.GetPrice(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !point.IsSynthetic() {
		t.Error("expected synthetic price point")
	}
}

func TestProviderFromConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.FeedConfig
		want string
	}{
		{"unconfigured", config.FeedConfig{}, ""},
		{"alpaca without secret", config.FeedConfig{Provider: config.ProviderAlpaca, APIKey: "k"}, ""},
		{"alpaca", config.FeedConfig{Provider: config.ProviderAlpaca, APIKey: "k", APISecret: "s"}, config.ProviderAlpaca},
		{"alphavantage", config.FeedConfig{Provider: config.ProviderAlphaVantage, APIKey: "k"}, config.ProviderAlphaVantage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := providerFromConfig(tt.cfg)
			if tt.want == "" {
				if p != nil {
					t.Errorf("expected no provider, got %s", p.Name())
				}
				return
			}
			if p == nil || p.Name() != tt.want {
				t.Errorf("expected provider %s, got %v", tt.want, p)
			}
		})
	}
}

func TestFeed_GetPrice_Provider(t *testing.T) {
	provider := &mockProvider{price: decimal.NewFromInt(500)}
	feed, _ := newTestFeed(t, provider)

	point, err := feed.GetPrice(context.Background(), " nvda ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if point.Source != "mock" || !point.Price.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected provider point, got %+v", point)
	}
	if point.Symbol != "NVDA" {
		t.Errorf("expected normalised symbol, got %s", point.Symbol)
	}
	if feed.Status().Degraded {
		t.Error("feed should not be degraded")
	}
}

func TestFeed_GetPrice_EmptySymbol(t *testing.T) {
	feed, _ := newTestFeed(t, nil)
	_, err := feed.GetPrice(context.Background(), "  ")
	if !errors.Is(err, models.ErrInvalidIntent) {
		t.Errorf("expected ErrInvalidIntent, got %v", err)
	}
}

func TestFeed_FallbackAndRecovery(t *testing.T) {
	provider := &mockProvider{price: decimal.NewFromInt(500), quoteErr: errors.New("connection refused")}
	feed, metrics := newTestFeed(t, provider)
	ctx := context.Background()

	point, err := feed.GetPrice(ctx, "NVDA")
	if err != nil {
		t.Fatalf("provider failure must not surface, got %v", err)
	}
	if !point.IsSynthetic() {
		t.Error("expected synthetic fallback point")
	}

	status := feed.Status()
	if !status.Degraded {
		t.Error("expected degraded status")
	}
	if status.LastError == "" {
		t.Error("expected last error to be recorded")
	}
	if got := testutil.ToFloat64(metrics.FeedDegraded); got != 1 {
		t.Errorf("expected degraded gauge 1, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.FeedFallbacksTotal.WithLabelValues("mock", "quote")); got != 1 {
		t.Errorf("expected 1 fallback, got %v", got)
	}

	provider.setQuoteErr(nil)
	point, _ = feed.GetPrice(ctx, "NVDA")
	if point.IsSynthetic() {
		t.Error("expected provider point after recovery")
	}
	if feed.Status().Degraded {
		t.Error("expected degraded flag to clear after success")
	}
	if got := testutil.ToFloat64(metrics.FeedDegraded); got != 0 {
		t.Errorf("expected degraded gauge 0, got %v", got)
	}
}

func TestFeed_OpenBreakerFallsBack(t *testing.T) {
	provider := &mockProvider{quoteErr: errors.New("503")}
	feed, _ := newTestFeed(t, provider)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = feed.GetPrice(ctx, "NVDA")
	}
	hits := provider.quoteHits

	point, err := feed.GetPrice(ctx, "NVDA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !point.IsSynthetic() {
		t.Error("expected synthetic point while breaker is open")
	}
	if provider.quoteHits != hits {
		t.Error("open breaker should not call the provider")
	}
	if !strings.Contains(feed.Status().LastError, "circuit breaker open") {
		t.Errorf("expected open breaker in last error, got %q", feed.Status().LastError)
	}
}

func TestFeed_GetHistory(t *testing.T) {
	bars := []models.HistoricalBar{
		{Close: decimal.NewFromInt(10), Volume: 5},
		{Close: decimal.NewFromInt(11), Volume: 6},
	}
	provider := &mockProvider{bars: bars}
	feed, _ := newTestFeed(t, provider)
	ctx := context.Background()

	got, err := feed.GetHistory(ctx, "NVDA", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || !got[1].Close.Equal(decimal.NewFromInt(11)) {
		t.Errorf("expected provider bars, got %v", got)
	}

	provider.bars = nil
	got, err = feed.GetHistory(ctx, "NVDA", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 30 {
		t.Errorf("expected 30 synthetic bars on empty provider history, got %d", len(got))
	}
	if !feed.Status().Degraded {
		t.Error("expected degraded after empty history")
	}

	got, err = feed.GetHistory(ctx, "NVDA", 0)
	if err != nil || got != nil {
		t.Errorf("expected nil, nil for n=0, got %v, %v", got, err)
	}
}

func TestFeed_GetPrices(t *testing.T) {
	feed, _ := newTestFeed(t, nil)

	prices := feed.GetPrices(context.Background(), []string{"NVDA", "", "amd"})
	if len(prices) != 2 {
		t.Fatalf("expected 2 prices, got %d", len(prices))
	}
	if _, ok := prices["AMD"]; !ok {
		t.Error("expected AMD keyed by upper-case symbol")
	}
}

func TestFeed_SubscribeAndPoll(t *testing.T) {
	feed, _ := newTestFeed(t, nil)
	ctx := context.Background()

	var all, filtered []string
	unsubAll := feed.Subscribe(nil, func(p models.PricePoint) { all = append(all, p.Symbol) })
	unsubOne := feed.Subscribe([]string{"msft"}, func(p models.PricePoint) { filtered = append(filtered, p.Symbol) })

	prices := feed.Poll(ctx, []string{"NVDA", "MSFT", "AMD"})
	if len(prices) != 3 {
		t.Fatalf("expected 3 prices, got %d", len(prices))
	}
	if want := []string{"AMD", "MSFT", "NVDA"}; len(all) != 3 || all[0] != want[0] || all[2] != want[2] {
		t.Errorf("expected ticks in symbol order %v, got %v", want, all)
	}
	if len(filtered) != 1 || filtered[0] != "MSFT" {
		t.Errorf("expected only MSFT, got %v", filtered)
	}

	unsubOne()
	unsubOne()
	feed.Poll(ctx, []string{"MSFT"})
	if len(filtered) != 1 {
		t.Errorf("expected no ticks after unsubscribe, got %v", filtered)
	}
	if len(all) != 4 {
		t.Errorf("expected remaining subscriber to keep receiving, got %d", len(all))
	}
	unsubAll()
}

func TestFeed_StatusSince(t *testing.T) {
	now := testEpoch
	provider := &mockProvider{quoteErr: errors.New("down")}
	feed := NewFeed(config.FeedConfig{},
		WithProvider(provider),
		WithClock(func() time.Time { return now }),
		WithBreakers(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)),
		WithFeedMetrics(observability.NewMetrics(prometheus.NewRegistry())),
	)

	now = testEpoch.Add(time.Minute)
	_, _ = feed.GetPrice(context.Background(), "NVDA")
	since := feed.Status().Since

	now = testEpoch.Add(2 * time.Minute)
	_, _ = feed.GetPrice(context.Background(), "NVDA")

	if !feed.Status().Since.Equal(since) {
		t.Error("Since should mark the start of the degraded period")
	}
	if !since.Equal(testEpoch.Add(time.Minute)) {
		t.Errorf("Since = %v, want %v", since, testEpoch.Add(time.Minute))
	}
}
