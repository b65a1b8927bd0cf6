package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"ai-exchange/config"
)

// mockAlpacaClient implements alpacaDataClient for testing
type mockAlpacaClient struct {
	snapshot    *marketdata.Snapshot
	snapshotErr error
	bars        []marketdata.Bar
	barsErr     error
	lastBarsReq marketdata.GetBarsRequest
}

func (m *mockAlpacaClient) GetSnapshot(symbol string, req marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error) {
	return m.snapshot, m.snapshotErr
}

func (m *mockAlpacaClient) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	m.lastBarsReq = req
	return m.bars, m.barsErr
}

func newTestAlpacaProvider(client *mockAlpacaClient) *AlpacaProvider {
	return &AlpacaProvider{dataClient: client, now: fixedClock(testEpoch)}
}

func TestNewAlpacaProvider(t *testing.T) {
	provider := NewAlpacaProvider(config.FeedConfig{
		Provider:  config.ProviderAlpaca,
		APIKey:    "test-key",
		APISecret: "test-secret",
	})
	if provider == nil {
		t.Fatal("NewAlpacaProvider should not return nil")
	}
	if provider.dataClient == nil {
		t.Error("dataClient should not be nil")
	}
	if provider.Name() != config.ProviderAlpaca {
		t.Errorf("Name() = %s, want %s", provider.Name(), config.ProviderAlpaca)
	}
}

func TestAlpacaProvider_Quote(t *testing.T) {
	client := &mockAlpacaClient{
		snapshot: &marketdata.Snapshot{
			LatestTrade:  &marketdata.Trade{Price: 105.5, Timestamp: testEpoch},
			DailyBar:     &marketdata.Bar{Open: 101, Volume: 123456},
			PrevDailyBar: &marketdata.Bar{Close: 100},
		},
	}
	provider := newTestAlpacaProvider(client)

	point, err := provider.Quote(context.Background(), "nvda")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if point.Symbol != "NVDA" {
		t.Errorf("Symbol = %s, want NVDA", point.Symbol)
	}
	if !point.Price.Equal(decimal.NewFromFloat(105.5)) {
		t.Errorf("Price = %s, want 105.5", point.Price)
	}
	if !point.Change.Equal(decimal.NewFromFloat(5.5)) {
		t.Errorf("Change = %s, want 5.5", point.Change)
	}
	if !point.ChangePercent.Equal(decimal.NewFromFloat(5.5)) {
		t.Errorf("ChangePercent = %s, want 5.5", point.ChangePercent)
	}
	if point.Volume != 123456 {
		t.Errorf("Volume = %d, want 123456", point.Volume)
	}
	if point.Source != config.ProviderAlpaca {
		t.Errorf("Source = %s, want alpaca", point.Source)
	}
}

func TestAlpacaProvider_Quote_Errors(t *testing.T) {
	tests := []struct {
		name   string
		client *mockAlpacaClient
	}{
		{"client error", &mockAlpacaClient{snapshotErr: errors.New("forbidden")}},
		{"nil snapshot", &mockAlpacaClient{}},
		{"no latest trade", &mockAlpacaClient{snapshot: &marketdata.Snapshot{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := newTestAlpacaProvider(tt.client).Quote(context.Background(), "NVDA"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestAlpacaProvider_Quote_NoPreviousBar(t *testing.T) {
	client := &mockAlpacaClient{
		snapshot: &marketdata.Snapshot{
			LatestTrade: &marketdata.Trade{Price: 50, Timestamp: testEpoch},
		},
	}
	point, err := newTestAlpacaProvider(client).Quote(context.Background(), "AMD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !point.Change.IsZero() {
		t.Errorf("expected zero change without a reference bar, got %s", point.Change)
	}
}

func TestAlpacaProvider_Bars(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 2, d, 0, 0, 0, 0, time.UTC) }
	client := &mockAlpacaClient{
		bars: []marketdata.Bar{
			{Timestamp: day(2), Close: 10, Volume: 100},
			{Timestamp: day(3), Close: 11, Volume: 110},
			{Timestamp: day(4), Close: 12, Volume: 120},
		},
	}
	provider := newTestAlpacaProvider(client)

	bars, err := provider.Bars(context.Background(), "NVDA", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if !bars[0].Close.Equal(decimal.NewFromInt(11)) || !bars[1].Close.Equal(decimal.NewFromInt(12)) {
		t.Errorf("expected the most recent bars, got %v", bars)
	}
	if client.lastBarsReq.TimeFrame != marketdata.OneDay {
		t.Errorf("expected daily timeframe, got %v", client.lastBarsReq.TimeFrame)
	}
	if !client.lastBarsReq.End.Equal(testEpoch) {
		t.Errorf("expected request to end now, got %v", client.lastBarsReq.End)
	}
}

func TestAlpacaProvider_Bars_Errors(t *testing.T) {
	provider := newTestAlpacaProvider(&mockAlpacaClient{barsErr: errors.New("rate limited")})
	if _, err := provider.Bars(context.Background(), "NVDA", 5); err == nil {
		t.Error("expected client error to surface")
	}
	if _, err := provider.Bars(context.Background(), "NVDA", 0); err == nil {
		t.Error("expected error for non-positive bar count")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := provider.Bars(ctx, "NVDA", 5); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
