package prediction

import (
	"testing"

	"ai-exchange/config"
	"ai-exchange/models"
)

func TestDefaultStrategy_DetermineTrend(t *testing.T) {
	strategy := NewDefaultStrategy()

	tests := []struct {
		name        string
		maSpread    float64
		volumeTrend float64
		confidence  int
		expected    models.Trend
	}{
		{"bullish on rising volume", 1.2, 10, 60, models.TrendBullish},
		{"bearish on falling volume", -1.2, -10, 60, models.TrendBearish},
		{"exactly at threshold", 0.5, 10, 60, models.TrendNeutral},
		{"bullish spread on falling volume", 1.2, -10, 60, models.TrendNeutral},
		{"bearish spread on rising volume", -1.2, 10, 60, models.TrendNeutral},
		{"flat volume", 2, 0, 60, models.TrendNeutral},
		{"low confidence doesn't affect default", 1.2, 10, 5, models.TrendBullish},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := strategy.DetermineTrend(tt.maSpread, tt.volumeTrend, tt.confidence)
			if result != tt.expected {
				t.Errorf("DetermineTrend(%v, %v, %d) = %s, want %s", tt.maSpread, tt.volumeTrend, tt.confidence, result, tt.expected)
			}
		})
	}
}

func TestConservativeStrategy_DetermineTrend(t *testing.T) {
	strategy := NewConservativeStrategy()

	tests := []struct {
		name        string
		maSpread    float64
		volumeTrend float64
		confidence  int
		expected    models.Trend
	}{
		{"bullish above conservative threshold", 1.5, 10, 60, models.TrendBullish},
		{"above default but below conservative", 0.8, 10, 60, models.TrendNeutral},
		{"bearish above conservative threshold", -1.5, -10, 60, models.TrendBearish},
		{"exactly at confidence floor", 1.5, 10, 40, models.TrendBullish},
		{"just below confidence floor", 1.5, 10, 39, models.TrendNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := strategy.DetermineTrend(tt.maSpread, tt.volumeTrend, tt.confidence)
			if result != tt.expected {
				t.Errorf("DetermineTrend(%v, %v, %d) = %s, want %s", tt.maSpread, tt.volumeTrend, tt.confidence, result, tt.expected)
			}
		})
	}
}

func TestAggressiveStrategy_DetermineTrend(t *testing.T) {
	strategy := NewAggressiveStrategy()

	if got := strategy.DetermineTrend(0.3, 1, 10); got != models.TrendBullish {
		t.Errorf("expected bullish above 0.25%%, got %s", got)
	}
	if got := NewDefaultStrategy().DetermineTrend(0.3, 1, 10); got != models.TrendNeutral {
		t.Errorf("default strategy should stay neutral at 0.3%%, got %s", got)
	}
}

func TestCustomStrategy(t *testing.T) {
	strategy := NewCustomStrategy(2, 50)

	if got := strategy.DetermineTrend(2.5, 5, 55); got != models.TrendBullish {
		t.Errorf("expected bullish, got %s", got)
	}
	if got := strategy.DetermineTrend(2.5, 5, 45); got != models.TrendNeutral {
		t.Errorf("expected neutral below confidence floor, got %s", got)
	}
	if strategy.Name() != "custom" {
		t.Errorf("Name() = %s, want custom", strategy.Name())
	}
}

func TestStrategyFromName(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"default", "default"},
		{"conservative", "conservative"},
		{"aggressive", "aggressive"},
		{"unknown", "default"},
		{"", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StrategyFromName(tt.name).Name(); got != tt.expected {
				t.Errorf("StrategyFromName(%q).Name() = %s, want %s", tt.name, got, tt.expected)
			}
		})
	}
}

func TestStrategyFromConfig(t *testing.T) {
	cfg := config.PredictionConfig{Strategy: "custom", MAThresholdPercent: 1.5, MinConfidence: 30}
	strategy, ok := StrategyFromConfig(cfg).(*CustomStrategy)
	if !ok {
		t.Fatalf("expected *CustomStrategy, got %T", StrategyFromConfig(cfg))
	}
	if strategy.Threshold != 1.5 || strategy.MinConfidence != 30 {
		t.Errorf("unexpected custom strategy %+v", strategy)
	}

	if got := StrategyFromConfig(config.PredictionConfig{Strategy: "aggressive"}).Name(); got != "aggressive" {
		t.Errorf("Name() = %s, want aggressive", got)
	}
}
