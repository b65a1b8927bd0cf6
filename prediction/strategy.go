package prediction

import (
	"ai-exchange/config"
	"ai-exchange/models"
)

// TrendStrategy classifies a moving average spread and volume trend into a
// trend call
type TrendStrategy interface {
	// DetermineTrend converts the MA spread (percent), volume trend (percent)
	// and directional confidence into a trend
	DetermineTrend(maSpread, volumeTrend float64, confidence int) models.Trend
	// Name returns the strategy name for logging/display
	Name() string
}

// thresholdTrend is the shared rule: a spread beyond the threshold backed by
// volume moving the same way
func thresholdTrend(maSpread, volumeTrend, threshold float64) models.Trend {
	if maSpread > threshold && volumeTrend > 0 {
		return models.TrendBullish
	}
	if maSpread < -threshold && volumeTrend < 0 {
		return models.TrendBearish
	}
	return models.TrendNeutral
}

// DefaultStrategy uses a 0.5% moving average threshold
type DefaultStrategy struct {
	Threshold float64
}

// NewDefaultStrategy creates a strategy with the standard threshold
func NewDefaultStrategy() *DefaultStrategy {
	return &DefaultStrategy{Threshold: 0.5}
}

func (s *DefaultStrategy) DetermineTrend(maSpread, volumeTrend float64, confidence int) models.Trend {
	return thresholdTrend(maSpread, volumeTrend, s.Threshold)
}

func (s *DefaultStrategy) Name() string {
	return "default"
}

// ConservativeStrategy requires a wider spread and a minimum confidence
type ConservativeStrategy struct {
	Threshold     float64
	MinConfidence int
}

// NewConservativeStrategy creates a conservative strategy with a higher threshold
func NewConservativeStrategy() *ConservativeStrategy {
	return &ConservativeStrategy{
		Threshold:     1.0,
		MinConfidence: 40,
	}
}

func (s *ConservativeStrategy) DetermineTrend(maSpread, volumeTrend float64, confidence int) models.Trend {
	if confidence < s.MinConfidence {
		return models.TrendNeutral
	}
	return thresholdTrend(maSpread, volumeTrend, s.Threshold)
}

func (s *ConservativeStrategy) Name() string {
	return "conservative"
}

// AggressiveStrategy calls trends on a narrower spread
type AggressiveStrategy struct {
	Threshold float64
}

// NewAggressiveStrategy creates an aggressive strategy with a lower threshold
func NewAggressiveStrategy() *AggressiveStrategy {
	return &AggressiveStrategy{Threshold: 0.25}
}

func (s *AggressiveStrategy) DetermineTrend(maSpread, volumeTrend float64, confidence int) models.Trend {
	return thresholdTrend(maSpread, volumeTrend, s.Threshold)
}

func (s *AggressiveStrategy) Name() string {
	return "aggressive"
}

// CustomStrategy allows a configurable threshold and confidence floor
type CustomStrategy struct {
	Threshold     float64
	MinConfidence int
	StrategyName  string
}

// NewCustomStrategy creates a strategy with custom thresholds
func NewCustomStrategy(threshold float64, minConfidence int) *CustomStrategy {
	return &CustomStrategy{
		Threshold:     threshold,
		MinConfidence: minConfidence,
		StrategyName:  "custom",
	}
}

func (s *CustomStrategy) DetermineTrend(maSpread, volumeTrend float64, confidence int) models.Trend {
	if s.MinConfidence > 0 && confidence < s.MinConfidence {
		return models.TrendNeutral
	}
	return thresholdTrend(maSpread, volumeTrend, s.Threshold)
}

func (s *CustomStrategy) Name() string {
	return s.StrategyName
}

// StrategyFromName returns a strategy by name
func StrategyFromName(name string) TrendStrategy {
	switch name {
	case "conservative":
		return NewConservativeStrategy()
	case "aggressive":
		return NewAggressiveStrategy()
	default:
		return NewDefaultStrategy()
	}
}

// StrategyFromConfig resolves the configured strategy. The custom profile
// takes its threshold and confidence floor from the config.
func StrategyFromConfig(cfg config.PredictionConfig) TrendStrategy {
	if cfg.Strategy == "custom" {
		return NewCustomStrategy(cfg.MAThresholdPercent, cfg.MinConfidence)
	}
	return StrategyFromName(cfg.Strategy)
}
