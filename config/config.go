package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Price feed provider names
const (
	ProviderSynthetic    = "synthetic"
	ProviderAlpaca       = "alpaca"
	ProviderAlphaVantage = "alphavantage"
)

// Config holds all application configuration
type Config struct {
	// Price feed provider configuration
	Feed FeedConfig

	// Engine configuration
	Engine EngineConfig

	// Prediction configuration
	Prediction PredictionConfig

	// News ticker configuration
	News NewsConfig

	// Database configuration
	Database DatabaseConfig

	// HTTP configuration
	HTTP HTTPConfig

	// Settings store configuration
	Settings SettingsConfig

	// Logging configuration
	Log LogConfig
}

// FeedConfig is the price feed provider boundary. The zero value is the
// unconfigured variant and selects the synthetic generator.
type FeedConfig struct {
	Provider       string
	APIKey         string
	APISecret      string
	BaseURL        string
	MaxMovePercent float64 // per-tick bound of the synthetic walk
}

// EngineConfig holds refresh cycle and market model configuration
type EngineConfig struct {
	PriceRefreshSeconds  int
	TickerRotationMillis int
	OrderBookLevels      int
	SpreadBps            float64
	WatchList            []string
	DefaultSymbol        string
	InitialCash          float64
	LookbackBars         int
	RecentTradesLimit    int
}

// RefreshInterval is the market refresh period, also the synthetic walk step
func (e EngineConfig) RefreshInterval() time.Duration {
	return time.Duration(e.PriceRefreshSeconds) * time.Second
}

// PredictionConfig holds predictor thresholds
type PredictionConfig struct {
	Strategy           string  // default, conservative, aggressive, or custom
	MAThresholdPercent float64 // for custom strategy
	MinConfidence      int     // for custom strategy
	MaxDriftPercent    float64
	ShortWindow        int
	LongWindow         int
}

// NewsConfig holds news ticker configuration
type NewsConfig struct {
	APIKey string
	Query  string
	Limit  int
}

// DatabaseConfig holds trade journal database configuration
type DatabaseConfig struct {
	URL string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Addr               string
	CORSAllowedOrigins string
	TimeoutSeconds     int
}

// SettingsConfig holds the encrypted settings store location
type SettingsConfig struct {
	Dir        string
	Passphrase string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string
	Production bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Feed: FeedConfig{
			Provider:       strings.ToLower(os.Getenv("FEED_PROVIDER")),
			APIKey:         os.Getenv("FEED_API_KEY"),
			APISecret:      os.Getenv("FEED_API_SECRET"),
			BaseURL:        os.Getenv("FEED_BASE_URL"),
			MaxMovePercent: getEnvFloatRange("FEED_MAX_MOVE_PERCENT", 2.0, 0.01, 20),
		},
		Engine: EngineConfig{
			PriceRefreshSeconds:  getEnvInt("PRICE_REFRESH_SECONDS", 30),
			TickerRotationMillis: getEnvInt("TICKER_ROTATION_MS", 4000),
			OrderBookLevels:      getEnvInt("ORDERBOOK_LEVELS", 15),
			SpreadBps:            getEnvFloatRange("ORDERBOOK_SPREAD_BPS", 5, 0.1, 1000),
			WatchList:            getEnvList("WATCH_LIST", defaultWatchList),
			DefaultSymbol:        strings.ToUpper(getEnvString("DEFAULT_SYMBOL", "NVDA")),
			InitialCash:          getEnvFloatRange("INITIAL_CASH", 10000, 0, 1e12),
			LookbackBars:         getEnvInt("LOOKBACK_BARS", 30),
			RecentTradesLimit:    getEnvInt("RECENT_TRADES_LIMIT", 100),
		},
		Prediction: PredictionConfig{
			Strategy:           getEnvString("PREDICTION_STRATEGY", "default"),
			MAThresholdPercent: getEnvFloatRange("PREDICTION_MA_THRESHOLD_PERCENT", 0.5, 0, 50),
			MinConfidence:      getEnvInt("PREDICTION_MIN_CONFIDENCE", 0),
			MaxDriftPercent:    getEnvFloatRange("PREDICTION_MAX_DRIFT_PERCENT", 5, 0, 50),
			ShortWindow:        getEnvInt("PREDICTION_SHORT_WINDOW", 5),
			LongWindow:         getEnvInt("PREDICTION_LONG_WINDOW", 20),
		},
		News: NewsConfig{
			APIKey: os.Getenv("NEWS_API_KEY"),
			Query:  getEnvString("NEWS_QUERY", "artificial intelligence stocks"),
			Limit:  getEnvInt("NEWS_LIMIT", 20),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		HTTP: HTTPConfig{
			Addr:               getEnvString("HTTP_ADDR", ":8080"),
			CORSAllowedOrigins: getEnvString("CORS_ALLOWED_ORIGINS", "*"),
			TimeoutSeconds:     getEnvInt("HTTP_TIMEOUT_SECONDS", 30),
		},
		Settings: SettingsConfig{
			Dir:        os.Getenv("SETTINGS_DIR"),
			Passphrase: os.Getenv("SETTINGS_PASSPHRASE"),
		},
		Log: LogConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			Production: getEnvBool("LOG_JSON", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

var defaultWatchList = []string{"NVDA", "MSFT", "GOOGL", "META", "AMD", "PLTR", "TSLA", "AMZN"}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Feed.Provider {
	case "", ProviderSynthetic, ProviderAlpaca, ProviderAlphaVantage:
	default:
		return fmt.Errorf("FEED_PROVIDER must be one of synthetic, alpaca, alphavantage, got %q", c.Feed.Provider)
	}

	if c.Engine.PriceRefreshSeconds <= 0 {
		return fmt.Errorf("PRICE_REFRESH_SECONDS must be positive, got %d", c.Engine.PriceRefreshSeconds)
	}
	if c.Engine.TickerRotationMillis < 1000 {
		return fmt.Errorf("TICKER_ROTATION_MS must be at least 1000, got %d", c.Engine.TickerRotationMillis)
	}
	if c.Engine.OrderBookLevels <= 0 || c.Engine.OrderBookLevels > 50 {
		return fmt.Errorf("ORDERBOOK_LEVELS must be between 1 and 50, got %d", c.Engine.OrderBookLevels)
	}
	if len(c.Engine.WatchList) == 0 {
		return fmt.Errorf("WATCH_LIST must contain at least one symbol")
	}
	if c.Engine.LookbackBars <= 0 {
		return fmt.Errorf("LOOKBACK_BARS must be positive, got %d", c.Engine.LookbackBars)
	}

	// Validate prediction windows fit the look-back window
	if c.Prediction.ShortWindow <= 0 || c.Prediction.LongWindow <= c.Prediction.ShortWindow {
		return fmt.Errorf("prediction windows must satisfy 0 < short < long, got short=%d long=%d",
			c.Prediction.ShortWindow, c.Prediction.LongWindow)
	}
	if c.Prediction.LongWindow > c.Engine.LookbackBars {
		return fmt.Errorf("PREDICTION_LONG_WINDOW (%d) must not exceed LOOKBACK_BARS (%d)",
			c.Prediction.LongWindow, c.Engine.LookbackBars)
	}
	if c.Prediction.MinConfidence < 0 || c.Prediction.MinConfidence > 100 {
		return fmt.Errorf("PREDICTION_MIN_CONFIDENCE must be between 0 and 100, got %d", c.Prediction.MinConfidence)
	}

	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive, got %d", c.HTTP.TimeoutSeconds)
	}

	return nil
}

// HasLiveFeed returns true if a live provider is selected and has credentials
func (c *Config) HasLiveFeed() bool {
	return c.Feed.IsLive()
}

// HasDatabase returns true if database configuration is available
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasNewsAPI returns true if NewsAPI configuration is available
func (c *Config) HasNewsAPI() bool {
	return c.News.APIKey != ""
}

// IsLive reports whether the feed config selects a live provider with usable credentials
func (f FeedConfig) IsLive() bool {
	switch f.Provider {
	case ProviderAlpaca:
		return f.APIKey != "" && f.APISecret != ""
	case ProviderAlphaVantage:
		return f.APIKey != ""
	default:
		return false
	}
}

// CredentialSource supplies stored provider credentials, typically the
// encrypted settings store
type CredentialSource interface {
	FeedConfig(provider string) FeedConfig
	NewsAPIKey() string
}

// ResolveFeed fills empty feed and news credentials from src. Values from the
// environment always win. With no provider selected, the first provider with
// complete stored credentials is used.
func (c *Config) ResolveFeed(src CredentialSource) {
	if src == nil {
		return
	}

	if c.Feed.Provider == "" {
		for _, provider := range []string{ProviderAlpaca, ProviderAlphaVantage} {
			if stored := src.FeedConfig(provider); stored.IsLive() {
				c.Feed.Provider = provider
				break
			}
		}
	}

	switch c.Feed.Provider {
	case ProviderAlpaca, ProviderAlphaVantage:
		stored := src.FeedConfig(c.Feed.Provider)
		if c.Feed.APIKey == "" {
			c.Feed.APIKey = stored.APIKey
		}
		if c.Feed.APISecret == "" {
			c.Feed.APISecret = stored.APISecret
		}
		if c.Feed.BaseURL == "" {
			c.Feed.BaseURL = stored.BaseURL
		}
	}

	if c.News.APIKey == "" {
		c.News.APIKey = src.NewsAPIKey()
	}
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatRange(key string, defaultValue, minVal, maxVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil && parsed >= minVal && parsed <= maxVal {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList parses a comma separated, upper-cased, de-duplicated symbol list
func getEnvList(key string, defaultValue []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return append([]string(nil), defaultValue...)
	}

	seen := make(map[string]bool)
	var result []string
	for _, part := range strings.Split(val, ",") {
		symbol := strings.ToUpper(strings.TrimSpace(part))
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		result = append(result, symbol)
	}
	if len(result) == 0 {
		return append([]string(nil), defaultValue...)
	}
	return result
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	return &Config{
		Feed: FeedConfig{
			MaxMovePercent: 2.0,
		},
		Engine: EngineConfig{
			PriceRefreshSeconds:  30,
			TickerRotationMillis: 4000,
			OrderBookLevels:      15,
			SpreadBps:            5,
			WatchList:            []string{"NVDA", "MSFT", "AMD"},
			DefaultSymbol:        "NVDA",
			InitialCash:          10000,
			LookbackBars:         30,
			RecentTradesLimit:    100,
		},
		Prediction: PredictionConfig{
			Strategy:           "default",
			MAThresholdPercent: 0.5,
			MinConfidence:      0,
			MaxDriftPercent:    5,
			ShortWindow:        5,
			LongWindow:         20,
		},
		News: NewsConfig{
			Query: "artificial intelligence stocks",
			Limit: 20,
		},
		HTTP: HTTPConfig{
			Addr:               ":0",
			CORSAllowedOrigins: "*",
			TimeoutSeconds:     30,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
