package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ai-exchange/config"
	"ai-exchange/models"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// AlphaVantageProvider serves quotes and daily bars from the Alpha Vantage API
type AlphaVantageProvider struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	now        func() time.Time
}

// NewAlphaVantageProvider creates an AlphaVantageProvider from feed credentials
func NewAlphaVantageProvider(cfg config.FeedConfig) *AlphaVantageProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = alphaVantageBaseURL
	}
	return &AlphaVantageProvider{
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		now:        time.Now,
	}
}

// Name returns the provider name
func (p *AlphaVantageProvider) Name() string {
	return config.ProviderAlphaVantage
}

// apiNotice carries the fields Alpha Vantage uses for errors and throttling.
// Responses with any of them set have no data.
type apiNotice struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

func (n apiNotice) err() error {
	switch {
	case n.ErrorMessage != "":
		return fmt.Errorf("alphavantage error: %s", n.ErrorMessage)
	case n.Note != "":
		return fmt.Errorf("alphavantage throttled: %s", n.Note)
	case n.Information != "":
		return fmt.Errorf("alphavantage unavailable: %s", n.Information)
	}
	return nil
}

// QuoteResponse represents a GLOBAL_QUOTE response
type QuoteResponse struct {
	apiNotice
	GlobalQuote struct {
		Symbol        string `json:"01. symbol"`
		Open          string `json:"02. open"`
		High          string `json:"03. high"`
		Low           string `json:"04. low"`
		Price         string `json:"05. price"`
		Volume        string `json:"06. volume"`
		LatestDay     string `json:"07. latest trading day"`
		PrevClose     string `json:"08. previous close"`
		Change        string `json:"09. change"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
}

// DailySeriesResponse represents a TIME_SERIES_DAILY response
type DailySeriesResponse struct {
	apiNotice
	TimeSeries map[string]struct {
		Open   string `json:"1. open"`
		High   string `json:"2. high"`
		Low    string `json:"3. low"`
		Close  string `json:"4. close"`
		Volume string `json:"5. volume"`
	} `json:"Time Series (Daily)"`
}

// Quote returns the latest quote for a symbol
func (p *AlphaVantageProvider) Quote(ctx context.Context, symbol string) (models.PricePoint, error) {
	symbol = strings.ToUpper(symbol)
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)

	var quoteResp QuoteResponse
	if err := p.get(ctx, params, &quoteResp); err != nil {
		return models.PricePoint{}, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}
	if err := quoteResp.err(); err != nil {
		return models.PricePoint{}, err
	}

	price, err := decimal.NewFromString(quoteResp.GlobalQuote.Price)
	if err != nil || !price.IsPositive() {
		return models.PricePoint{}, fmt.Errorf("invalid quote price %q for %s", quoteResp.GlobalQuote.Price, symbol)
	}
	previous, err := decimal.NewFromString(quoteResp.GlobalQuote.PrevClose)
	if err != nil {
		previous = price
	}

	var volume int64
	if quoteResp.GlobalQuote.Volume != "" {
		volume, _ = strconv.ParseInt(quoteResp.GlobalQuote.Volume, 10, 64)
	}

	ts := p.now()
	if day, err := time.Parse("2006-01-02", quoteResp.GlobalQuote.LatestDay); err == nil {
		ts = day
	}

	return models.NewPricePoint(symbol, price.Round(2), previous.Round(2), volume, ts, p.Name()), nil
}

// Bars returns the last n daily bars, oldest first
func (p *AlphaVantageProvider) Bars(ctx context.Context, symbol string, n int) ([]models.HistoricalBar, error) {
	if n <= 0 {
		return nil, errors.New("bar count must be positive")
	}

	symbol = strings.ToUpper(symbol)
	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", symbol)
	params.Set("outputsize", "compact")

	var series DailySeriesResponse
	if err := p.get(ctx, params, &series); err != nil {
		return nil, fmt.Errorf("failed to fetch daily series for %s: %w", symbol, err)
	}
	if err := series.err(); err != nil {
		return nil, err
	}

	days := make([]string, 0, len(series.TimeSeries))
	for day := range series.TimeSeries {
		days = append(days, day)
	}
	sort.Strings(days)
	if len(days) > n {
		days = days[len(days)-n:]
	}

	bars := make([]models.HistoricalBar, 0, len(days))
	for _, day := range days {
		entry := series.TimeSeries[day]
		closePrice, err := decimal.NewFromString(entry.Close)
		if err != nil {
			return nil, fmt.Errorf("invalid close %q on %s for %s", entry.Close, day, symbol)
		}
		volume, _ := strconv.ParseInt(entry.Volume, 10, 64)
		ts, _ := time.Parse("2006-01-02", day)
		bars = append(bars, models.HistoricalBar{
			Close:     closePrice.Round(2),
			Volume:    volume,
			Timestamp: ts,
		})
	}

	return bars, nil
}

func (p *AlphaVantageProvider) get(ctx context.Context, params url.Values, out any) error {
	params.Set("apikey", p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("alphavantage returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
