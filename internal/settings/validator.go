package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAlpacaURL       = "https://paper-api.alpaca.markets"
	defaultAlphaVantageURL = "https://www.alphavantage.co"
	defaultNewsAPIURL      = "https://newsapi.org"
)

// ValidationResult represents the result of validating an API key
type ValidationResult struct {
	Service  ServiceName   `json:"service"`
	Valid    bool          `json:"valid"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration_ms"`
}

// Validator validates API key configurations against the provider
type Validator struct {
	client    *http.Client
	endpoints map[ServiceName]string
}

// NewValidator creates a new API key validator
func NewValidator() *Validator {
	return &Validator{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		endpoints: map[ServiceName]string{
			ServiceAlpaca:       defaultAlpacaURL,
			ServiceAlphaVantage: defaultAlphaVantageURL,
			ServiceNewsAPI:      defaultNewsAPIURL,
		},
	}
}

// WithEndpoint overrides the base URL used for a service
func (v *Validator) WithEndpoint(service ServiceName, baseURL string) *Validator {
	v.endpoints[service] = strings.TrimRight(baseURL, "/")
	return v
}

// ValidateAPIKey tests if an API key is valid for the given service. Failed
// validation is reported in the result, not as an error.
func (v *Validator) ValidateAPIKey(ctx context.Context, cfg *APIKeyConfig) (*ValidationResult, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	start := time.Now()
	result := &ValidationResult{
		Service: cfg.ServiceName,
	}

	var err error
	switch cfg.ServiceName {
	case ServiceAlpaca:
		err = v.validateAlpaca(ctx, cfg)
	case ServiceAlphaVantage:
		err = v.validateAlphaVantage(ctx, cfg)
	case ServiceNewsAPI:
		err = v.validateNewsAPI(ctx, cfg)
	default:
		err = fmt.Errorf("unknown service: %s", cfg.ServiceName)
	}

	result.Duration = time.Since(start)

	if err != nil {
		result.Valid = false
		result.Message = err.Error()
	} else {
		result.Valid = true
		result.Message = "Connection successful"
	}

	return result, nil
}

// validateAlpaca tests Alpaca API connectivity
func (v *Validator) validateAlpaca(ctx context.Context, cfg *APIKeyConfig) error {
	if cfg.APIKey == "" {
		return errors.New("API key is required")
	}
	if cfg.APISecret == "" {
		return errors.New("API secret is required")
	}

	baseURL := v.endpoints[ServiceAlpaca]
	if cfg.BaseURL != "" {
		baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v2/account", nil)
	if err != nil {
		return err
	}
	req.Header.Set("APCA-API-KEY-ID", cfg.APIKey)
	req.Header.Set("APCA-API-SECRET-KEY", cfg.APISecret)

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errors.New("invalid API credentials")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}

// validateAlphaVantage tests Alpha Vantage API connectivity. Alpha Vantage
// answers 200 for bad keys and reports the problem in the body.
func (v *Validator) validateAlphaVantage(ctx context.Context, cfg *APIKeyConfig) error {
	if cfg.APIKey == "" {
		return errors.New("API key is required")
	}

	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", "NVDA")
	params.Set("apikey", cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoints[ServiceAlphaVantage]+"/query?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}

	if errMsg, ok := result["Error Message"].(string); ok {
		return fmt.Errorf("API error: %s", errMsg)
	}
	// "Note" and "Information" are rate limit notices; the key itself is fine

	return nil
}

// validateNewsAPI tests NewsAPI connectivity
func (v *Validator) validateNewsAPI(ctx context.Context, cfg *APIKeyConfig) error {
	if cfg.APIKey == "" {
		return errors.New("API key is required")
	}

	params := url.Values{}
	params.Set("q", "nvidia")
	params.Set("pageSize", "1")
	params.Set("apiKey", cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoints[ServiceNewsAPI]+"/v2/everything?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return errors.New("invalid API key")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}
