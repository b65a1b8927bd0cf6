package settings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValidatorValidateAPIKey(t *testing.T) {
	validator := NewValidator()

	_, err := validator.ValidateAPIKey(context.Background(), nil)
	if err == nil {
		t.Error("ValidateAPIKey(nil) should return error")
	}
}

func TestValidatorUnknownService(t *testing.T) {
	validator := NewValidator()

	result, err := validator.ValidateAPIKey(context.Background(), &APIKeyConfig{
		ServiceName: ServiceName("unknown"),
		APIKey:      "test",
	})
	if err != nil {
		t.Fatalf("ValidateAPIKey() error = %v", err)
	}
	if result.Valid {
		t.Error("ValidateAPIKey() unknown service should not be valid")
	}
}

func TestValidatorMissingCredentials(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name   string
		config *APIKeyConfig
	}{
		{"AlphaVantage", &APIKeyConfig{ServiceName: ServiceAlphaVantage}},
		{"NewsAPI", &APIKeyConfig{ServiceName: ServiceNewsAPI}},
		{"Alpaca without key", &APIKeyConfig{ServiceName: ServiceAlpaca, APISecret: "secret"}},
		{"Alpaca without secret", &APIKeyConfig{ServiceName: ServiceAlpaca, APIKey: "AKTEST123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := validator.ValidateAPIKey(context.Background(), tt.config)
			if err != nil {
				t.Fatalf("ValidateAPIKey() error = %v", err)
			}
			if result.Valid {
				t.Error("ValidateAPIKey() with missing credentials should not be valid")
			}
			if result.Message == "" {
				t.Error("ValidateAPIKey() should have error message")
			}
		})
	}
}

func TestValidatorAgainstServer(t *testing.T) {
	tests := []struct {
		name    string
		config  *APIKeyConfig
		handler http.HandlerFunc
		isValid bool
	}{
		{
			name:   "alpaca ok",
			config: &APIKeyConfig{ServiceName: ServiceAlpaca, APIKey: "AK", APISecret: "SK"},
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v2/account" || r.Header.Get("APCA-API-KEY-ID") != "AK" {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				w.Write([]byte(`{}`))
			},
			isValid: true,
		},
		{
			name:   "alpaca rejected",
			config: &APIKeyConfig{ServiceName: ServiceAlpaca, APIKey: "AK", APISecret: "bad"},
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
			isValid: false,
		},
		{
			name:   "alphavantage error message",
			config: &APIKeyConfig{ServiceName: ServiceAlphaVantage, APIKey: "bad"},
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"Error Message": "Invalid API call"}`))
			},
			isValid: false,
		},
		{
			name:   "alphavantage rate limited",
			config: &APIKeyConfig{ServiceName: ServiceAlphaVantage, APIKey: "key"},
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("apikey") != "key" {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`))
			},
			isValid: true,
		},
		{
			name:   "newsapi unauthorized",
			config: &APIKeyConfig{ServiceName: ServiceNewsAPI, APIKey: "bad"},
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			isValid: false,
		},
		{
			name:   "newsapi ok",
			config: &APIKeyConfig{ServiceName: ServiceNewsAPI, APIKey: "key"},
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":"ok","articles":[]}`))
			},
			isValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			validator := NewValidator().WithEndpoint(tt.config.ServiceName, server.URL)
			result, err := validator.ValidateAPIKey(context.Background(), tt.config)
			if err != nil {
				t.Fatalf("ValidateAPIKey() error = %v", err)
			}
			if result.Valid != tt.isValid {
				t.Errorf("ValidateAPIKey() Valid = %v, want %v (%s)", result.Valid, tt.isValid, result.Message)
			}
		})
	}
}

func TestValidatorAlpacaBaseURLOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	result, err := NewValidator().ValidateAPIKey(context.Background(), &APIKeyConfig{
		ServiceName: ServiceAlpaca,
		APIKey:      "AK",
		APISecret:   "SK",
		BaseURL:     server.URL + "/",
	})
	if err != nil {
		t.Fatalf("ValidateAPIKey() error = %v", err)
	}
	if !result.Valid {
		t.Errorf("expected valid result, got %s", result.Message)
	}
}

func TestValidatorResultFields(t *testing.T) {
	validator := NewValidator()

	result, err := validator.ValidateAPIKey(context.Background(), &APIKeyConfig{
		ServiceName: ServiceNewsAPI,
	})
	if err != nil {
		t.Fatalf("ValidateAPIKey() error = %v", err)
	}

	if result.Service != ServiceNewsAPI {
		t.Errorf("ValidateAPIKey() Service = %v, want %v", result.Service, ServiceNewsAPI)
	}
	if result.Message == "" {
		t.Error("ValidateAPIKey() Message should not be empty")
	}
}
