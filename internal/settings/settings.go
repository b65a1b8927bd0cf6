package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ai-exchange/config"
	"ai-exchange/observability"
)

// ServiceName represents a configurable service
type ServiceName string

const (
	ServiceAlpaca       ServiceName = "alpaca"
	ServiceAlphaVantage ServiceName = "alphavantage"
	ServiceNewsAPI      ServiceName = "newsapi"
)

// Services lists every service the store knows about, in display order
var Services = []ServiceName{ServiceAlpaca, ServiceAlphaVantage, ServiceNewsAPI}

// APIKeyConfig represents configuration for a single API key
type APIKeyConfig struct {
	ServiceName ServiceName `json:"service_name"`
	APIKey      string      `json:"api_key,omitempty"`
	APISecret   string      `json:"api_secret,omitempty"` // Alpaca needs both
	BaseURL     string      `json:"base_url,omitempty"`   // Optional base URL override
}

// Settings holds all user-configurable settings
type Settings struct {
	APIKeys map[ServiceName]*APIKeyConfig `json:"api_keys"`
}

// MaskedAPIKeyConfig represents an API key config with masked secrets
type MaskedAPIKeyConfig struct {
	ServiceName  ServiceName `json:"service_name"`
	DisplayName  string      `json:"display_name"`
	Description  string      `json:"description"`
	APIKey       string      `json:"api_key,omitempty"`
	APISecret    string      `json:"api_secret,omitempty"`
	BaseURL      string      `json:"base_url,omitempty"`
	IsConfigured bool        `json:"is_configured"`
}

// Store manages persistent storage of settings
type Store struct {
	mu       sync.RWMutex
	filePath string
	settings *Settings
	crypto   *Crypto
}

// DefaultDir returns the settings directory used when none is configured
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".ai-exchange"), nil
}

// NewStore creates a new settings store. An unreadable settings file is
// logged and replaced by empty settings.
func NewStore(dataDir string, passphrase string) (*Store, error) {
	if dataDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dataDir = dir
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}

	crypto, err := NewCrypto(passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize crypto: %w", err)
	}

	store := &Store{
		filePath: filepath.Join(dataDir, "settings.enc"),
		crypto:   crypto,
		settings: newDefaultSettings(),
	}

	if err := store.load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		observability.Warn("failed to load settings, using defaults",
			"path", store.filePath,
			"error", err)
	}

	return store, nil
}

// newDefaultSettings creates empty default settings
func newDefaultSettings() *Settings {
	return &Settings{
		APIKeys: make(map[ServiceName]*APIKeyConfig),
	}
}

// load reads settings from encrypted file
func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	decrypted, err := s.crypto.Decrypt(data)
	if err != nil {
		return fmt.Errorf("failed to decrypt settings: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(decrypted, &settings); err != nil {
		return fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	if settings.APIKeys == nil {
		settings.APIKeys = make(map[ServiceName]*APIKeyConfig)
	}

	s.settings = &settings
	return nil
}

// Save persists settings to encrypted file
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(s.settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	encrypted, err := s.crypto.Encrypt(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt settings: %w", err)
	}

	if err := os.WriteFile(s.filePath, encrypted, 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// GetAPIKey returns the API key config for a service (unmasked)
func (s *Store) GetAPIKey(service ServiceName) *APIKeyConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cfg, ok := s.settings.APIKeys[service]; ok {
		cfgCopy := *cfg
		return &cfgCopy
	}
	return nil
}

// SetAPIKey stores an API key configuration
func (s *Store) SetAPIKey(cfg *APIKeyConfig) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}
	if cfg.ServiceName == "" {
		return errors.New("service name is required")
	}

	cfgCopy := *cfg
	s.mu.Lock()
	s.settings.APIKeys[cfg.ServiceName] = &cfgCopy
	s.mu.Unlock()

	return s.Save()
}

// DeleteAPIKey removes an API key configuration
func (s *Store) DeleteAPIKey(service ServiceName) error {
	s.mu.Lock()
	delete(s.settings.APIKeys, service)
	s.mu.Unlock()

	return s.Save()
}

// GetMaskedSettings returns every known service with its secrets masked
func (s *Store) GetMaskedSettings() map[ServiceName]*MaskedAPIKeyConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[ServiceName]*MaskedAPIKeyConfig, len(Services))
	for _, service := range Services {
		masked := &MaskedAPIKeyConfig{
			ServiceName: service,
			DisplayName: ServiceDisplayName(service),
			Description: ServiceDescription(service),
		}

		if cfg, ok := s.settings.APIKeys[service]; ok {
			masked.APIKey = maskString(cfg.APIKey)
			masked.APISecret = maskString(cfg.APISecret)
			masked.BaseURL = cfg.BaseURL
			masked.IsConfigured = cfg.APIKey != "" || cfg.APISecret != ""
		}

		result[service] = masked
	}

	return result
}

// IsConfigured checks if a service has API keys configured
func (s *Store) IsConfigured(service ServiceName) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.settings.APIKeys[service]
	if !ok {
		return false
	}

	return cfg.APIKey != ""
}

// FeedConfig returns the stored credentials for a price feed provider. An
// unknown or unconfigured provider yields a config carrying only the name.
func (s *Store) FeedConfig(provider string) config.FeedConfig {
	feed := config.FeedConfig{Provider: provider}
	cfg := s.GetAPIKey(ServiceName(provider))
	if cfg == nil {
		return feed
	}
	feed.APIKey = cfg.APIKey
	feed.APISecret = cfg.APISecret
	feed.BaseURL = cfg.BaseURL
	return feed
}

// NewsAPIKey returns the stored NewsAPI key, or "" when none is stored
func (s *Store) NewsAPIKey() string {
	if cfg := s.GetAPIKey(ServiceNewsAPI); cfg != nil {
		return cfg.APIKey
	}
	return ""
}

// maskString masks a string showing only last 4 characters
func maskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// GetAllAPIKeys returns all API keys (unmasked) - use with caution
func (s *Store) GetAllAPIKeys() map[ServiceName]*APIKeyConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[ServiceName]*APIKeyConfig)
	for k, v := range s.settings.APIKeys {
		cfgCopy := *v
		result[k] = &cfgCopy
	}
	return result
}

// ResetAll removes all API keys
func (s *Store) ResetAll() error {
	s.mu.Lock()
	s.settings.APIKeys = make(map[ServiceName]*APIKeyConfig)
	s.mu.Unlock()

	return s.Save()
}

// ServiceDisplayName returns a human-readable name for a service
func ServiceDisplayName(service ServiceName) string {
	switch service {
	case ServiceAlpaca:
		return "Alpaca Markets"
	case ServiceAlphaVantage:
		return "Alpha Vantage"
	case ServiceNewsAPI:
		return "NewsAPI"
	default:
		return string(service)
	}
}

// ServiceDescription returns a description for a service
func ServiceDescription(service ServiceName) string {
	switch service {
	case ServiceAlpaca:
		return "Live quotes and daily bars for the price feed"
	case ServiceAlphaVantage:
		return "Alternative quote and daily series provider for the price feed"
	case ServiceNewsAPI:
		return "Headlines for the news ticker"
	default:
		return ""
	}
}
