// Package e2e provides end-to-end testing infrastructure for ai-exchange.
package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ai-exchange/config"
	"ai-exchange/e2e/mocks"
	"ai-exchange/internal/api"
	"ai-exchange/internal/app"
	"ai-exchange/internal/settings"
	"ai-exchange/observability"
	"ai-exchange/repository"
	"ai-exchange/services"
)

// TestHarness runs the full engine against mock providers. The trade journal
// is attached when E2E_DATABASE_URL points at a reachable database.
type TestHarness struct {
	t          *testing.T
	ctx        context.Context
	cancel     context.CancelFunc
	mockServer *mocks.MockServer
	repo       *repository.Repository
	app        *app.App
	router     http.Handler
	server     *httptest.Server
	config     *config.Config
	metrics    *observability.Metrics
	breakers   *services.CircuitBreakerRegistry
	settings   *settings.Store
}

// NewTestHarness creates a new test harness with all dependencies initialized.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)

	h := &TestHarness{
		t:      t,
		ctx:    ctx,
		cancel: cancel,
	}

	return h
}

// Setup initializes all test dependencies.
func (h *TestHarness) Setup() error {
	// Start mock server for external APIs
	h.mockServer = mocks.NewMockServer()

	// Create test configuration
	h.config = h.createTestConfig()
	h.metrics = observability.NewMetrics(prometheus.NewRegistry())
	h.breakers = services.NewCircuitBreakerRegistry(services.DefaultCircuitBreakerConfig).WithMetrics(h.metrics)

	var journal app.Journal
	if dbURL := os.Getenv("E2E_DATABASE_URL"); dbURL != "" {
		repo, err := repository.NewRepository(h.ctx, dbURL)
		if err != nil {
			return fmt.Errorf("failed to connect to test database: %w", err)
		}
		if err := repo.Migrate(h.ctx); err != nil {
			repo.Close()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		h.repo = repo.WithMetrics(h.metrics)
		h.cleanupTestData()
		journal = h.repo
	}

	var err error
	h.settings, err = settings.NewStore(h.t.TempDir(), "e2e-test-passphrase")
	if err != nil {
		return fmt.Errorf("failed to create settings store: %w", err)
	}

	feed := services.NewFeed(h.config.Feed,
		services.WithTickPeriod(h.config.Engine.RefreshInterval()),
		services.WithBreakers(h.breakers),
		services.WithFeedMetrics(h.metrics))
	news := services.NewNewsAPIService(h.config.News.APIKey).WithBaseURL(h.mockServer.NewsAPIURL())

	// Create application
	h.app = app.New(h.config, feed, news, journal, app.WithMetrics(h.metrics))
	if err := h.app.Startup(h.ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	// Create router
	handler := api.NewHandler(h.app, h.config).
		WithBreakers(h.breakers).
		WithSettings(h.settings).
		WithValidator(settings.NewValidator().
			WithEndpoint(settings.ServiceAlphaVantage, h.mockServer.URL()).
			WithEndpoint(settings.ServiceNewsAPI, h.mockServer.URL()))
	h.router = api.NewRouter(handler, h.config, h.metrics)
	h.server = httptest.NewServer(h.router)

	return nil
}

// Teardown cleans up all test resources.
func (h *TestHarness) Teardown() {
	if h.cancel != nil {
		h.cancel()
	}

	if h.server != nil {
		h.server.Close()
	}

	if h.repo != nil {
		h.cleanupTestData()
	}

	if h.app != nil {
		h.app.Shutdown(context.Background())
	}

	if h.mockServer != nil {
		h.mockServer.Close()
	}
}

// Context returns the test context.
func (h *TestHarness) Context() context.Context {
	return h.ctx
}

// MockServer returns the mock server for configuring responses.
func (h *TestHarness) MockServer() *mocks.MockServer {
	return h.mockServer
}

// Repository returns the trade journal, nil when no database is configured.
func (h *TestHarness) Repository() *repository.Repository {
	return h.repo
}

// App returns the application instance.
func (h *TestHarness) App() *app.App {
	return h.app
}

// Router returns the HTTP router for making requests.
func (h *TestHarness) Router() http.Handler {
	return h.router
}

// Config returns the test configuration.
func (h *TestHarness) Config() *config.Config {
	return h.config
}

// Metrics returns the metrics the engine records to.
func (h *TestHarness) Metrics() *observability.Metrics {
	return h.metrics
}

// Settings returns the credential store behind the settings endpoints.
func (h *TestHarness) Settings() *settings.Store {
	return h.settings
}

// StreamURL returns the websocket URL of the tick stream.
func (h *TestHarness) StreamURL(query string) string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http") + "/api/stream" + query
}

// DoRequest performs an HTTP request and returns the response.
func (h *TestHarness) DoRequest(method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// Refresh runs one market refresh cycle.
func (h *TestHarness) Refresh() {
	h.t.Helper()
	if err := h.app.RefreshMarket(h.ctx); err != nil {
		h.t.Fatalf("RefreshMarket failed: %v", err)
	}
}

func (h *TestHarness) createTestConfig() *config.Config {
	cfg := config.NewTestConfig()

	// Point the live providers at the mock server
	cfg.Feed = config.FeedConfig{
		Provider:       config.ProviderAlphaVantage,
		APIKey:         "e2e-test-key",
		BaseURL:        h.mockServer.AlphaVantageURL(),
		MaxMovePercent: cfg.Feed.MaxMovePercent,
	}
	cfg.News.APIKey = "e2e-test-key"

	return cfg
}

func (h *TestHarness) cleanupTestData() {
	if _, err := h.repo.Pool().Exec(context.Background(), "DELETE FROM trades"); err != nil {
		h.t.Logf("cleanup query failed: %v", err)
	}
}
