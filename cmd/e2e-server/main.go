// Package main provides a standalone HTTP server for E2E testing. It runs the
// same routes and handlers as the main server, with the market data and news
// providers replaced by the in-process mock from e2e/mocks.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-exchange/config"
	"ai-exchange/e2e/mocks"
	"ai-exchange/internal/api"
	"ai-exchange/internal/app"
	"ai-exchange/internal/settings"
	"ai-exchange/observability"
	"ai-exchange/repository"
	"ai-exchange/scheduler"
	"ai-exchange/services"
)

func main() {
	// Initialize logger in development mode for tests
	observability.InitLoggerWithLevel(false, observability.ParseLevel(os.Getenv("LOG_LEVEL")))
	metrics := observability.InitMetrics()

	// Get configuration from environment
	port := os.Getenv("E2E_SERVER_PORT")
	if port == "" {
		port = "9090"
	}

	mockServer := mocks.NewMockServer()
	defer mockServer.Close()
	observability.Info("mock providers started", "url", mockServer.URL())

	cfg := config.NewTestConfig()
	cfg.HTTP.Addr = ":" + port
	cfg.Feed.Provider = config.ProviderAlphaVantage
	cfg.Feed.APIKey = "e2e-test-key"
	cfg.Feed.BaseURL = mockServer.AlphaVantageURL()
	cfg.Engine.PriceRefreshSeconds = 5
	cfg.Engine.TickerRotationMillis = 2000

	ctx := context.Background()

	breakers := services.NewCircuitBreakerRegistry(services.DefaultCircuitBreakerConfig).WithMetrics(metrics)
	services.SetGlobalRegistry(breakers)

	// The journal is optional for e2e runs
	var journal app.Journal
	if databaseURL := os.Getenv("E2E_DATABASE_URL"); databaseURL != "" {
		repo, err := repository.NewRepository(ctx, databaseURL)
		if err != nil {
			observability.Fatal("failed to connect to database", "error", err)
		}
		if err := repo.Migrate(ctx); err != nil {
			observability.Fatal("failed to migrate database", "error", err)
		}
		journal = repo.WithMetrics(metrics)
		observability.Info("connected to test database")
	}

	feed := services.NewFeed(cfg.Feed,
		services.WithTickPeriod(cfg.Engine.RefreshInterval()),
		services.WithBreakers(breakers),
		services.WithFeedMetrics(metrics))
	news := services.NewNewsAPIService("e2e-test-key").WithBaseURL(mockServer.NewsAPIURL())

	application := app.New(cfg, feed, news, journal, app.WithMetrics(metrics))
	if err := application.Startup(ctx); err != nil {
		observability.Fatal("failed to start engine", "error", err)
	}

	sched := scheduler.New(metrics)
	for _, task := range application.Tasks() {
		if _, err := sched.Every(task.Interval, task.Task); err != nil {
			observability.Fatal("failed to schedule task", "task", task.Task.Name(), "error", err)
		}
	}
	sched.Start()

	// Initialize Settings Store with test directory
	settingsDir := os.Getenv("E2E_SETTINGS_DIR")
	if settingsDir == "" {
		var err error
		settingsDir, err = os.MkdirTemp("", "ai-exchange-e2e-settings-*")
		if err != nil {
			observability.Fatal("failed to create temp settings dir", "error", err)
		}
		defer os.RemoveAll(settingsDir)
	}

	settingsStore, err := settings.NewStore(settingsDir, "e2e-test-passphrase")
	if err != nil {
		observability.Fatal("failed to initialize settings store", "error", err)
	}
	observability.Info("settings store initialized", "dir", settingsDir)

	// Create HTTP router
	handler := api.NewHandler(application, cfg).
		WithBreakers(breakers).
		WithSettings(settingsStore).
		WithValidator(settings.NewValidator().
			WithEndpoint(settings.ServiceAlphaVantage, mockServer.URL()).
			WithEndpoint(settings.ServiceNewsAPI, mockServer.URL()))
	router := api.NewRouter(handler, cfg, metrics)

	// Create HTTP server
	server := &http.Server{
		Addr:        cfg.HTTP.Addr,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
	}

	// Start server in goroutine
	go func() {
		observability.Info("starting E2E test server", "port", port, "url", fmt.Sprintf("http://localhost:%s", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			observability.Fatal("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	observability.Info("shutting down E2E test server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Warn("server forced to shutdown", "error", err)
	}

	sched.Stop()
	application.Shutdown(shutdownCtx)
	observability.Info("E2E test server stopped")
}
