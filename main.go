package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ai-exchange/config"
	"ai-exchange/internal/api"
	"ai-exchange/internal/app"
	"ai-exchange/internal/settings"
	"ai-exchange/observability"
	"ai-exchange/repository"
	"ai-exchange/scheduler"
	"ai-exchange/services"
)

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		observability.InitLogger(false)
		observability.Fatal("invalid configuration", "error", err)
	}

	observability.InitLoggerWithLevel(cfg.Log.Production, observability.ParseLevel(cfg.Log.Level))
	if envErr != nil {
		observability.Debug("No .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		observability.Fatal("server error", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	metrics := observability.InitMetrics()

	breakers := services.NewCircuitBreakerRegistry(services.DefaultCircuitBreakerConfig).WithMetrics(metrics)
	services.SetGlobalRegistry(breakers)

	// Stored credentials fill in whatever the environment leaves unset
	store, err := settings.NewStore(cfg.Settings.Dir, cfg.Settings.Passphrase)
	if err != nil {
		observability.Warn("Settings store unavailable, using environment only", "error", err)
		store = nil
	} else {
		cfg.ResolveFeed(store)
	}

	feed := services.NewFeed(cfg.Feed,
		services.WithTickPeriod(cfg.Engine.RefreshInterval()),
		services.WithBreakers(breakers),
		services.WithFeedMetrics(metrics))

	var news services.NewsSource
	if cfg.News.APIKey != "" {
		news = services.NewNewsAPIService(cfg.News.APIKey)
	} else {
		observability.Info("NEWS_API_KEY not set, using synthetic headlines")
	}

	// Initialize the trade journal when a database is configured
	var journal app.Journal
	if cfg.Database.URL != "" {
		repo, err := repository.NewRepository(ctx, cfg.Database.URL)
		if err != nil {
			observability.Warn("Failed to connect to database, trades will not be journaled", "error", err)
		} else if err := repo.Migrate(ctx); err != nil {
			observability.Warn("Failed to migrate database, trades will not be journaled", "error", err)
			repo.Close()
		} else {
			journal = repo.WithMetrics(metrics)
		}
	}

	application := app.New(cfg, feed, news, journal, app.WithMetrics(metrics))
	if err := application.Startup(ctx); err != nil {
		return err
	}

	sched := scheduler.New(metrics)
	for _, task := range application.Tasks() {
		if _, err := sched.Every(task.Interval, task.Task); err != nil {
			return err
		}
	}
	sched.Start()

	handler := api.NewHandler(application, cfg).WithBreakers(breakers)
	if store != nil {
		handler.WithSettings(store)
	}

	// No WriteTimeout: the tick stream holds its connection open
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(handler, cfg, metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		observability.Info("Starting HTTP server", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		observability.Info("Shutting down...")
	case err := <-serverErr:
		if err != nil {
			sched.Stop()
			application.Shutdown(context.Background())
			return err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Warn("Server forced to shutdown", "error", err)
	}
	sched.Stop()
	application.Shutdown(shutdownCtx)
	observability.Info("Server stopped")
	return nil
}
