package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ai-exchange/config"
	"ai-exchange/observability"
)

// NewRouter creates and configures a Chi router with all routes. The tick
// stream is exempt from the request timeout.
func NewRouter(h *Handler, cfg *config.Config, metrics *observability.Metrics) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware(cfg.HTTP.CORSAllowedOrigins))
	r.Use(MetricsMiddleware(metrics))

	// Metrics endpoint for Prometheus
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Websocket tick stream
		r.Get("/stream", h.HandleStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second))

			// Health check
			r.Get("/health", h.HandleHealth)

			// Portfolio
			r.Get("/portfolio", h.HandleGetPortfolio)
			r.Get("/positions", h.HandleGetPositions)

			// Market data
			r.Get("/universe", h.HandleGetUniverse)
			r.Get("/prices", h.HandleGetPrices)
			r.Get("/prices/{symbol}", h.HandleGetPrice)
			r.Get("/orderbook/{symbol}", h.HandleGetOrderBook)
			r.Get("/selected", h.HandleGetSelected)
			r.Put("/selected", h.HandleSelectSymbol)
			r.Post("/refresh", h.HandleRefresh)

			// Predictions
			r.Get("/predictions", h.HandleGetPredictions)
			r.Get("/predictions/{symbol}", h.HandleGetPrediction)

			// Trades
			r.Get("/trades", h.HandleGetTrades)
			r.Post("/trades", h.HandleExecuteTrade)

			// News ticker
			r.Get("/ticker", h.HandleGetTicker)
			r.Get("/news", h.HandleGetNews)

			// Provider credentials
			r.Route("/settings", func(r chi.Router) {
				r.Get("/", h.HandleGetSettings)
				r.Put("/", h.HandleUpdateAPIKey)
				r.Delete("/", h.HandleResetSettings)
				r.Post("/{service}/test", h.HandleTestAPIKey)
				r.Delete("/{service}", h.HandleDeleteAPIKey)
			})
		})
	})

	return r
}
