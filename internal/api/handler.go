package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"ai-exchange/config"
	"ai-exchange/internal/app"
	"ai-exchange/internal/settings"
	"ai-exchange/models"
	"ai-exchange/orderbook"
	"ai-exchange/services"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.-]+$`)

// Handler contains the HTTP handlers
type Handler struct {
	app       *app.App
	cfg       *config.Config
	settings  *settings.Store
	validator *settings.Validator
	breakers  *services.CircuitBreakerRegistry
}

// NewHandler creates a new handler instance
func NewHandler(application *app.App, cfg *config.Config) *Handler {
	return &Handler{
		app:       application,
		cfg:       cfg,
		validator: settings.NewValidator(),
	}
}

// WithSettings enables the credential endpoints
func (h *Handler) WithSettings(store *settings.Store) *Handler {
	h.settings = store
	return h
}

// WithValidator replaces the credential validator
func (h *Handler) WithValidator(v *settings.Validator) *Handler {
	h.validator = v
	return h
}

// WithBreakers sets the circuit breaker registry reported by the health check.
// Without one the global registry is used.
func (h *Handler) WithBreakers(r *services.CircuitBreakerRegistry) *Handler {
	h.breakers = r
	return h
}

// HandleHealth returns the health status of the engine and its dependencies
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
	}
	deps := map[string]string{}

	switch err := h.app.JournalHealth(r.Context()); {
	case errors.Is(err, app.ErrNoJournal):
		deps["journal"] = "not_configured"
	case err != nil:
		deps["journal"] = "disconnected"
		status["status"] = "degraded"
	default:
		deps["journal"] = "connected"
	}

	feed := h.app.FeedStatus()
	if feed.Degraded {
		status["status"] = "degraded"
	}
	status["feed"] = feed

	breakers := h.breakers
	if breakers == nil {
		breakers = services.GetGlobalRegistry()
	}
	cbStatus := breakers.Status()
	status["circuit_breakers"] = cbStatus

	// Any open breaker means a provider is being skipped
	for _, cb := range cbStatus {
		if cb.State == "open" {
			status["status"] = "degraded"
			break
		}
	}

	status["services"] = deps
	status["last_refresh"] = h.app.LastRefresh()
	h.jsonResponse(w, status)
}

// HandleGetPortfolio returns the marked portfolio
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.app.Portfolio())
}

// HandleGetPositions returns the open positions
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.app.Positions())
}

// HandleGetUniverse returns the tradable symbols and the selected one
func (h *Handler) HandleGetUniverse(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]interface{}{
		"symbols":  h.app.Universe(),
		"selected": h.app.SelectedSymbol(),
	})
}

// HandleGetPrices returns the latest price of every symbol
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.app.Prices())
}

// HandleGetPrice returns the latest price of one symbol
func (h *Handler) HandleGetPrice(w http.ResponseWriter, r *http.Request) {
	symbol, ok := h.symbolParam(w, r)
	if !ok {
		return
	}

	price, found := h.app.Price(symbol)
	if !found {
		h.jsonError(w, fmt.Sprintf("no price for %s", symbol), http.StatusNotFound)
		return
	}
	h.jsonResponse(w, price)
}

// HandleGetOrderBook returns the order book of a symbol. The levels query
// parameter overrides the configured depth.
func (h *Handler) HandleGetOrderBook(w http.ResponseWriter, r *http.Request) {
	symbol, ok := h.symbolParam(w, r)
	if !ok {
		return
	}

	levels := 0
	if raw := r.URL.Query().Get("levels"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > orderbook.MaxLevels {
			h.jsonError(w, fmt.Sprintf("levels must be between 1 and %d", orderbook.MaxLevels), http.StatusBadRequest)
			return
		}
		levels = n
	}

	book, err := h.app.OrderBook(r.Context(), symbol, levels)
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonResponse(w, book)
}

// SelectRequest changes the selected symbol
type SelectRequest struct {
	Symbol string `json:"symbol"`
}

// HandleGetSelected returns the selected symbol
func (h *Handler) HandleGetSelected(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, SelectRequest{Symbol: h.app.SelectedSymbol()})
}

// HandleSelectSymbol changes the symbol whose book is kept fresh
func (h *Handler) HandleSelectSymbol(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}

	if err := h.app.SelectSymbol(req.Symbol); err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonResponse(w, SelectRequest{Symbol: h.app.SelectedSymbol()})
}

// HandleRefresh runs a market refresh now
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	err := h.app.RefreshMarket(r.Context())
	switch {
	case errors.Is(err, app.ErrRefreshInProgress):
		h.jsonResponse(w, StatusResponse{Status: "skipped", Message: err.Error()})
	case err != nil:
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
	default:
		h.jsonResponse(w, StatusResponse{Status: "refreshed"})
	}
}

// HandleGetPredictions returns the latest prediction of every symbol
func (h *Handler) HandleGetPredictions(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.app.Predictions())
}

// HandleGetPrediction returns the latest prediction of one symbol
func (h *Handler) HandleGetPrediction(w http.ResponseWriter, r *http.Request) {
	symbol, ok := h.symbolParam(w, r)
	if !ok {
		return
	}

	p, found := h.app.Prediction(symbol)
	if !found {
		h.jsonError(w, fmt.Sprintf("no prediction for %s", symbol), http.StatusNotFound)
		return
	}
	h.jsonResponse(w, p)
}

// HandleExecuteTrade executes a trade intent. Rejected intents are reported
// in the result body with a 200 status; only an unreadable body is a 400.
func (h *Handler) HandleExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var intent models.TradeIntent
	if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
		h.jsonError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}

	h.jsonResponse(w, h.app.ExecuteTrade(r.Context(), intent))
}

// HandleGetTrades returns recent trades, from the session by default or from
// the journal with source=journal
func (h *Handler) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	limit := h.ParseLimitParam(r, 50)

	if r.URL.Query().Get("source") != "journal" {
		h.jsonResponse(w, h.app.Trades(limit))
		return
	}

	trades, err := h.app.JournalTrades(r.Context(), limit)
	if errors.Is(err, app.ErrNoJournal) {
		h.jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []models.Trade{}
	}
	h.jsonResponse(w, trades)
}

// HandleGetTicker returns the headline currently shown
func (h *Handler) HandleGetTicker(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.app.Ticker())
}

// HandleGetNews returns every headline in the rotation
func (h *Handler) HandleGetNews(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.app.News())
}

// ValidateSymbol validates a stock symbol
func (h *Handler) ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	if len(symbol) > 10 {
		return fmt.Errorf("symbol too long (max 10 characters)")
	}

	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format (alphanumeric, dots, and dashes only)")
	}

	return nil
}

// ParseLimitParam parses the limit query parameter
func (h *Handler) ParseLimitParam(r *http.Request, defaultLimit int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			return l
		}
	}
	return defaultLimit
}

// symbolParam reads and validates the {symbol} URL parameter, writing a 400
// when it is malformed
func (h *Handler) symbolParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	if err := h.ValidateSymbol(symbol); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return symbol, true
}

// engineError maps engine errors to status codes
func (h *Handler) engineError(w http.ResponseWriter, err error) {
	switch models.KindOf(err) {
	case models.KindInvalidIntent:
		h.jsonError(w, err.Error(), http.StatusBadRequest)
	case models.KindFeedUnavailable:
		h.jsonError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// StatusResponse represents a status response
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
