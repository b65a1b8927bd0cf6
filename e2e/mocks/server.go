// Package mocks provides an HTTP mock of the market data and news providers
// used in E2E tests.
package mocks

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockServer serves Alpha Vantage quote and daily series requests on /query
// and NewsAPI headlines on /v2/top-headlines.
type MockServer struct {
	mu     sync.RWMutex
	server *httptest.Server

	quotes       map[string]Quote
	newsArticles []NewsArticle

	// Error injection
	alphaVantageStatus int
	alphaVantageNote   string
	newsAPIStatus      int

	// Request tracking for assertions
	requestLog []RequestLog
}

// RequestLog records incoming requests for test assertions.
type RequestLog struct {
	Method   string
	Path     string
	Function string
	Symbol   string
}

// NewMockServer creates a new mock server with default responses.
func NewMockServer() *MockServer {
	m := &MockServer{
		quotes:     make(map[string]Quote),
		requestLog: make([]RequestLog, 0),
	}
	m.setDefaults()
	m.server = httptest.NewServer(m)
	return m
}

// URL returns the mock server's base URL.
func (m *MockServer) URL() string {
	return m.server.URL
}

// AlphaVantageURL returns the query endpoint for the Alpha Vantage provider.
func (m *MockServer) AlphaVantageURL() string {
	return m.server.URL + "/query"
}

// NewsAPIURL returns the base URL for the NewsAPI service.
func (m *MockServer) NewsAPIURL() string {
	return m.server.URL + "/v2"
}

// Close shuts down the mock server.
func (m *MockServer) Close() {
	m.server.Close()
}

// ServeHTTP implements http.Handler to route requests to appropriate mock handlers.
func (m *MockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	m.mu.Lock()
	m.requestLog = append(m.requestLog, RequestLog{
		Method:   r.Method,
		Path:     r.URL.Path,
		Function: q.Get("function"),
		Symbol:   q.Get("symbol"),
	})
	m.mu.Unlock()

	switch {
	case r.URL.Path == "/query" && q.Get("function") == "GLOBAL_QUOTE":
		m.handleQuote(w, r)
	case r.URL.Path == "/query" && q.Get("function") == "TIME_SERIES_DAILY":
		m.handleDailySeries(w, r)
	case strings.HasSuffix(r.URL.Path, "/top-headlines") || strings.HasSuffix(r.URL.Path, "/everything"):
		m.handleNewsAPI(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// GetRequestLog returns all logged requests for assertions.
func (m *MockServer) GetRequestLog() []RequestLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RequestLog{}, m.requestLog...)
}

// CountRequests returns how many requests were made for an Alpha Vantage function.
func (m *MockServer) CountRequests(function string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, entry := range m.requestLog {
		if entry.Function == function {
			n++
		}
	}
	return n
}

// ClearRequestLog clears the request log.
func (m *MockServer) ClearRequestLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestLog = make([]RequestLog, 0)
}

// SetQuote sets the quote served for a symbol.
func (m *MockServer) SetQuote(q Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[strings.ToUpper(q.Symbol)] = q
}

// Quote returns the fixture for a symbol.
func (m *MockServer) Quote(symbol string) (Quote, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quotes[strings.ToUpper(symbol)]
	return q, ok
}

// SetAlphaVantageStatus makes every Alpha Vantage request fail with status.
// Zero restores normal responses.
func (m *MockServer) SetAlphaVantageStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alphaVantageStatus = status
}

// SetAlphaVantageNote makes every Alpha Vantage request return a throttling note.
func (m *MockServer) SetAlphaVantageNote(note string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alphaVantageNote = note
}

// SetNewsArticles sets the headlines served by NewsAPI.
func (m *MockServer) SetNewsArticles(articles []NewsArticle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newsArticles = articles
}

// SetNewsAPIStatus makes every NewsAPI request fail with status.
func (m *MockServer) SetNewsAPIStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newsAPIStatus = status
}

func (m *MockServer) setDefaults() {
	for _, q := range []Quote{
		{Symbol: "NVDA", Price: 875.40, PrevClose: 860.00, Volume: 41000000, Day: "2026-03-02"},
		{Symbol: "MSFT", Price: 410.50, PrevClose: 400.00, Volume: 22000000, Day: "2026-03-02"},
		{Symbol: "AMD", Price: 168.20, PrevClose: 171.10, Volume: 53000000, Day: "2026-03-02"},
	} {
		m.quotes[q.Symbol] = q
	}

	m.newsArticles = []NewsArticle{
		{
			Source:      NewsSource{ID: "reuters", Name: "Reuters"},
			Title:       "Chipmakers rally as AI demand stays strong",
			Description: "Semiconductor shares rose for a third session.",
			URL:         "https://example.com/chips",
			PublishedAt: "2026-03-02T14:30:00Z",
		},
		{
			Source:      NewsSource{ID: "bloomberg", Name: "Bloomberg"},
			Title:       "Cloud spending outlook lifts software names",
			Description: "Analysts raised estimates after earnings calls.",
			URL:         "https://example.com/cloud",
			PublishedAt: "2026-03-02T13:05:00Z",
		},
	}
}

// alphaVantageFault writes the injected failure, if any
func (m *MockServer) alphaVantageFault(w http.ResponseWriter) bool {
	m.mu.RLock()
	status, note := m.alphaVantageStatus, m.alphaVantageNote
	m.mu.RUnlock()

	switch {
	case status != 0:
		http.Error(w, "injected failure", status)
		return true
	case note != "":
		writeJSON(w, map[string]string{"Note": note})
		return true
	}
	return false
}

func (m *MockServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	if m.alphaVantageFault(w) {
		return
	}

	q, ok := m.Quote(r.URL.Query().Get("symbol"))
	if !ok {
		writeJSON(w, map[string]interface{}{"Global Quote": map[string]string{}})
		return
	}

	writeJSON(w, map[string]interface{}{
		"Global Quote": globalQuote{
			Symbol:    q.Symbol,
			Price:     formatPrice(q.Price),
			Volume:    strconv.FormatInt(q.Volume, 10),
			LatestDay: q.Day,
			PrevClose: formatPrice(q.PrevClose),
		},
	})
}

// handleDailySeries serves a gently rising series that ends the day before
// the quote's trading day at the previous close
func (m *MockServer) handleDailySeries(w http.ResponseWriter, r *http.Request) {
	if m.alphaVantageFault(w) {
		return
	}

	q, ok := m.Quote(r.URL.Query().Get("symbol"))
	if !ok {
		writeJSON(w, map[string]string{"Error Message": "Invalid API call"})
		return
	}

	last, err := time.Parse("2006-01-02", q.Day)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	const days = 40
	series := make(map[string]dailyEntry, days)
	for i := 1; i <= days; i++ {
		day := last.AddDate(0, 0, -i)
		closePrice := q.PrevClose * (1 - 0.002*float64(i-1))
		series[day.Format("2006-01-02")] = dailyEntry{
			Close:  formatPrice(closePrice),
			Volume: strconv.FormatInt(q.Volume, 10),
		}
	}

	writeJSON(w, map[string]interface{}{"Time Series (Daily)": series})
}

func (m *MockServer) handleNewsAPI(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	status := m.newsAPIStatus
	articles := m.newsArticles
	m.mu.RUnlock()

	if status != 0 {
		http.Error(w, "injected failure", status)
		return
	}

	writeJSON(w, map[string]interface{}{
		"status":       "ok",
		"totalResults": len(articles),
		"articles":     articles,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func formatPrice(p float64) string {
	return fmt.Sprintf("%.4f", p)
}
