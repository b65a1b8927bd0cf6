package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestNewsAPI(t *testing.T, handler http.HandlerFunc) *NewsAPIService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	service := NewNewsAPIService("test-api-key")
	service.baseURL = server.URL
	service.breakers = NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)
	service.retry = backoff{attempts: 3, initial: time.Millisecond, max: 5 * time.Millisecond, sleep: sleepContext}
	return service
}

const sampleNewsResponse = `{
	"status": "ok",
	"totalResults": 2,
	"articles": [
		{
			"source": {"id": "techcrunch", "name": "TechCrunch"},
			"author": "Sarah Perez",
			"title": "Chipmakers rally on AI demand",
			"description": "GPU vendors extend gains.",
			"url": "https://techcrunch.com/chips",
			"publishedAt": "2026-03-02T14:00:00Z"
		},
		{
			"source": {"id": null, "name": "Reuters"},
			"title": "Cloud spending accelerates",
			"publishedAt": "not a timestamp"
		}
	]
}`

func TestNewNewsAPIService(t *testing.T) {
	service := NewNewsAPIService("test-api-key")
	if service.apiKey != "test-api-key" {
		t.Errorf("apiKey = %v, want 'test-api-key'", service.apiKey)
	}
	if service.httpClient == nil {
		t.Error("httpClient should not be nil")
	}
	if service.baseURL != "https://newsapi.org/v2" {
		t.Errorf("baseURL = %v, want 'https://newsapi.org/v2'", service.baseURL)
	}
}

func TestNewsAPIService_GetHeadlines(t *testing.T) {
	service := newTestNewsAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/top-headlines" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-api-key" {
			t.Error("expected API key header")
		}
		if r.URL.Query().Get("pageSize") != "5" {
			t.Errorf("pageSize = %s, want 5", r.URL.Query().Get("pageSize"))
		}
		w.Write([]byte(sampleNewsResponse))
	})

	articles, err := service.GetHeadlines(context.Background(), "nvidia", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}
	if articles[0].Source != "TechCrunch" || articles[0].Title != "Chipmakers rally on AI demand" {
		t.Errorf("unexpected first article: %+v", articles[0])
	}
	if articles[0].PublishedAt.Year() != 2026 {
		t.Errorf("expected parsed timestamp, got %v", articles[0].PublishedAt)
	}
	if articles[1].PublishedAt.IsZero() {
		t.Error("expected fallback timestamp for unparseable date")
	}
}

func TestNewsAPIService_GetNews(t *testing.T) {
	service := newTestNewsAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/everything" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("sortBy") != "publishedAt" {
			t.Error("expected sortBy=publishedAt")
		}
		w.Write([]byte(sampleNewsResponse))
	})

	articles, err := service.GetNews(context.Background(), "AMD", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 2 {
		t.Errorf("expected 2 articles, got %d", len(articles))
	}
}

func TestNewsAPIService_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	service := newTestNewsAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(sampleNewsResponse))
	})

	articles, err := service.GetHeadlines(context.Background(), "ai", 10)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if len(articles) != 2 {
		t.Errorf("expected 2 articles, got %d", len(articles))
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestNewsAPIService_PermanentErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
	}{
		{"unauthorized", http.StatusUnauthorized, map[string]string{"status": "error", "code": "apiKeyInvalid"}},
		{"error status in body", http.StatusOK, map[string]string{"status": "error", "code": "rateLimited", "message": "slow down"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			service := newTestNewsAPI(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(tt.body)
			})

			if _, err := service.GetHeadlines(context.Background(), "ai", 10); err == nil {
				t.Error("expected error")
			}
			if calls.Load() != 1 {
				t.Errorf("expected no retries, got %d calls", calls.Load())
			}
		})
	}
}

func TestNewsAPIService_ContextCancellation(t *testing.T) {
	service := newTestNewsAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleNewsResponse))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := service.GetHeadlines(ctx, "AAPL", 10); err == nil {
		t.Error("GetHeadlines should return error when context is cancelled")
	}
}

func TestClampNewsLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 10},
		{-5, 10},
		{25, 25},
		{150, 100},
	}
	for _, tt := range tests {
		if got := clampNewsLimit(tt.in); got != tt.want {
			t.Errorf("clampNewsLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNewsAPIService_WithBaseURL(t *testing.T) {
	service := NewNewsAPIService("k").WithBaseURL("http://localhost:9999/v2/")
	if service.baseURL != "http://localhost:9999/v2" {
		t.Errorf("baseURL = %v, want trailing slash trimmed", service.baseURL)
	}
}
