package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ai-exchange/models"
	"ai-exchange/observability"
)

// NewsAPIService handles communication with NewsAPI.org
type NewsAPIService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	breakers   *CircuitBreakerRegistry
	retry      backoff
}

// NewNewsAPIService creates a new NewsAPIService instance
func NewNewsAPIService(apiKey string) *NewsAPIService {
	return &NewsAPIService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://newsapi.org/v2",
		breakers:   GetGlobalRegistry(),
		retry:      newsBackoff,
	}
}

// WithBaseURL points the service at another NewsAPI compatible endpoint
func (s *NewsAPIService) WithBaseURL(baseURL string) *NewsAPIService {
	s.baseURL = strings.TrimRight(baseURL, "/")
	return s
}

// NewsAPIResponse represents the response from NewsAPI
type NewsAPIResponse struct {
	Status       string `json:"status"`
	Code         string `json:"code,omitempty"`
	Message      string `json:"message,omitempty"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Source struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"source"`
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// GetNews returns articles matching query from the everything endpoint
func (s *NewsAPIService) GetNews(ctx context.Context, query string, limit int) ([]models.NewsArticle, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", strconv.Itoa(clampNewsLimit(limit)))

	return s.fetch(ctx, "/everything", params)
}

// GetHeadlines returns top business headlines mentioning query
func (s *NewsAPIService) GetHeadlines(ctx context.Context, query string, limit int) ([]models.NewsArticle, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("country", "us")
	params.Set("category", "business")
	params.Set("pageSize", strconv.Itoa(clampNewsLimit(limit)))

	return s.fetch(ctx, "/top-headlines", params)
}

func clampNewsLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > 100 {
		return 100
	}
	return limit
}

func (s *NewsAPIService) fetch(ctx context.Context, path string, params url.Values) ([]models.NewsArticle, error) {
	return executeTyped(ctx, s.breakers, BreakerNewsAPI, func() ([]models.NewsArticle, error) {
		var articles []models.NewsArticle
		err := s.retry.run(ctx, "NewsAPI "+path, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path+"?"+params.Encode(), nil)
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			req.Header.Set("X-Api-Key", s.apiKey)

			resp, err := s.httpClient.Do(req)
			if err != nil {
				return transient(fmt.Errorf("failed to fetch news: %w", err))
			}
			defer resp.Body.Close()

			if err := checkStatus("NewsAPI", resp.StatusCode); err != nil {
				return err
			}

			var newsResp NewsAPIResponse
			if err := json.NewDecoder(resp.Body).Decode(&newsResp); err != nil {
				return transient(fmt.Errorf("failed to decode response: %w", err))
			}
			if newsResp.Status == "error" {
				return fmt.Errorf("NewsAPI error %s: %s", newsResp.Code, newsResp.Message)
			}

			articles = make([]models.NewsArticle, 0, len(newsResp.Articles))
			for _, item := range newsResp.Articles {
				publishedAt, err := time.Parse(time.RFC3339, item.PublishedAt)
				if err != nil {
					observability.Debug("unparseable article timestamp, using current time",
						"published_at", item.PublishedAt)
					publishedAt = time.Now()
				}

				articles = append(articles, models.NewsArticle{
					Title:       item.Title,
					Description: item.Description,
					URL:         item.URL,
					Source:      item.Source.Name,
					PublishedAt: publishedAt,
				})
			}
			return nil
		})
		return articles, err
	})
}
