package app

import (
	"context"
	"time"

	"ai-exchange/models"
)

// Ticker is the news ticker state shown by the UI
type Ticker struct {
	Current   *models.NewsArticle `json:"current"`
	Index     int                 `json:"index"`
	Total     int                 `json:"total"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// RotateTicker advances the ticker by one headline, wrapping around. The
// headline list is reloaded when it is empty and each time the rotation
// wraps, so the news source is queried once per full rotation. A failed
// reload keeps the previous headlines.
func (a *App) RotateTicker(ctx context.Context) error {
	a.tickerMu.RLock()
	reload := len(a.headlines) == 0 || a.tickerPos+1 >= len(a.headlines)
	a.tickerMu.RUnlock()

	var fresh []models.NewsArticle
	if reload {
		articles, err := a.news.GetHeadlines(ctx, a.cfg.News.Query, a.cfg.News.Limit)
		if err != nil {
			a.log.Warn("Failed to load headlines, keeping previous", "error", err)
		} else {
			fresh = articles
		}
	}

	a.tickerMu.Lock()
	defer a.tickerMu.Unlock()

	switch {
	case len(fresh) > 0:
		a.headlines = fresh
		a.tickerPos = 0
	case len(a.headlines) > 0:
		a.tickerPos = (a.tickerPos + 1) % len(a.headlines)
	}
	a.tickerAt = a.now()
	return nil
}

// Ticker returns the headline currently shown
func (a *App) Ticker() Ticker {
	a.tickerMu.RLock()
	defer a.tickerMu.RUnlock()

	t := Ticker{Index: a.tickerPos, Total: len(a.headlines), UpdatedAt: a.tickerAt}
	if len(a.headlines) > 0 {
		current := a.headlines[a.tickerPos]
		t.Current = &current
	}
	return t
}

// News returns the full headline rotation
func (a *App) News() []models.NewsArticle {
	a.tickerMu.RLock()
	defer a.tickerMu.RUnlock()

	news := make([]models.NewsArticle, len(a.headlines))
	copy(news, a.headlines)
	return news
}
