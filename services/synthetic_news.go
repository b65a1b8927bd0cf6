package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"ai-exchange/models"
)

const syntheticNewsSource = "AI Exchange Wire"

// MarketSnapshot returns the state synthetic headlines are written from
type MarketSnapshot func() (map[string]models.StockPrediction, map[string]models.PricePoint)

// SyntheticNews writes ticker headlines from the engine's own predictions and
// prices. Used when no news API is configured.
type SyntheticNews struct {
	snapshot MarketSnapshot
	now      func() time.Time
}

// NewSyntheticNews creates a SyntheticNews reading from snapshot
func NewSyntheticNews(snapshot MarketSnapshot, now func() time.Time) *SyntheticNews {
	if now == nil {
		now = time.Now
	}
	return &SyntheticNews{snapshot: snapshot, now: now}
}

// GetHeadlines returns one headline per prediction (or price when no
// prediction exists), ordered by symbol. query is ignored.
func (n *SyntheticNews) GetHeadlines(ctx context.Context, query string, limit int) ([]models.NewsArticle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = clampNewsLimit(limit)

	predictions, prices := n.snapshot()
	symbols := make(map[string]bool, len(prices)+len(predictions))
	for s := range prices {
		symbols[s] = true
	}
	for s := range predictions {
		symbols[s] = true
	}
	ordered := make([]string, 0, len(symbols))
	for s := range symbols {
		ordered = append(ordered, s)
	}
	sort.Strings(ordered)

	publishedAt := n.now()
	articles := make([]models.NewsArticle, 0, min(limit, len(ordered)))
	for _, symbol := range ordered {
		if len(articles) == limit {
			break
		}
		prediction, hasPrediction := predictions[symbol]
		price, hasPrice := prices[symbol]

		var title, description string
		switch {
		case hasPrediction && prediction.Trend == models.TrendBullish:
			title = fmt.Sprintf("%s momentum builds as models see upside to %s", symbol, models.FormatMoney(prediction.PredictedPrice))
			description = fmt.Sprintf("Bullish call with %d%% confidence. %s", prediction.Confidence, prediction.Reasoning)
		case hasPrediction && prediction.Trend == models.TrendBearish:
			title = fmt.Sprintf("%s under pressure, models flag downside to %s", symbol, models.FormatMoney(prediction.PredictedPrice))
			description = fmt.Sprintf("Bearish call with %d%% confidence. %s", prediction.Confidence, prediction.Reasoning)
		case hasPrediction:
			title = fmt.Sprintf("%s holds steady near %s", symbol, models.FormatMoney(prediction.CurrentPrice))
			description = prediction.Reasoning
		default:
			title = fmt.Sprintf("%s trades at %s", symbol, models.FormatMoney(price.Price))
		}
		if hasPrice {
			description = strings.TrimSpace(fmt.Sprintf("%s Last move %s%%.", description, price.ChangePercent.StringFixed(2)))
		}

		articles = append(articles, models.NewsArticle{
			Title:       title,
			Description: description,
			Source:      syntheticNewsSource,
			Symbol:      symbol,
			PublishedAt: publishedAt,
		})
	}
	return articles, nil
}
