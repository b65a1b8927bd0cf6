package mocks

// Quote is the fixture behind a GLOBAL_QUOTE response and the daily series
// generated for the same symbol.
type Quote struct {
	Symbol    string
	Price     float64
	PrevClose float64
	Volume    int64
	Day       string // YYYY-MM-DD
}

type globalQuote struct {
	Symbol    string `json:"01. symbol"`
	Price     string `json:"05. price"`
	Volume    string `json:"06. volume"`
	LatestDay string `json:"07. latest trading day"`
	PrevClose string `json:"08. previous close"`
}

type dailyEntry struct {
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// NewsArticle represents a NewsAPI article.
type NewsArticle struct {
	Source      NewsSource `json:"source"`
	Author      string     `json:"author"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	PublishedAt string     `json:"publishedAt"`
}

// NewsSource represents the source of a news article.
type NewsSource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
