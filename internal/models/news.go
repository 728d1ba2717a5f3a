package models

// NewsArticle is one canonical article record after dedup and filtering.
type NewsArticle struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Source      string  `json:"source"` // fmp | finnhub
	Publisher   string  `json:"publisher,omitempty"`
	PublishedAt string  `json:"published_at"`
	Summary     string  `json:"summary,omitempty"`
	Symbols     string  `json:"symbols,omitempty"`
	Weight      float64 `json:"weight"` // source trust weight used for dedup and ordering
}

// NewsSentiment is the LLM classification of the selected articles.
type NewsSentiment struct {
	Sentiment        Sentiment `json:"sentiment"`
	SentimentLabel   string    `json:"sentiment_label"` // 樂觀 | 中性 | 悲觀
	Summary          string    `json:"summary,omitempty"`
	SupportingEvents []string  `json:"supporting_events,omitempty"`
}

// NewsFragment is the news portion of the bundle.
type NewsFragment struct {
	Keywords  []string       `json:"keywords,omitempty"`
	Articles  []NewsArticle  `json:"articles,omitempty"`
	Sentiment *NewsSentiment `json:"sentiment,omitempty"`
	Error     string         `json:"error,omitempty"`
}
