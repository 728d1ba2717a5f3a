package fragments

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/hotquote"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

// memBlobCache is an in-memory BlobCache for builder tests.
type memBlobCache struct {
	mu      sync.Mutex
	entries map[string]interfaces.BlobEnvelope
}

func newMemBlobCache() *memBlobCache {
	return &memBlobCache{entries: make(map[string]interfaces.BlobEnvelope)}
}

func (m *memBlobCache) Get(ctx context.Context, key string, maxAge time.Duration) (*interfaces.BlobEnvelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[strings.ToLower(key)]
	if !ok {
		return nil, interfaces.ErrKeyNotFound
	}
	if maxAge > 0 && time.Since(entry.StoredAt) > maxAge {
		return nil, interfaces.ErrStale
	}
	return &entry, nil
}

func (m *memBlobCache) Put(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[strings.ToLower(key)] = interfaces.BlobEnvelope{
		Key: strings.ToLower(key), Payload: payload, StoredAt: time.Now(),
	}
	return nil
}

func (m *memBlobCache) PutEmpty(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[strings.ToLower(key)] = interfaces.BlobEnvelope{
		Key: strings.ToLower(key), Payload: []byte(`{"__empty":true}`), Empty: true, StoredAt: time.Now(),
	}
	return nil
}

func (m *memBlobCache) ClearTicker(ctx context.Context, ticker, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	needle := strings.ToLower(ticker)
	cleared := 0
	for key := range m.entries {
		if strings.Contains(key, needle) && (date == "" || strings.Contains(key, date)) {
			delete(m.entries, key)
			cleared++
		}
	}
	return cleared, nil
}

// stubLLM satisfies interfaces.LLMService without network calls.
type stubLLM struct {
	enabled bool
}

func (s *stubLLM) Enabled() bool { return s.enabled }

func (s *stubLLM) Analyze(ctx context.Context, payload map[string]any, opts interfaces.AnalyzeOptions) (*models.Analysis, *models.LLMUsage, error) {
	return &models.Analysis{Action: &models.Action{Rating: models.RatingHold}}, &models.LLMUsage{TotalTokens: 10}, nil
}

func (s *stubLLM) SummarizeMDA(ctx context.Context, ticker, form, text string) (string, string, error) {
	if !s.enabled {
		return "", models.SummaryKindFallback, nil
	}
	return "summary of " + form, models.SummaryKindLLM, nil
}

func (s *stubLLM) SummarizeTranscript(ctx context.Context, ticker, transcript string) (*models.EarningsCallSummary, error) {
	return &models.EarningsCallSummary{Summary: "call summary"}, nil
}

func (s *stubLLM) NewsKeywords(ctx context.Context, ticker string) ([]string, error) {
	return fallbackKeywords(ticker), nil
}

func (s *stubLLM) NewsSentiment(ctx context.Context, ticker string, articles []models.NewsArticle) (*models.NewsSentiment, error) {
	return &models.NewsSentiment{
		Sentiment:      models.SentimentNeutral,
		SentimentLabel: models.SentimentNeutral.Label(),
	}, nil
}

// stubHistorical serves a fixed bar map keyed by date.
type stubHistorical struct {
	bars     map[string]models.DailyBar
	series   []models.DailyBar
	eodCalls []string
}

func (s *stubHistorical) EODPrice(ctx context.Context, symbol string, date time.Time) (*models.DailyBar, error) {
	day := date.Format(common.DateLayout)
	s.eodCalls = append(s.eodCalls, day)
	if bar, ok := s.bars[day]; ok {
		return &bar, nil
	}
	return nil, interfaces.ErrKeyNotFound
}

func (s *stubHistorical) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.DailyBar, error) {
	if len(s.series) == 0 {
		return nil, interfaces.ErrKeyNotFound
	}
	return s.series, nil
}

// stubChart fails every call unless primed.
type stubChart struct {
	quote *models.Quote
	bar   *models.DailyBar
}

func (s *stubChart) ChartQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if s.quote == nil {
		return nil, interfaces.ErrKeyNotFound
	}
	return s.quote, nil
}

func (s *stubChart) ChartClose(ctx context.Context, symbol string, date time.Time) (*models.DailyBar, error) {
	if s.bar == nil {
		return nil, interfaces.ErrKeyNotFound
	}
	return s.bar, nil
}

// stubQuotes serves one fixed quote.
type stubQuotes struct {
	quote *models.Quote
	calls int
}

func (s *stubQuotes) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	s.calls++
	if s.quote == nil {
		return nil, interfaces.ErrKeyNotFound
	}
	return s.quote, nil
}

func (s *stubQuotes) Quotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error) {
	out := map[string]*models.Quote{}
	if s.quote != nil {
		out[s.quote.Symbol] = s.quote
	}
	return out, nil
}

// stubNews serves a fixed article list.
type stubNews struct {
	articles []models.NewsArticle
}

func (s *stubNews) News(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.NewsArticle, error) {
	return s.articles, nil
}

func testConfig() *common.Config {
	cfg := common.NewDefaultConfig()
	cfg.Retry.Attempts = 1
	cfg.Retry.DelayMS = 0
	return cfg
}

func newTestService(providers Providers) *Service {
	return NewService(testConfig(), arbor.NewLogger(), newMemBlobCache(), &stubLLM{enabled: true}, hotquote.New(45*time.Second), providers)
}
