package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
	"github.com/ternarybob/vantage/internal/services/deferred"
)

// memStore is an in-memory ResultStore.
type memStore struct {
	mu      sync.Mutex
	bundles map[string]*interfaces.AnalysisRecord
	llm     map[string]*interfaces.LLMCacheRecord
	now     func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		bundles: make(map[string]*interfaces.AnalysisRecord),
		llm:     make(map[string]*interfaces.LLMCacheRecord),
		now:     time.Now,
	}
}

func bundleKey(ticker, date, variant string) string {
	return strings.Join([]string{ticker, date, variant}, "|")
}

func (m *memStore) GetBundle(ctx context.Context, ticker, date, variant string) (*interfaces.AnalysisRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.bundles[bundleKey(ticker, date, variant)]
	if !ok {
		return nil, interfaces.ErrKeyNotFound
	}
	return record, nil
}

func (m *memStore) PutBundle(ctx context.Context, record *interfaces.AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.UpdatedAt = m.now()
	m.bundles[bundleKey(record.Ticker, record.Date, record.ModelVariant)] = record
	return nil
}

func (m *memStore) DeleteVariants(ctx context.Context, ticker, date string, variants []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for _, variant := range variants {
		key := bundleKey(ticker, date, variant)
		if _, ok := m.bundles[key]; ok {
			delete(m.bundles, key)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memStore) GetLLMOutput(ctx context.Context, hash string) (*interfaces.LLMCacheRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.llm[hash]
	if !ok {
		return nil, interfaces.ErrKeyNotFound
	}
	return record, nil
}

func (m *memStore) PutLLMOutput(ctx context.Context, record *interfaces.LLMCacheRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.llm[record.Hash] = record
	return nil
}

// stubBuilder serves canned fragments and counts builds.
type stubBuilder struct {
	mu            sync.Mutex
	priceBuilds   int
	newsBuilds    int
	momentumScore float64
	instLabel     string
}

func (b *stubBuilder) BuildPriceMeta(ctx context.Context, ticker string, baseline time.Time) *models.PriceMeta {
	b.mu.Lock()
	b.priceBuilds++
	b.mu.Unlock()
	return &models.PriceMeta{Value: 100.0, AsOf: common.DayKey(baseline), Source: "fmp_historical", Kind: models.PriceKindHistorical}
}

func (b *stubBuilder) BuildFilings(ctx context.Context, ticker string, baseline time.Time, maxFilings int) ([]models.FilingRef, []models.FilingSummary) {
	return []models.FilingRef{{Form: "10-Q", FilingDate: "2025-10-30"}},
		[]models.FilingSummary{{Form: "10-Q", FilingDate: "2025-10-30", MDASummary: "摘要", SummaryKind: models.SummaryKindLLM}}
}

func (b *stubBuilder) BuildMomentum(ctx context.Context, ticker string, baseline time.Time) *models.MomentumMetrics {
	score := b.momentumScore
	if score == 0 {
		score = 60
	}
	trend := models.TrendNeutral
	return &models.MomentumMetrics{Score: score, Trend: trend, TrendLabel: trend.Label()}
}

func (b *stubBuilder) BuildInstitutional(ctx context.Context, ticker string, baseline time.Time) *models.InstitutionalSnapshot {
	label := b.instLabel
	if label == "" {
		label = "持平"
	}
	return &models.InstitutionalSnapshot{Signal: models.FlowSignal{Label: label}}
}

func (b *stubBuilder) BuildNews(ctx context.Context, ticker string, baseline time.Time, articleLimit int) *models.NewsFragment {
	b.mu.Lock()
	b.newsBuilds++
	b.mu.Unlock()
	return &models.NewsFragment{}
}

func (b *stubBuilder) BuildEarningsCall(ctx context.Context, ticker string, baseline time.Time) *models.EarningsCallFragment {
	return &models.EarningsCallFragment{Status: "missing"}
}

func (b *stubBuilder) BuildAnalystSignals(ctx context.Context, ticker string, baseline time.Time) *models.AnalystSignals {
	return &models.AnalystSignals{}
}

func (b *stubBuilder) BuildMacro(ctx context.Context, baseline time.Time) *models.MacroContext {
	return &models.MacroContext{}
}

// stubLLM returns a fixed analysis and counts calls.
type stubLLM struct {
	mu       sync.Mutex
	enabled  bool
	calls    int
	analysis *models.Analysis
}

func (s *stubLLM) Enabled() bool { return s.enabled }

func (s *stubLLM) Analyze(ctx context.Context, payload map[string]any, opts interfaces.AnalyzeOptions) (*models.Analysis, *models.LLMUsage, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	analysis := s.analysis
	if analysis == nil {
		analysis = &models.Analysis{Action: &models.Action{Rating: models.RatingHold, TargetPrice: 110, Confidence: models.ConfidenceMedium}}
	}
	return analysis, &models.LLMUsage{Model: opts.Model, TotalTokens: 100, TotalCost: 0.01}, nil
}

func (s *stubLLM) SummarizeMDA(ctx context.Context, ticker, form, text string) (string, string, error) {
	return "", models.SummaryKindFallback, nil
}

func (s *stubLLM) SummarizeTranscript(ctx context.Context, ticker, transcript string) (*models.EarningsCallSummary, error) {
	return nil, interfaces.ErrLLMDisabled
}

func (s *stubLLM) NewsKeywords(ctx context.Context, ticker string) ([]string, error) {
	return nil, interfaces.ErrLLMDisabled
}

func (s *stubLLM) NewsSentiment(ctx context.Context, ticker string, articles []models.NewsArticle) (*models.NewsSentiment, error) {
	return nil, interfaces.ErrLLMDisabled
}

func newTestOrchestrator(store *memStore, builder *stubBuilder, llm *stubLLM, queue *deferred.Queue) *Orchestrator {
	cfg := common.NewDefaultConfig()
	return New(cfg, arbor.NewLogger(), store, builder, llm, nil, queue)
}

func TestAnalyzeValidation(t *testing.T) {
	o := newTestOrchestrator(newMemStore(), &stubBuilder{}, &stubLLM{enabled: true}, nil)

	_, err := o.Analyze(context.Background(), models.AnalysisInput{Ticker: "bad ticker!", Date: "2025-11-07"})
	assert.True(t, interfaces.IsValidation(err))

	_, err = o.Analyze(context.Background(), models.AnalysisInput{Ticker: "NVDA", Date: "2999-01-01"})
	assert.True(t, interfaces.IsValidation(err))

	_, err = o.Analyze(context.Background(), models.AnalysisInput{Ticker: "NVDA", Date: "2025-11-07", Mode: "turbo"})
	assert.True(t, interfaces.IsValidation(err))
}

func TestAnalyzeCachedOnlyMiss(t *testing.T) {
	llm := &stubLLM{enabled: true}
	o := newTestOrchestrator(newMemStore(), &stubBuilder{}, llm, nil)

	_, err := o.Analyze(context.Background(), models.AnalysisInput{Ticker: "NVDA", Date: "2025-11-07", Mode: ModeCachedOnly})
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)
	assert.Zero(t, llm.calls)
}

func TestAnalyzeFullRunsLLMAndPersists(t *testing.T) {
	store := newMemStore()
	llm := &stubLLM{enabled: true}
	o := newTestOrchestrator(store, &stubBuilder{}, llm, nil)

	bundle, err := o.Analyze(context.Background(), models.AnalysisInput{Ticker: "nvda", Date: "2025-11-07"})
	require.NoError(t, err)
	require.NotNil(t, bundle.Analysis)
	assert.Equal(t, models.RatingHold, bundle.Analysis.Action.Rating)
	assert.Equal(t, 1, llm.calls)
	assert.NotNil(t, bundle.Inputs)

	variant := o.defaultModel() + "__full"
	record, err := store.GetBundle(context.Background(), "NVDA", "2025-11-07", variant)
	require.NoError(t, err)
	assert.NotNil(t, record.Bundle.Analysis)

	// Second identical request inside the TTL window is served from the
	// store without another model call.
	_, err = o.Analyze(context.Background(), models.AnalysisInput{Ticker: "NVDA", Date: "2025-11-07"})
	require.NoError(t, err)
	assert.Equal(t, 1, llm.calls)
}

func TestAnalyzeGuardrailClamp(t *testing.T) {
	store := newMemStore()
	llm := &stubLLM{
		enabled: true,
		analysis: &models.Analysis{Action: &models.Action{
			Rating:      models.RatingBuy,
			TargetPrice: 200.0,
			Confidence:  models.ConfidenceMedium,
		}},
	}
	builder := &stubBuilder{momentumScore: 10, instLabel: "減碼"}
	o := newTestOrchestrator(store, builder, llm, nil)

	bundle, err := o.Analyze(context.Background(), models.AnalysisInput{Ticker: "NVDA", Date: "2025-11-07"})
	require.NoError(t, err)

	require.NotNil(t, bundle.Guardrails)
	assert.True(t, bundle.Guardrails.SevereMomentum)
	assert.True(t, bundle.Guardrails.SellingPressure)
	assert.Equal(t, 125.0, bundle.Analysis.Action.TargetPrice)
	assert.NotEmpty(t, bundle.Analysis.Action.GuardrailNote)
}

func TestAnalyzeMetricsOnlySkipsLLM(t *testing.T) {
	store := newMemStore()
	llm := &stubLLM{enabled: true}
	o := newTestOrchestrator(store, &stubBuilder{}, llm, nil)

	bundle, err := o.Analyze(context.Background(), models.AnalysisInput{Ticker: "NVDA", Date: "2025-11-07", Mode: ModeMetricsOnly})
	require.NoError(t, err)
	assert.Nil(t, bundle.Analysis)
	assert.Nil(t, bundle.LLMUsage)
	assert.Zero(t, llm.calls)

	variant := o.defaultModel() + "__metrics"
	_, err = store.GetBundle(context.Background(), "NVDA", "2025-11-07", variant)
	assert.NoError(t, err)
}

func TestAnalyzeDeferredEnqueuesCompletion(t *testing.T) {
	store := newMemStore()
	llm := &stubLLM{enabled: true}
	queue := deferred.NewQueue(arbor.NewLogger())
	o := newTestOrchestrator(store, &stubBuilder{}, llm, queue)

	bundle, err := o.Analyze(context.Background(), models.AnalysisInput{Ticker: "NVDA", Date: "2025-11-07", Mode: ModeDeferred})
	require.NoError(t, err)
	assert.Nil(t, bundle.Analysis)
	assert.Equal(t, 1, queue.Len())

	// Drain the queue; the background completion runs the full pipeline.
	queue.Start(context.Background())
	defer queue.Stop()
	deadline := time.Now().Add(2 * time.Second)
	for queue.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	variant := o.defaultModel() + "__full"
	waitDeadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(waitDeadline) {
		if record, err := store.GetBundle(context.Background(), "NVDA", "2025-11-07", variant); err == nil && record.Bundle.Analysis != nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("deferred completion never persisted the full bundle")
}

func TestAnalyzeMetricsVariantReusedForFullRun(t *testing.T) {
	store := newMemStore()
	llm := &stubLLM{enabled: true}
	builder := &stubBuilder{}
	o := newTestOrchestrator(store, builder, llm, nil)

	_, err := o.Analyze(context.Background(), models.AnalysisInput{Ticker: "NVDA", Date: "2025-11-07", Mode: ModeMetricsOnly})
	require.NoError(t, err)
	newsBefore := builder.newsBuilds

	// The full run finds the fresh metrics bundle and reuses its fragments.
	bundle, err := o.Analyze(context.Background(), models.AnalysisInput{Ticker: "NVDA", Date: "2025-11-07"})
	require.NoError(t, err)
	assert.NotNil(t, bundle.Analysis)
	assert.Equal(t, newsBefore, builder.newsBuilds)
	assert.Equal(t, 1, llm.calls)
}

func TestAnalyzeFullWithoutProvider(t *testing.T) {
	o := newTestOrchestrator(newMemStore(), &stubBuilder{}, &stubLLM{enabled: false}, nil)

	_, err := o.Analyze(context.Background(), models.AnalysisInput{Ticker: "NVDA", Date: "2025-11-07"})
	assert.ErrorIs(t, err, interfaces.ErrLLMDisabled)
}
