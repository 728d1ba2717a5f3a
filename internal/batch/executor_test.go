package batch

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/hotquote"
	"github.com/ternarybob/vantage/internal/models"
)

// countingAnalyzer records how many runs each tuple triggered.
type countingAnalyzer struct {
	mu    sync.Mutex
	runs  map[string]int
	fail  map[string]bool
	delay time.Duration
}

func newCountingAnalyzer() *countingAnalyzer {
	return &countingAnalyzer{runs: make(map[string]int), fail: make(map[string]bool)}
}

func (a *countingAnalyzer) Analyze(ctx context.Context, input models.AnalysisInput) (*models.AnalysisBundle, error) {
	key := input.Ticker + "|" + input.Date
	a.mu.Lock()
	a.runs[key]++
	a.mu.Unlock()

	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	if a.fail[input.Ticker] {
		return nil, fmt.Errorf("upstream unavailable for %s", input.Ticker)
	}
	return &models.AnalysisBundle{
		Input: &models.AnalysisInput{Ticker: input.Ticker, Date: input.Date},
		Fetched: &models.FetchedData{FinnhubSummary: &models.FinnhubSummary{
			PriceMeta: &models.PriceMeta{Value: 100.5, AsOf: input.Date},
		}},
		Analysis: &models.Analysis{Action: &models.Action{
			Rating:      models.RatingHold,
			TargetPrice: 120.0,
		}},
		Momentum:      &models.MomentumMetrics{Score: 55, TrendLabel: "中性"},
		Institutional: &models.InstitutionalSnapshot{Signal: models.FlowSignal{Label: "持平"}},
	}, nil
}

// stubQuotes serves canned multi-symbol quotes.
type stubQuotes struct {
	mu      sync.Mutex
	pages   [][]string
	symbols map[string]float64
}

func (s *stubQuotes) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	return nil, fmt.Errorf("single quote not expected in batch prefetch")
}

func (s *stubQuotes) Quotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error) {
	s.mu.Lock()
	s.pages = append(s.pages, symbols)
	s.mu.Unlock()

	out := make(map[string]*models.Quote, len(symbols))
	for _, symbol := range symbols {
		if price, ok := s.symbols[symbol]; ok {
			out[symbol] = &models.Quote{Symbol: symbol, Price: price, Timestamp: time.Now()}
		}
	}
	return out, nil
}

func newTestExecutor(analyzer Analyzer, quotes *stubQuotes, hot *hotquote.Cache) *Executor {
	return NewExecutor(common.NewDefaultConfig(), arbor.NewLogger(), analyzer, quotes, hot)
}

func TestRunMemoizesDuplicateRows(t *testing.T) {
	analyzer := newCountingAnalyzer()
	analyzer.delay = 10 * time.Millisecond
	exec := newTestExecutor(analyzer, nil, nil)

	rows := []Row{
		{Ticker: "NVDA", Date: "2024-01-02"},
		{Ticker: "NVDA", Date: "2024-01-02"},
		{Ticker: "nvda", Date: "2024-01-02"}, // same tuple after normalization
		{Ticker: "AAPL", Date: "2024-01-02"},
	}
	results := exec.Run(context.Background(), rows, "metrics-only")

	require.Len(t, results, 4)
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.NotNil(t, r.Bundle)
	}
	assert.Equal(t, 1, analyzer.runs["NVDA|2024-01-02"])
	assert.Equal(t, 1, analyzer.runs["AAPL|2024-01-02"])
}

func TestRunCarriesErrorsAsRows(t *testing.T) {
	analyzer := newCountingAnalyzer()
	analyzer.fail["BADCO"] = true
	exec := newTestExecutor(analyzer, nil, nil)

	rows := []Row{
		{Ticker: "NVDA", Date: "2024-01-02"},
		{Ticker: "BADCO", Date: "2024-01-02"},
	}
	results := exec.Run(context.Background(), rows, "metrics-only")

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
}

func TestPrefetchPopulatesHotCache(t *testing.T) {
	quotes := &stubQuotes{symbols: map[string]float64{"NVDA": 900, "AAPL": 190}}
	hot := hotquote.New(time.Minute)
	exec := newTestExecutor(newCountingAnalyzer(), quotes, hot)

	today := common.DayKey(time.Now())
	rows := []Row{
		{Ticker: "NVDA"},                     // empty date = today
		{Ticker: "AAPL", Date: today},        // explicit today
		{Ticker: "MSFT", Date: "2024-01-02"}, // historical, not prefetched
	}
	exec.Run(context.Background(), rows, "metrics-only")

	require.Len(t, quotes.pages, 1)
	assert.ElementsMatch(t, []string{"NVDA", "AAPL"}, quotes.pages[0])

	q, ok := hot.Get(hotquote.Key("NVDA", today))
	require.True(t, ok)
	assert.Equal(t, 900.0, q.Price)
	_, ok = hot.Get(hotquote.Key("MSFT", today))
	assert.False(t, ok)
}

func TestPrefetchPagesAtFifty(t *testing.T) {
	quotes := &stubQuotes{symbols: map[string]float64{}}
	hot := hotquote.New(time.Minute)
	exec := newTestExecutor(newCountingAnalyzer(), quotes, hot)

	rows := make([]Row, 0, 60)
	for i := 0; i < 60; i++ {
		rows = append(rows, Row{Ticker: fmt.Sprintf("SYM%d", i)})
	}
	exec.prefetchQuotes(context.Background(), rows)

	require.Len(t, quotes.pages, 2)
	assert.Len(t, quotes.pages[0], 50)
	assert.Len(t, quotes.pages[1], 10)
}

func TestResolveConcurrency(t *testing.T) {
	exec := newTestExecutor(newCountingAnalyzer(), nil, nil)
	exec.config.Batch.Concurrency = 4

	assert.Equal(t, 4, exec.resolveConcurrency("full"))
	assert.Equal(t, 2, exec.resolveConcurrency("metrics-only"))
	assert.Equal(t, 2, exec.resolveConcurrency("cached-only"))

	exec.config.Batch.Concurrency = 1
	assert.Equal(t, 1, exec.resolveConcurrency("metrics-only"))
	assert.Equal(t, 1, exec.resolveConcurrency("cached-only"))
}

func TestCSVSourceParsesRows(t *testing.T) {
	input := "ticker,date,model\nNVDA,2024-01-02\naapl,2024-01-03,claude-sonnet-4-20250514\n\nMSFT\n"
	source, err := NewRowSource("upload.csv", strings.NewReader(input))
	require.NoError(t, err)

	rows, err := source.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Row{Ticker: "NVDA", Date: "2024-01-02"}, rows[0])
	assert.Equal(t, Row{Ticker: "aapl", Date: "2024-01-03", Model: "claude-sonnet-4-20250514"}, rows[1])
	assert.Equal(t, Row{Ticker: "MSFT"}, rows[2])
}

func TestRowSourceRejectsSpreadsheets(t *testing.T) {
	_, err := NewRowSource("upload.xlsx", strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CSV")
}

func TestWriteCSVOneRowPerInput(t *testing.T) {
	results := []Result{
		{
			Row: Row{Ticker: "NVDA", Date: "2024-01-02"},
			Bundle: &models.AnalysisBundle{
				Input: &models.AnalysisInput{Ticker: "NVDA", Date: "2024-01-02"},
				Fetched: &models.FetchedData{FinnhubSummary: &models.FinnhubSummary{
					PriceMeta: &models.PriceMeta{Value: 900.25},
				}},
				Analysis: &models.Analysis{Action: &models.Action{
					Rating:      models.RatingBuy,
					TargetPrice: 1050.5,
				}},
				AnalysisModel: "claude-sonnet-4-20250514",
				Momentum:      &models.MomentumMetrics{Score: 71.2, TrendLabel: "強勢"},
				Institutional: &models.InstitutionalSnapshot{Signal: models.FlowSignal{Label: "加碼"}},
				AnalystMetrics: &models.AnalystMetrics{
					TargetConsensus: 1000,
					RatingTrend:     "improving",
				},
			},
		},
		{Row: Row{Ticker: "BADCO", Date: "2024-01-02"}, Err: fmt.Errorf("upstream unavailable")},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3) // header + one row per input

	assert.Equal(t, strings.Join(outputColumns, ","), lines[0])
	assert.Contains(t, lines[1], "NVDA")
	assert.Contains(t, lines[1], "900.25")
	assert.Contains(t, lines[1], "1050.5")
	assert.Contains(t, lines[1], "BUY")
	assert.Contains(t, lines[1], "強勢")
	assert.Contains(t, lines[1], "加碼")
	assert.Contains(t, lines[2], "ERROR:upstream unavailable")
}

func TestWriteCSVFailedRowUsesRecommendationColumn(t *testing.T) {
	results := []Result{
		{Row: Row{Ticker: "BADCO", Date: "2024-01-02"}, Err: fmt.Errorf("upstream exploded")},
		{Row: Row{Ticker: "EMPTY", Date: "2024-01-02"}}, // nil bundle, no error
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	column := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		column[name] = i
	}
	require.Contains(t, column, "recommendation")

	assert.Equal(t, "ERROR:upstream exploded", records[1][column["recommendation"]])
	assert.Equal(t, "ERROR:no result", records[2][column["recommendation"]])
	for _, name := range []string{"current_price", "llm_target_price", "momentum_score"} {
		assert.Empty(t, records[1][column[name]])
	}
}
