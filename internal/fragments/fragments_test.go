package fragments

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/vantage/internal/models"
)

func TestDeriveRatingTrend(t *testing.T) {
	ratings := &models.Ratings{
		Historical: []models.RatingEntry{
			{Date: "2025-11-01", Score: 4.0},
			{Date: "2025-10-20", Score: 3.8}, // too recent to anchor
			{Date: "2025-09-15", Score: 3.0}, // first entry >= 30 days older
			{Date: "2025-06-01", Score: 4.5},
		},
	}

	deriveRatingTrend(ratings)

	assert.Equal(t, "improving", ratings.Trend)
	assert.Equal(t, 1.0, ratings.TrendDelta)
	assert.Equal(t, 30, ratings.TrendWindowDays)
}

func TestDeriveRatingTrendDeteriorating(t *testing.T) {
	ratings := &models.Ratings{
		Historical: []models.RatingEntry{
			{Date: "2025-11-01", Score: 2.0},
			{Date: "2025-09-01", Score: 3.5},
		},
	}

	deriveRatingTrend(ratings)
	assert.Equal(t, "deteriorating", ratings.Trend)
}

func TestDeriveRatingTrendNoAnchor(t *testing.T) {
	ratings := &models.Ratings{
		Historical: []models.RatingEntry{
			{Date: "2025-11-01", Score: 4.0},
			{Date: "2025-10-25", Score: 3.0},
		},
	}

	deriveRatingTrend(ratings)
	assert.Empty(t, ratings.Trend)
}

func TestInflightGroupCollapses(t *testing.T) {
	g := newInflightGroup()
	var executions int32
	var wg sync.WaitGroup

	block := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.do(context.Background(), "NVDA", func() *models.AnalystSignals {
				atomic.AddInt32(&executions, 1)
				<-block
				return &models.AnalystSignals{}
			})
		}()
	}

	// Let all callers reach the group before releasing the first.
	time.Sleep(50 * time.Millisecond)
	close(block)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&executions))
}

func TestDedupeArticlesKeepsHighestWeight(t *testing.T) {
	articles := []models.NewsArticle{
		{Title: "NVDA beats estimates", URL: "https://a.example/1", Source: "finnhub", Weight: 0.8},
		{Title: "NVDA beats estimates", URL: "https://b.example/2", Source: "fmp", Weight: 1.0},
		{Title: "Guidance raised", URL: "https://a.example/3", Weight: 0.8},
		{Title: "Guidance raised", URL: "https://a.example/3", Weight: 0.8},
	}

	out := dedupeArticles(articles)
	require.Len(t, out, 2)
	assert.Equal(t, "fmp", out[0].Source) // duplicate title resolved to the heavier source
	assert.Equal(t, "Guidance raised", out[1].Title)
}

func TestFilterBySymbol(t *testing.T) {
	articles := []models.NewsArticle{
		{Title: "a", Symbols: "NVDA,AMD"},
		{Title: "b", Symbols: "AAPL"},
		{Title: "c", Symbols: ""},
	}

	out := filterBySymbol(articles, "nvda")
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Title)
	assert.Equal(t, "c", out[1].Title)
}

func TestBuildNewsCachedAbsenceKeepsShape(t *testing.T) {
	svc := newTestService(Providers{
		FMPNews:  &stubNews{},
		FinnNews: &stubNews{},
	})
	baseline := time.Date(2025, 11, 7, 0, 0, 0, 0, time.UTC)

	first := svc.BuildNews(context.Background(), "NVDA", baseline, 4)
	require.NotNil(t, first)
	assert.NotEmpty(t, first.Keywords)
	assert.Empty(t, first.Articles)

	// Second call hits the cached absence sentinel; the fragment shape must
	// match the freshly computed empty one.
	second := svc.BuildNews(context.Background(), "NVDA", baseline, 4)
	require.NotNil(t, second)
	assert.NotEmpty(t, second.Keywords)
	assert.Empty(t, second.Articles)
}

func TestBuildSnapshotSignals(t *testing.T) {
	rows := []models.HolderRow{
		{Holder: "BLACKROCK", Shares: 100, Value: 1000, ChangeShares: 60},
		{Holder: "VANGUARD", Shares: 90, Value: 900, ChangeShares: -10},
	}

	snap := buildSnapshot("NVDA", rows, 50, 3, 2025, 0)
	assert.Equal(t, models.SignalAccumulate, snap.Signal.Signal)
	assert.Equal(t, "加碼", snap.Signal.Label)
	assert.Equal(t, 50.0, snap.Signal.NetShares)
	assert.Equal(t, "2025-09-30", snap.AsOf)

	snap = buildSnapshot("NVDA", rows, -50, 1, 2025, 1)
	assert.Equal(t, "減碼", snap.Signal.Label)
	assert.Equal(t, "2025-03-31", snap.AsOf)
	assert.Equal(t, 1, snap.Metrics.QuarterOffset)

	snap = buildSnapshot("NVDA", rows, 0, 2, 2025, 0)
	assert.Equal(t, "持平", snap.Signal.Label)
	assert.Equal(t, models.SignalFlat, snap.Signal.Signal)
	assert.Equal(t, "2025-06-30", snap.AsOf)
}

func TestQuarterEnd(t *testing.T) {
	assert.Equal(t, "2025-03-31", quarterEnd(1, 2025))
	assert.Equal(t, "2025-06-30", quarterEnd(2, 2025))
	assert.Equal(t, "2025-09-30", quarterEnd(3, 2025))
	assert.Equal(t, "2025-12-31", quarterEnd(4, 2025))
}

func TestHistoricalPriceWalksBack(t *testing.T) {
	// Baseline Monday 2025-11-10; bars exist only two trading days earlier.
	hist := &stubHistorical{bars: map[string]models.DailyBar{
		"2025-11-06": {Date: "2025-11-06", Close: 895.0},
	}}
	svc := newTestService(Providers{Historical: hist, Chart: &stubChart{}})

	baseline := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return time.Date(2025, 11, 12, 0, 0, 0, 0, time.UTC) }

	meta := svc.BuildPriceMeta(context.Background(), "NVDA", baseline)
	require.NotNil(t, meta)
	assert.Equal(t, models.PriceKindHistorical, meta.Kind)
	assert.Equal(t, "fmp_historical", meta.Source)
	assert.Equal(t, 895.0, meta.Value)
	assert.Equal(t, "2025-11-06", meta.AsOf)
	assert.True(t, meta.Extended)
	// Walked 2025-11-10 -> 11-07 -> 11-06
	assert.Equal(t, []string{"2025-11-10", "2025-11-07", "2025-11-06"}, hist.eodCalls)
}

func TestHistoricalPriceFallsBackToChart(t *testing.T) {
	hist := &stubHistorical{bars: map[string]models.DailyBar{}}
	chart := &stubChart{bar: &models.DailyBar{Date: "2025-11-07", Close: 890}}
	svc := newTestService(Providers{Historical: hist, Chart: chart})
	svc.now = func() time.Time { return time.Date(2025, 11, 12, 0, 0, 0, 0, time.UTC) }

	meta := svc.BuildPriceMeta(context.Background(), "NVDA", time.Date(2025, 11, 7, 0, 0, 0, 0, time.UTC))
	require.NotNil(t, meta)
	assert.Equal(t, "yahoo_chart", meta.Source)
	assert.Equal(t, models.PriceKindHistorical, meta.Kind)
}

func TestRealtimePriceUsesHotCache(t *testing.T) {
	quotes := &stubQuotes{quote: &models.Quote{Symbol: "NVDA", Price: 900, Timestamp: time.Now()}}
	svc := newTestService(Providers{Quotes: quotes, Chart: &stubChart{}})

	now := time.Date(2025, 11, 10, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	baseline := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)

	first := svc.BuildPriceMeta(context.Background(), "NVDA", baseline)
	require.NotNil(t, first)
	assert.Equal(t, "fmp_live", first.Source)
	assert.Equal(t, models.PriceKindRealtime, first.Kind)

	second := svc.BuildPriceMeta(context.Background(), "NVDA", baseline)
	require.NotNil(t, second)
	assert.Equal(t, "hot_quote", second.Source)
	assert.Equal(t, 1, quotes.calls)
}
