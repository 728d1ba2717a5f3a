package prewarm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/models"
)

type recordingAnalyzer struct {
	mu     sync.Mutex
	inputs []models.AnalysisInput
}

func (r *recordingAnalyzer) Analyze(ctx context.Context, input models.AnalysisInput) (*models.AnalysisBundle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, input)
	return &models.AnalysisBundle{}, nil
}

func (r *recordingAnalyzer) snapshot() []models.AnalysisInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AnalysisInput(nil), r.inputs...)
}

func TestStartRunsWatchlistAtStartup(t *testing.T) {
	analyzer := &recordingAnalyzer{}
	svc := NewService(common.PrewarmConfig{
		Tickers:       []string{"NVDA", "AAPL"},
		IntervalHours: 6,
	}, analyzer, arbor.NewLogger())

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(analyzer.snapshot()) == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	inputs := analyzer.snapshot()
	require.Len(t, inputs, 2)
	assert.Equal(t, "NVDA", inputs[0].Ticker)
	assert.Equal(t, "metrics-only", inputs[0].Mode)
	assert.Empty(t, inputs[0].Date) // baseline defaults to today downstream
}

func TestStartWithoutTickersIsNoop(t *testing.T) {
	analyzer := &recordingAnalyzer{}
	svc := NewService(common.PrewarmConfig{}, analyzer, arbor.NewLogger())

	require.NoError(t, svc.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, analyzer.snapshot())
}

func TestIncludeLLMSwitchesMode(t *testing.T) {
	analyzer := &recordingAnalyzer{}
	svc := NewService(common.PrewarmConfig{
		Tickers:    []string{"NVDA"},
		IncludeLLM: true,
	}, analyzer, arbor.NewLogger())

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(analyzer.snapshot()) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	inputs := analyzer.snapshot()
	require.Len(t, inputs, 1)
	assert.Equal(t, "full", inputs[0].Mode)
}
