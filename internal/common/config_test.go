package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 12, cfg.Analysis.RealtimeResultTTLHours)
	assert.Equal(t, 120, cfg.Analysis.HistoricalResultTTLDays)
	assert.Equal(t, 180, cfg.Analysis.FilingSummaryTTLDays)
	assert.Equal(t, 6, cfg.Analysis.NewsCacheTTLHours)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, 1500, cfg.Retry.DelayMS)
	assert.Equal(t, 3, cfg.Batch.Concurrency)
	assert.Equal(t, 2, cfg.Analysis.MaxFilingsForLLM)
	assert.Equal(t, 4, cfg.Analysis.NewsArticleLimit)
	assert.Equal(t, 1.25, cfg.Analysis.WeakSignalTargetCap)
	assert.Equal(t, 0.8, cfg.Analysis.WeakSignalTargetFloor)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vantage.toml")
	content := `
[server]
port = 9191

[analysis]
news_cache_ttl_hours = 2
max_filings_for_llm = 5

[batch]
concurrency = 7
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Analysis.NewsCacheTTLHours)
	assert.Equal(t, 5, cfg.Analysis.MaxFilingsForLLM)
	assert.Equal(t, 7, cfg.Batch.Concurrency)
	// Untouched values keep defaults
	assert.Equal(t, 120, cfg.Analysis.HistoricalResultTTLDays)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BATCH_CONCURRENCY", "5")
	t.Setenv("MOMENTUM_SEVERE_THRESHOLD", "15")
	t.Setenv("PREWARM_TICKERS", "nvda, aapl ,")

	cfg, err := LoadFromFile("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Batch.Concurrency)
	assert.Equal(t, 15.0, cfg.Analysis.MomentumSevereThreshold)
	assert.Equal(t, []string{"NVDA", "AAPL"}, cfg.Prewarm.Tickers)
}

func TestValidateRejectsInvertedGuardrails(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Analysis.WeakSignalTargetFloor = 1.5
	assert.Error(t, cfg.Validate())
}
