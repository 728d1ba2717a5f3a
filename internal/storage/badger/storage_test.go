package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	tmpDir := t.TempDir()
	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store}
}

func TestBlobCacheFreshness(t *testing.T) {
	db := newTestDB(t)
	cache := NewBlobCache(db, arbor.NewLogger())
	ctx := context.Background()

	_, err := cache.Get(ctx, "news_NVDA_2025-11-10", time.Hour)
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	require.NoError(t, cache.Put(ctx, "news_NVDA_2025-11-10", map[string]string{"headline": "up"}))

	entry, err := cache.Get(ctx, "news_NVDA_2025-11-10", time.Hour)
	require.NoError(t, err)
	assert.JSONEq(t, `{"headline":"up"}`, string(entry.Payload))

	// Case-insensitive keys
	entry, err = cache.Get(ctx, "NEWS_nvda_2025-11-10", time.Hour)
	require.NoError(t, err)
	assert.False(t, entry.Empty)

	// Age the entry past the TTL
	now := time.Now()
	cache.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = cache.Get(ctx, "news_NVDA_2025-11-10", time.Hour)
	assert.ErrorIs(t, err, interfaces.ErrStale)
}

func TestBlobCachePutEmpty(t *testing.T) {
	db := newTestDB(t)
	cache := NewBlobCache(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, cache.PutEmpty(ctx, "earnings_call_NVDA_q3_2025"))

	entry, err := cache.Get(ctx, "earnings_call_NVDA_q3_2025", time.Hour)
	require.NoError(t, err)
	assert.True(t, entry.Empty)
	assert.JSONEq(t, `{"__empty":true}`, string(entry.Payload))
}

func TestBlobCacheClearTicker(t *testing.T) {
	db := newTestDB(t)
	cache := NewBlobCache(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "news_NVDA_2025-11-10", 1))
	require.NoError(t, cache.Put(ctx, "momentum_NVDA_2025-11-09", 2))
	require.NoError(t, cache.Put(ctx, "news_AAPL_2025-11-10", 3))

	// Constrained to one date
	cleared, err := cache.ClearTicker(ctx, "NVDA", "2025-11-10")
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	// Remaining NVDA entry without date constraint
	cleared, err = cache.ClearTicker(ctx, "nvda", "")
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	// AAPL untouched; clear is idempotent
	cleared, err = cache.ClearTicker(ctx, "NVDA", "")
	require.NoError(t, err)
	assert.Equal(t, 0, cleared)

	_, err = cache.Get(ctx, "news_AAPL_2025-11-10", time.Hour)
	assert.NoError(t, err)
}

func TestResultStorageBundles(t *testing.T) {
	db := newTestDB(t)
	storage := NewResultStorage(db, arbor.NewLogger())
	ctx := context.Background()

	_, err := storage.GetBundle(ctx, "NVDA", "2025-11-10", "claude__full")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	record := &interfaces.AnalysisRecord{
		Ticker:       "NVDA",
		Date:         "2025-11-10",
		ModelVariant: "claude__full",
		Bundle: &models.AnalysisBundle{
			Input: &models.AnalysisInput{Ticker: "NVDA", Date: "2025-11-10"},
		},
	}
	require.NoError(t, storage.PutBundle(ctx, record))

	got, err := storage.GetBundle(ctx, "NVDA", "2025-11-10", "claude__full")
	require.NoError(t, err)
	assert.Equal(t, "NVDA", got.Bundle.Input.Ticker)
	assert.False(t, got.UpdatedAt.IsZero())

	// Upsert replaces
	record.Bundle.AnalysisModel = "claude-sonnet-4-20250514"
	require.NoError(t, storage.PutBundle(ctx, record))
	got, err = storage.GetBundle(ctx, "NVDA", "2025-11-10", "claude__full")
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-20250514", got.Bundle.AnalysisModel)
}

func TestResultStorageDeleteVariants(t *testing.T) {
	db := newTestDB(t)
	storage := NewResultStorage(db, arbor.NewLogger())
	ctx := context.Background()

	for _, variant := range []string{"claude", "claude__full", "claude__metrics"} {
		require.NoError(t, storage.PutBundle(ctx, &interfaces.AnalysisRecord{
			Ticker:       "NVDA",
			Date:         "2025-11-10",
			ModelVariant: variant,
			Bundle:       &models.AnalysisBundle{},
		}))
	}

	deleted, err := storage.DeleteVariants(ctx, "NVDA", "2025-11-10",
		[]string{"claude", "claude__full", "claude__metrics", "claude__missing"})
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	_, err = storage.GetBundle(ctx, "NVDA", "2025-11-10", "claude__full")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestResultStorageLLMCache(t *testing.T) {
	db := newTestDB(t)
	storage := NewResultStorage(db, arbor.NewLogger())
	ctx := context.Background()

	hash := "2ff1e1486ac59df44ac4c2d9b6d41f62a1d60ad9"
	_, err := storage.GetLLMOutput(ctx, hash)
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	require.NoError(t, storage.PutLLMOutput(ctx, &interfaces.LLMCacheRecord{
		Hash: hash,
		Output: &models.Analysis{
			Action: &models.Action{Rating: models.RatingBuy, TargetPrice: 1050},
		},
		Usage: &models.LLMUsage{TotalTokens: 1234, TotalCost: 0.02},
	}))

	got, err := storage.GetLLMOutput(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, models.RatingBuy, got.Output.Action.Rating)
	assert.Equal(t, 1234, got.Usage.TotalTokens)
}
