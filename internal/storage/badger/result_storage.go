package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/vantage/internal/interfaces"
)

// ResultStorage implements the durable analysis bundle index plus the LLM
// output cache.
type ResultStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewResultStorage creates a new ResultStorage instance
func NewResultStorage(db *BadgerDB, logger arbor.ILogger) *ResultStorage {
	return &ResultStorage{
		db:     db,
		logger: logger,
	}
}

// BundleKey builds the storage key for (ticker, date, variant).
func BundleKey(ticker, date, variant string) string {
	return fmt.Sprintf("bundle:%s:%s:%s", strings.ToUpper(ticker), date, variant)
}

// GetBundle returns the stored record unconditionally; freshness against
// per-fragment TTLs is the caller's decision.
func (s *ResultStorage) GetBundle(ctx context.Context, ticker, date, variant string) (*interfaces.AnalysisRecord, error) {
	var record interfaces.AnalysisRecord
	err := s.db.Store().Get(BundleKey(ticker, date, variant), &record)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis record: %w", err)
	}
	return &record, nil
}

// PutBundle upserts an analysis record. The bundle is the unit of atomicity.
func (s *ResultStorage) PutBundle(ctx context.Context, record *interfaces.AnalysisRecord) error {
	if record == nil || record.Ticker == "" || record.Date == "" {
		return fmt.Errorf("analysis record requires ticker and date")
	}

	record.Key = BundleKey(record.Ticker, record.Date, record.ModelVariant)
	record.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(record.Key, record); err != nil {
		return fmt.Errorf("failed to write analysis record: %w", err)
	}
	return nil
}

// DeleteVariants removes the record stored under each given model variant.
func (s *ResultStorage) DeleteVariants(ctx context.Context, ticker, date string, variants []string) (int, error) {
	deleted := 0
	for _, variant := range variants {
		key := BundleKey(ticker, date, variant)
		err := s.db.Store().Delete(key, &interfaces.AnalysisRecord{})
		if err == badgerhold.ErrNotFound {
			continue
		}
		if err != nil {
			return deleted, fmt.Errorf("failed to delete analysis record %s: %w", key, err)
		}
		deleted++
	}

	s.logger.Debug().
		Str("ticker", ticker).
		Str("date", date).
		Int("deleted", deleted).
		Msg("Deleted analysis record variants")

	return deleted, nil
}

// GetLLMOutput returns a cached parsed LLM output by payload hash.
func (s *ResultStorage) GetLLMOutput(ctx context.Context, hash string) (*interfaces.LLMCacheRecord, error) {
	var record interfaces.LLMCacheRecord
	err := s.db.Store().Get(hash, &record)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get llm cache record: %w", err)
	}
	return &record, nil
}

// PutLLMOutput upserts a parsed LLM output under its payload hash.
func (s *ResultStorage) PutLLMOutput(ctx context.Context, record *interfaces.LLMCacheRecord) error {
	if record == nil || record.Hash == "" {
		return fmt.Errorf("llm cache record requires a hash")
	}
	record.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(record.Hash, record); err != nil {
		return fmt.Errorf("failed to write llm cache record: %w", err)
	}
	return nil
}
