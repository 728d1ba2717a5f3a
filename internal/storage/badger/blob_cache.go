package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/vantage/internal/interfaces"
)

// BlobCache implements the content-keyed fragment cache for Badger.
type BlobCache struct {
	db     *BadgerDB
	logger arbor.ILogger
	now    func() time.Time
}

// NewBlobCache creates a new BlobCache instance
func NewBlobCache(db *BadgerDB, logger arbor.ILogger) *BlobCache {
	return &BlobCache{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// normalizeKey keeps cache keys case-insensitive so ticker casing in
// requests never splits the cache.
func (s *BlobCache) normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Get retrieves the envelope stored under key when its age is within maxAge.
// Returns ErrKeyNotFound on absence and ErrStale when the entry is too old.
func (s *BlobCache) Get(ctx context.Context, key string, maxAge time.Duration) (*interfaces.BlobEnvelope, error) {
	var envelope interfaces.BlobEnvelope
	err := s.db.Store().Get(s.normalizeKey(key), &envelope)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	if maxAge > 0 && s.now().Sub(envelope.StoredAt) > maxAge {
		return nil, interfaces.ErrStale
	}

	return &envelope, nil
}

// Put marshals value to JSON and upserts it under key.
func (s *BlobCache) Put(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	normalizedKey := s.normalizeKey(key)
	envelope := interfaces.BlobEnvelope{
		Key:      normalizedKey,
		Payload:  payload,
		StoredAt: s.now(),
	}

	if err := s.db.Store().Upsert(normalizedKey, &envelope); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// PutEmpty records a negative result under key so known-absent upstream data
// is cached and does not trigger retry storms.
func (s *BlobCache) PutEmpty(ctx context.Context, key string) error {
	normalizedKey := s.normalizeKey(key)
	envelope := interfaces.BlobEnvelope{
		Key:      normalizedKey,
		Payload:  []byte(`{"__empty":true}`),
		Empty:    true,
		StoredAt: s.now(),
	}

	if err := s.db.Store().Upsert(normalizedKey, &envelope); err != nil {
		return fmt.Errorf("failed to write empty cache entry: %w", err)
	}
	return nil
}

// ClearTicker removes every cache entry whose key contains the ticker,
// optionally constrained to keys that also contain the date. Idempotent.
func (s *BlobCache) ClearTicker(ctx context.Context, ticker string, date string) (int, error) {
	needle := strings.ToLower(strings.TrimSpace(ticker))
	if needle == "" {
		return 0, fmt.Errorf("ticker is required for cache clear")
	}
	dateNeedle := strings.TrimSpace(date)

	var entries []interfaces.BlobEnvelope
	if err := s.db.Store().Find(&entries, nil); err != nil {
		return 0, fmt.Errorf("failed to scan cache entries: %w", err)
	}

	cleared := 0
	for _, entry := range entries {
		if !strings.Contains(entry.Key, needle) {
			continue
		}
		if dateNeedle != "" && !strings.Contains(entry.Key, dateNeedle) {
			continue
		}
		if err := s.db.Store().Delete(entry.Key, &interfaces.BlobEnvelope{}); err != nil {
			s.logger.Warn().Str("key", entry.Key).Err(err).Msg("Failed to delete cache entry during clear")
			continue
		}
		cleared++
	}

	s.logger.Info().
		Str("ticker", ticker).
		Str("date", date).
		Int("cleared", cleared).
		Msg("Cleared cache entries for ticker")

	return cleared, nil
}
