// Package fragments implements the per-fragment pipelines: each builder
// tries the tiered caches, fetches through the vendor adapters under the
// retry policy, normalizes into the canonical shape and writes the caches
// back. Fragment failures are recovered locally into error-carrying
// snapshots; a builder never fails the whole request.
package fragments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/hotquote"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/retry"
)

// Providers groups the vendor capabilities the builders draw on. Fields are
// the capability interfaces, never concrete clients, so tests can stub any
// chain link.
type Providers struct {
	Quotes     interfaces.QuoteProvider
	Historical interfaces.HistoricalPriceProvider
	Chart      interfaces.ChartProvider
	Analyst    interfaces.AnalystProvider
	Holders    interfaces.InstitutionalProvider
	FMPNews    interfaces.NewsProvider
	FinnNews   interfaces.NewsProvider
	Macro      interfaces.MacroProvider
	Filings    interfaces.FilingsProvider
	Transcript interfaces.TranscriptProvider
	ETF        interfaces.ETFExposureProvider
}

// Service owns the fragment builders and their shared caches.
type Service struct {
	config    *common.Config
	logger    arbor.ILogger
	blobs     interfaces.BlobCache
	retry     retry.Policy
	llm       interfaces.LLMService
	hotQuotes *hotquote.Cache
	providers Providers
	analystFl *inflightGroup

	now func() time.Time
}

// NewService creates the fragment builder service.
func NewService(config *common.Config, logger arbor.ILogger, blobs interfaces.BlobCache, llm interfaces.LLMService, hotQuotes *hotquote.Cache, providers Providers) *Service {
	return &Service{
		config:    config,
		logger:    logger,
		blobs:     blobs,
		retry:     retry.NewPolicy(config.Retry.Attempts, config.RetryDelay()),
		llm:       llm,
		hotQuotes: hotQuotes,
		providers: providers,
		analystFl: newInflightGroup(),
		now:       time.Now,
	}
}

// cachedJSON reads key from the blob cache and unmarshals a fresh non-empty
// payload into out. The boolean reports a usable hit; the sentinel empty
// entry reports hit with the empty flag so callers can honor cached absence.
func (s *Service) cachedJSON(ctx context.Context, key string, maxAge time.Duration, out any) (hit bool, empty bool) {
	entry, err := s.blobs.Get(ctx, key, maxAge)
	if err != nil {
		return false, false
	}
	if entry.Empty {
		return true, true
	}
	if err := json.Unmarshal(entry.Payload, out); err != nil {
		s.logger.Warn().Str("key", key).Err(err).Msg("Discarding undecodable cache entry")
		return false, false
	}
	return true, false
}

// writeCache stores value under key, logging rather than failing on error:
// a cache write problem must not break a served fragment.
func (s *Service) writeCache(ctx context.Context, key string, value any) {
	if err := s.blobs.Put(ctx, key, value); err != nil {
		s.logger.Warn().Str("key", key).Err(err).Msg("Failed to write fragment cache")
	}
}

func (s *Service) hours(n int) time.Duration {
	return time.Duration(n) * time.Hour
}

func (s *Service) days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func cacheKey(parts ...string) string {
	key := parts[0]
	for _, p := range parts[1:] {
		key += "_" + p
	}
	return key
}

var errNoSource = fmt.Errorf("no source produced data")
