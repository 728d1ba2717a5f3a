package fragments

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

// filingForms are the forms whose MD&A narratives feed the analysis.
var filingForms = []string{"10-K", "10-Q"}

// mdaExcerptChars is how much raw text a fallback summary carries.
const mdaExcerptChars = 400

// BuildFilings lists the most recent filings before the baseline and
// summarizes each MD&A through a bounded worker pool. The fragment degrades
// to an empty list when the filings source fails; per-filing failures are
// carried in the summary's error field. maxFilings arrives from the caller
// because the usage monitor may shrink it.
func (s *Service) BuildFilings(ctx context.Context, ticker string, baseline time.Time, maxFilings int) ([]models.FilingRef, []models.FilingSummary) {
	if maxFilings <= 0 {
		maxFilings = s.config.Analysis.MaxFilingsForLLM
	}

	var refs []models.FilingRef
	err := s.retry.Do(ctx, "recent_filings", func(ctx context.Context) error {
		var err error
		refs, err = s.providers.Filings.RecentFilings(ctx, ticker, filingForms, baseline, maxFilings)
		return err
	})
	if err != nil {
		if err != interfaces.ErrKeyNotFound {
			s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Filing list unavailable")
		}
		return nil, nil
	}

	summaries := make([]models.FilingSummary, len(refs))

	// Bounded fan-out over filings.
	poolSize := s.config.Analysis.FilingPoolSize
	if poolSize <= 0 {
		poolSize = 3
	}
	sem := make(chan struct{}, poolSize)
	var wg sync.WaitGroup

	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref models.FilingRef) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			summaries[i] = s.buildFilingSummary(ctx, ticker, ref)
		}(i, ref)
	}
	wg.Wait()

	return refs, summaries
}

// buildFilingSummary runs the per-filing pipeline: cache check (honoring
// the fallback-to-llm upgrade), MD&A fetch, LLM summarization, cache write.
func (s *Service) buildFilingSummary(ctx context.Context, ticker string, ref models.FilingRef) models.FilingSummary {
	cfg := s.config.Analysis
	key := cacheKey("filing_summary", ticker, ref.Form, ref.FilingDate)

	var cached models.FilingSummary
	if hit, empty := s.cachedJSON(ctx, key, s.days(cfg.FilingSummaryTTLDays), &cached); hit && !empty {
		// A fallback summary is upgraded once an LLM key is available.
		if cached.SummaryKind == models.SummaryKindLLM || !s.llm.Enabled() {
			return cached
		}
	}

	var text string
	err := s.retry.Do(ctx, "filing_mda", func(ctx context.Context) error {
		var err error
		text, err = s.providers.Filings.MDAText(ctx, ref)
		return err
	})
	if err != nil {
		s.logger.Debug().
			Str("ticker", ticker).
			Str("form", ref.Form).
			Str("filing_date", ref.FilingDate).
			Err(err).
			Msg("MD&A text unavailable")
		return models.FilingSummary{
			Form:       ref.Form,
			FilingDate: ref.FilingDate,
			ReportDate: ref.ReportDate,
			Error:      err.Error(),
		}
	}

	summaryText, kind, err := s.llm.SummarizeMDA(ctx, ticker, ref.Form, text)
	if err != nil {
		s.logger.Debug().Str("ticker", ticker).Str("form", ref.Form).Err(err).Msg("MD&A summarization failed")
		kind = models.SummaryKindFallback
		summaryText = ""
	}

	summary := models.FilingSummary{
		Form:        ref.Form,
		FilingDate:  ref.FilingDate,
		ReportDate:  ref.ReportDate,
		MDASummary:  summaryText,
		SummaryKind: kind,
	}
	if kind == models.SummaryKindFallback {
		excerpt := text
		if len(excerpt) > mdaExcerptChars {
			excerpt = excerpt[:mdaExcerptChars]
		}
		summary.MDAExcerpt = excerpt
		if summary.MDASummary == "" {
			summary.MDASummary = excerpt
		}
	}

	s.writeCache(ctx, key, summary)
	return summary
}
