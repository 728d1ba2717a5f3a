package fragments

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

// BuildEarningsCall summarizes the most recent earnings call: the
// baseline's quarter first, then the prior quarter. Missing quarters are
// cached as placeholders so the fallback loop advances without refetching.
func (s *Service) BuildEarningsCall(ctx context.Context, ticker string, baseline time.Time) *models.EarningsCallFragment {
	cfg := s.config.Analysis
	ttl := s.days(cfg.EarningsCallTTLDays)

	quarter, year := common.QuarterOf(baseline)
	for attempt := 0; attempt < 2; attempt++ {
		key := cacheKey("earnings_call", ticker, fmt.Sprintf("q%d_%d", quarter, year))

		var cached models.EarningsCallFragment
		hit, empty := s.cachedJSON(ctx, key, ttl, &cached)
		if hit && !empty && cached.Status != "missing" {
			return &cached
		}
		if hit && (empty || cached.Status == "missing") {
			// Known-missing quarter; advance the fallback.
			quarter, year = common.PrevQuarter(quarter, year)
			continue
		}

		fragment := s.fetchEarningsCall(ctx, ticker, quarter, year)
		if fragment != nil {
			s.writeCache(ctx, key, fragment)
			return fragment
		}

		s.writeCache(ctx, key, &models.EarningsCallFragment{
			Quarter: quarter,
			Year:    year,
			Status:  "missing",
		})
		quarter, year = common.PrevQuarter(quarter, year)
	}

	return &models.EarningsCallFragment{Status: "missing"}
}

func (s *Service) fetchEarningsCall(ctx context.Context, ticker string, quarter, year int) *models.EarningsCallFragment {
	var transcript, callDate string
	err := s.retry.Do(ctx, "earnings_transcript", func(ctx context.Context) error {
		var err error
		transcript, callDate, err = s.providers.Transcript.Transcript(ctx, ticker, quarter, year)
		return err
	})
	if err != nil {
		if err != interfaces.ErrKeyNotFound {
			s.logger.Debug().
				Str("ticker", ticker).
				Int("quarter", quarter).
				Int("year", year).
				Err(err).
				Msg("Transcript fetch failed")
		}
		return nil
	}

	summary, err := s.llm.SummarizeTranscript(ctx, ticker, transcript)
	if err != nil {
		s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Transcript summarization failed")
		return &models.EarningsCallFragment{
			Quarter: quarter,
			Year:    year,
			Date:    callDate,
			Error:   err.Error(),
		}
	}

	return &models.EarningsCallFragment{
		Quarter: quarter,
		Year:    year,
		Date:    callDate,
		Summary: summary,
	}
}
