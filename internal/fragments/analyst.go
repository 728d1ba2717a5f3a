package fragments

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/models"
)

// ratingTrendWindowDays is the minimum age gap between the latest rating
// and the trend anchor.
const ratingTrendWindowDays = 30

// BuildAnalystSignals assembles the analyst aggregate. Concurrent requests
// for the same ticker collapse onto one computation. The extended
// sub-fragments (estimates, grades) are fetched only when the baseline is
// within the extended window of today.
func (s *Service) BuildAnalystSignals(ctx context.Context, ticker string, baseline time.Time) *models.AnalystSignals {
	return s.analystFl.do(ctx, ticker, func() *models.AnalystSignals {
		return s.buildAnalystSignals(ctx, ticker, baseline)
	})
}

func (s *Service) buildAnalystSignals(ctx context.Context, ticker string, baseline time.Time) *models.AnalystSignals {
	cfg := s.config.Analysis
	extended := common.DaysBetween(s.now(), baseline) <= cfg.ExtendedWindowDays

	signals := &models.AnalystSignals{}

	type task struct {
		name string
		run  func()
	}
	tasks := []task{
		{"price_targets", func() { signals.PriceTargetSummary = s.buildPriceTargets(ctx, ticker) }},
		{"ratings", func() { signals.Ratings = s.buildRatings(ctx, ticker) }},
	}
	if extended {
		tasks = append(tasks,
			task{"estimates", func() { signals.Estimates = s.buildEstimates(ctx, ticker) }},
			task{"grades", func() { signals.Grades = s.buildGrades(ctx, ticker) }},
		)
	}

	done := make(chan struct{})
	for _, t := range tasks {
		go func(t task) {
			defer func() { done <- struct{}{} }()
			t.run()
		}(t)
	}
	for range tasks {
		<-done
	}

	return signals
}

// buildPriceTargets fetches the windowed target summary and derives its
// confidence: high when the most recent window (month, quarter, year) with
// at least the sample threshold publishers has a non-null average.
func (s *Service) buildPriceTargets(ctx context.Context, ticker string) *models.PriceTargetSummary {
	cfg := s.config.Analysis
	key := cacheKey("analyst_targets", ticker)

	var cached models.PriceTargetSummary
	if hit, empty := s.cachedJSON(ctx, key, s.hours(cfg.AnalystPriceTargetTTLHours), &cached); hit && !empty {
		return &cached
	}

	var summary *models.PriceTargetSummary
	err := s.retry.Do(ctx, "price_targets", func(ctx context.Context) error {
		var err error
		summary, err = s.providers.Analyst.PriceTargets(ctx, ticker)
		return err
	})
	if err != nil {
		s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Price target summary unavailable")
		return nil
	}

	threshold := cfg.PriceTargetSampleThreshold
	summary.Confidence = models.ConfidenceLow
	windows := []struct {
		name  string
		count int
		avg   float64
	}{
		{"month", summary.LastMonthCount, summary.LastMonthAvg},
		{"quarter", summary.LastQuarterCount, summary.LastQuarterAvg},
		{"year", summary.LastYearCount, summary.LastYearAvg},
	}
	for _, w := range windows {
		if w.count >= threshold && w.avg > 0 {
			summary.Confidence = models.ConfidenceHigh
			summary.Window = w.name
			if summary.Consensus == 0 {
				summary.Consensus = w.avg
			}
			break
		}
	}
	if summary.Consensus == 0 {
		for _, w := range windows {
			if w.avg > 0 {
				summary.Consensus = w.avg
				break
			}
		}
	}

	s.writeCache(ctx, key, summary)
	return summary
}

func (s *Service) buildEstimates(ctx context.Context, ticker string) *models.Estimates {
	cfg := s.config.Analysis
	key := cacheKey("analyst_estimates", ticker)

	var cached models.Estimates
	if hit, empty := s.cachedJSON(ctx, key, s.hours(cfg.AnalystEstimatesTTLHours), &cached); hit && !empty {
		return &cached
	}

	var estimates *models.Estimates
	err := s.retry.Do(ctx, "analyst_estimates", func(ctx context.Context) error {
		var err error
		estimates, err = s.providers.Analyst.Estimates(ctx, ticker)
		return err
	})
	if err != nil {
		s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Analyst estimates unavailable")
		return nil
	}

	// Keep the nearest rows only; the payload compactor drops the rest
	// anyway and the cache stays small.
	if len(estimates.Quarterly) > 4 {
		estimates.Quarterly = estimates.Quarterly[:4]
	}
	if len(estimates.Annual) > 3 {
		estimates.Annual = estimates.Annual[:3]
	}

	s.writeCache(ctx, key, estimates)
	return estimates
}

// buildRatings fetches the snapshot plus history and derives the trend: the
// anchor is the first entry at least 30 days older than the latest, and the
// trend is the sign of the score delta.
func (s *Service) buildRatings(ctx context.Context, ticker string) *models.Ratings {
	cfg := s.config.Analysis
	key := cacheKey("analyst_ratings", ticker)

	var cached models.Ratings
	if hit, empty := s.cachedJSON(ctx, key, s.hours(cfg.AnalystRatingsTTLHours), &cached); hit && !empty {
		return &cached
	}

	ratings := &models.Ratings{}

	err := s.retry.Do(ctx, "ratings_snapshot", func(ctx context.Context) error {
		snapshot, err := s.providers.Analyst.RatingsSnapshot(ctx, ticker)
		if err != nil {
			return err
		}
		ratings.Snapshot = snapshot
		return nil
	})
	if err != nil {
		s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Ratings snapshot unavailable")
	}

	err = s.retry.Do(ctx, "ratings_history", func(ctx context.Context) error {
		history, err := s.providers.Analyst.RatingsHistory(ctx, ticker, 90)
		if err != nil {
			return err
		}
		ratings.Historical = history
		return nil
	})
	if err != nil {
		s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Ratings history unavailable")
	}

	if ratings.Snapshot == nil && len(ratings.Historical) == 0 {
		return nil
	}

	deriveRatingTrend(ratings)
	s.writeCache(ctx, key, ratings)
	return ratings
}

// deriveRatingTrend computes trend and delta from history sorted newest
// first.
func deriveRatingTrend(ratings *models.Ratings) {
	history := ratings.Historical
	if len(history) < 2 {
		return
	}

	latest := history[0]
	latestDate, err := time.Parse(common.DateLayout, latest.Date)
	if err != nil {
		return
	}

	for _, entry := range history[1:] {
		entryDate, err := time.Parse(common.DateLayout, entry.Date)
		if err != nil {
			continue
		}
		if latestDate.Sub(entryDate) < ratingTrendWindowDays*24*time.Hour {
			continue
		}

		delta := latest.Score - entry.Score
		ratings.TrendDelta = math.Round(delta*100) / 100
		ratings.TrendWindowDays = ratingTrendWindowDays
		switch {
		case delta > 0:
			ratings.Trend = "improving"
		case delta < 0:
			ratings.Trend = "deteriorating"
		default:
			ratings.Trend = "stable"
		}
		return
	}
}

func (s *Service) buildGrades(ctx context.Context, ticker string) *models.Grades {
	cfg := s.config.Analysis
	key := cacheKey("analyst_grades", ticker)

	var cached models.Grades
	if hit, empty := s.cachedJSON(ctx, key, s.hours(cfg.AnalystGradesTTLHours), &cached); hit && !empty {
		return &cached
	}

	grades := &models.Grades{}

	if err := s.retry.Do(ctx, "grade_actions", func(ctx context.Context) error {
		actions, err := s.providers.Analyst.GradeActions(ctx, ticker, 20)
		if err != nil {
			return err
		}
		grades.RecentActions = actions
		return nil
	}); err != nil {
		s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Grade actions unavailable")
	}

	if err := s.retry.Do(ctx, "grade_history", func(ctx context.Context) error {
		history, err := s.providers.Analyst.GradeHistory(ctx, ticker, 12)
		if err != nil {
			return err
		}
		grades.HistoricalCounts = history
		return nil
	}); err != nil {
		s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Grade history unavailable")
	}

	if err := s.retry.Do(ctx, "grade_consensus", func(ctx context.Context) error {
		consensus, err := s.providers.Analyst.GradeConsensus(ctx, ticker)
		if err != nil {
			return err
		}
		grades.Consensus = consensus
		return nil
	}); err != nil {
		s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Grade consensus unavailable")
	}

	if len(grades.RecentActions) == 0 && len(grades.HistoricalCounts) == 0 && grades.Consensus == nil {
		return nil
	}

	s.writeCache(ctx, key, grades)
	return grades
}

// DeriveAnalystMetrics compacts the full signals fragment into the numbers
// the LLM payload carries.
func DeriveAnalystMetrics(signals *models.AnalystSignals, currentPrice float64) *models.AnalystMetrics {
	if signals == nil {
		return nil
	}
	metrics := &models.AnalystMetrics{}

	if pt := signals.PriceTargetSummary; pt != nil {
		metrics.TargetConsensus = pt.Consensus
		metrics.TargetConfidence = pt.Confidence
		if pt.Consensus > 0 && currentPrice > 0 {
			metrics.TargetUpside = math.Round((pt.Consensus/currentPrice-1)*10000) / 10000
		}
	}
	if r := signals.Ratings; r != nil {
		if r.Snapshot != nil {
			metrics.RatingScore = r.Snapshot.Score
		}
		metrics.RatingTrend = r.Trend
	}
	if g := signals.Grades; g != nil {
		net := 0
		for _, action := range g.RecentActions {
			switch strings.ToLower(action.Action) {
			case "upgrade":
				net++
			case "downgrade":
				net--
			}
		}
		metrics.GradeNetRevisions = net
	}

	if metrics.TargetConsensus == 0 && metrics.RatingScore == 0 && metrics.RatingTrend == "" && metrics.GradeNetRevisions == 0 {
		return nil
	}
	return metrics
}
