package fmp

import (
	"context"
	"net/url"
	"strconv"

	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

// PriceTargets returns the windowed analyst target aggregates. The consensus
// field is resolved from the vendor aliases targetConsensus, targetMean and
// targetAvg; confidence is left for the fragment builder to derive.
func (c *Client) PriceTargets(ctx context.Context, symbol string) (*models.PriceTargetSummary, error) {
	var result []priceTargetSummaryResponse
	if err := c.get(ctx, "/v4/price-target-summary", symbolParams(symbol), &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, interfaces.ErrKeyNotFound
	}

	r := result[0]
	return &models.PriceTargetSummary{
		LastMonthCount:   r.LastMonth,
		LastMonthAvg:     r.LastMonthAvgPT,
		LastQuarterCount: r.LastQuarter,
		LastQuarterAvg:   r.LastQuarterAvgPT,
		LastYearCount:    r.LastYear,
		LastYearAvg:      r.LastYearAvgPT,
		AllTimeCount:     r.AllTime,
		AllTimeAvg:       r.AllTimeAvgPT,
		Consensus:        firstNonZero(r.TargetConsensus, r.TargetMean, r.TargetAvg, r.TargetMedian),
	}, nil
}

// Estimates returns quarterly and annual consensus estimate rows.
func (c *Client) Estimates(ctx context.Context, symbol string) (*models.Estimates, error) {
	var annual []estimateResponse
	if err := c.get(ctx, "/v3/analyst-estimates/"+url.PathEscape(symbol), nil, &annual); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("period", "quarter")
	var quarterly []estimateResponse
	if err := c.get(ctx, "/v3/analyst-estimates/"+url.PathEscape(symbol), params, &quarterly); err != nil {
		return nil, err
	}

	if len(annual) == 0 && len(quarterly) == 0 {
		return nil, interfaces.ErrKeyNotFound
	}

	return &models.Estimates{
		Quarterly: mapEstimates(quarterly),
		Annual:    mapEstimates(annual),
	}, nil
}

func mapEstimates(rows []estimateResponse) []models.EstimatePeriod {
	out := make([]models.EstimatePeriod, 0, len(rows))
	for _, r := range rows {
		analysts := r.NumberAnalystsEPS
		if analysts == 0 {
			analysts = r.NumberAnalystsRev
		}
		out = append(out, models.EstimatePeriod{
			Date:       r.Date,
			RevenueAvg: r.EstimatedRevenueAvg,
			RevenueLow: r.EstimatedRevenueLow,
			RevenueHi:  r.EstimatedRevenueHi,
			EPSAvg:     r.EstimatedEPSAvg,
			EPSLow:     r.EstimatedEPSLow,
			EPSHi:      r.EstimatedEPSHi,
			Analysts:   analysts,
		})
	}
	return out
}

// RatingsSnapshot returns the current composite rating.
func (c *Client) RatingsSnapshot(ctx context.Context, symbol string) (*models.RatingEntry, error) {
	var result []ratingResponse
	if err := c.get(ctx, "/v3/rating/"+url.PathEscape(symbol), nil, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, interfaces.ErrKeyNotFound
	}
	entry := mapRating(result[0])
	return &entry, nil
}

// RatingsHistory returns dated composite ratings, newest first.
func (c *Client) RatingsHistory(ctx context.Context, symbol string, limit int) ([]models.RatingEntry, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var result []ratingResponse
	if err := c.get(ctx, "/v3/historical-rating/"+url.PathEscape(symbol), params, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, interfaces.ErrKeyNotFound
	}

	entries := make([]models.RatingEntry, 0, len(result))
	for _, r := range result {
		entries = append(entries, mapRating(r))
	}
	return entries, nil
}

func mapRating(r ratingResponse) models.RatingEntry {
	return models.RatingEntry{
		Date:    r.Date,
		Rating:  r.Rating,
		Score:   r.RatingScore,
		Details: r.RatingDetails,
	}
}

// GradeActions returns recent upgrade/downgrade records, newest first.
func (c *Client) GradeActions(ctx context.Context, symbol string, limit int) ([]models.GradeAction, error) {
	params := symbolParams(symbol)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var result []gradeResponse
	if err := c.get(ctx, "/v4/upgrades-downgrades", params, &result); err != nil {
		return nil, err
	}

	actions := make([]models.GradeAction, 0, len(result))
	for _, r := range result {
		actions = append(actions, models.GradeAction{
			Date:          r.Date,
			Firm:          r.GradingCo,
			Action:        r.Action,
			PreviousGrade: r.PreviousGrade,
			NewGrade:      r.NewGrade,
		})
	}
	return actions, nil
}

// GradeHistory returns historical buy/hold/sell distributions, newest first.
func (c *Client) GradeHistory(ctx context.Context, symbol string, limit int) ([]models.GradeConsensus, error) {
	params := symbolParams(symbol)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var result []gradeConsensusResponse
	if err := c.get(ctx, "/v4/grades-historical", params, &result); err != nil {
		return nil, err
	}

	history := make([]models.GradeConsensus, 0, len(result))
	for _, r := range result {
		history = append(history, mapGradeConsensus(r))
	}
	return history, nil
}

// GradeConsensus returns the current buy/hold/sell distribution.
func (c *Client) GradeConsensus(ctx context.Context, symbol string) (*models.GradeConsensus, error) {
	var result []gradeConsensusResponse
	if err := c.get(ctx, "/v4/upgrades-downgrades-consensus", symbolParams(symbol), &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, interfaces.ErrKeyNotFound
	}
	consensus := mapGradeConsensus(result[0])
	return &consensus, nil
}

func mapGradeConsensus(r gradeConsensusResponse) models.GradeConsensus {
	return models.GradeConsensus{
		StrongBuy:  r.StrongBuy,
		Buy:        r.Buy,
		Hold:       r.Hold,
		Sell:       r.Sell,
		StrongSell: r.StrongSell,
		Consensus:  r.Consensus,
	}
}

func symbolParams(symbol string) url.Values {
	params := url.Values{}
	params.Set("symbol", symbol)
	return params
}
