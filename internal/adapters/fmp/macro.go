package fmp

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

// EconomicCalendar returns economic events inside [from, to].
func (c *Client) EconomicCalendar(ctx context.Context, from, to time.Time) ([]models.MacroEvent, error) {
	params := url.Values{}
	params.Set("from", from.Format(dateLayout))
	params.Set("to", to.Format(dateLayout))

	var result []economicEventResponse
	if err := c.get(ctx, "/v3/economic_calendar", params, &result); err != nil {
		return nil, err
	}

	events := make([]models.MacroEvent, 0, len(result))
	for _, r := range result {
		if r.Event == "" {
			continue
		}
		events = append(events, models.MacroEvent{
			Date:     r.Date,
			Event:    r.Event,
			Country:  r.Country,
			Impact:   r.Impact,
			Actual:   r.Actual,
			Estimate: r.Estimate,
			Previous: r.Previous,
		})
	}
	return events, nil
}

// TreasuryYields returns the 10-year and 2-year yields closest to date,
// looking back up to a week so weekends and holidays resolve.
func (c *Client) TreasuryYields(ctx context.Context, date time.Time) (float64, float64, error) {
	params := url.Values{}
	params.Set("from", date.AddDate(0, 0, -7).Format(dateLayout))
	params.Set("to", date.Format(dateLayout))

	var result []treasuryResponse
	if err := c.get(ctx, "/v4/treasury", params, &result); err != nil {
		return 0, 0, err
	}

	// Newest row with both tenors populated wins.
	for _, r := range result {
		if r.Year10 > 0 && r.Year2 > 0 {
			return r.Year10, r.Year2, nil
		}
	}
	return 0, 0, interfaces.ErrKeyNotFound
}

// MarketRiskPremium returns the US equity risk premium.
func (c *Client) MarketRiskPremium(ctx context.Context) (float64, error) {
	var result []riskPremiumResponse
	if err := c.get(ctx, "/v4/market_risk_premium", nil, &result); err != nil {
		return 0, err
	}

	for _, r := range result {
		if r.Country == "United States" && r.TotalEquityRisk > 0 {
			return r.TotalEquityRisk, nil
		}
	}
	if len(result) > 0 && result[0].TotalEquityRisk > 0 {
		return result[0].TotalEquityRisk, nil
	}
	return 0, interfaces.ErrKeyNotFound
}

// Transcript returns the earnings call transcript for a quarter.
// ErrKeyNotFound signals a quarter with no call on record.
func (c *Client) Transcript(ctx context.Context, symbol string, quarter, year int) (string, string, error) {
	params := url.Values{}
	params.Set("quarter", strconv.Itoa(quarter))
	params.Set("year", strconv.Itoa(year))

	var result []transcriptResponse
	if err := c.get(ctx, "/v3/earning_call_transcript/"+url.PathEscape(symbol), params, &result); err != nil {
		return "", "", err
	}
	if len(result) == 0 || result[0].Content == "" {
		return "", "", interfaces.ErrKeyNotFound
	}
	return result[0].Content, result[0].Date, nil
}
