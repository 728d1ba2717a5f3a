package fmp

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

const dateLayout = "2006-01-02"

// Quote retrieves the live quote for one symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	quotes, err := c.Quotes(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	q, ok := quotes[strings.ToUpper(symbol)]
	if !ok {
		return nil, interfaces.ErrKeyNotFound
	}
	return q, nil
}

// Quotes retrieves live quotes for multiple symbols in one call. Symbols the
// vendor does not know are absent from the result.
func (c *Client) Quotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error) {
	if len(symbols) == 0 {
		return map[string]*models.Quote{}, nil
	}

	var result []quoteResponse
	path := "/v3/quote/" + url.PathEscape(strings.Join(symbols, ","))
	if err := c.get(ctx, path, nil, &result); err != nil {
		return nil, err
	}

	quotes := make(map[string]*models.Quote, len(result))
	for _, r := range result {
		if r.Price <= 0 {
			continue
		}
		ts := time.Now()
		if r.Timestamp > 0 {
			ts = time.Unix(r.Timestamp, 0).UTC()
		}
		quotes[strings.ToUpper(r.Symbol)] = &models.Quote{
			Symbol:        strings.ToUpper(r.Symbol),
			Price:         r.Price,
			Change:        r.Change,
			ChangePercent: r.ChangesPercent,
			Open:          r.Open,
			High:          r.DayHigh,
			Low:           r.DayLow,
			PrevClose:     r.PreviousClose,
			Volume:        r.Volume,
			YearHigh:      r.YearHigh,
			YearLow:       r.YearLow,
			MA50:          r.PriceAvg50,
			MA200:         r.PriceAvg200,
			MarketCap:     r.MarketCap,
			Timestamp:     ts,
		}
	}
	return quotes, nil
}

// EODPrice returns the bar for the exact date, or ErrKeyNotFound when the
// vendor has no bar for it.
func (c *Client) EODPrice(ctx context.Context, symbol string, date time.Time) (*models.DailyBar, error) {
	day := date.Format(dateLayout)
	params := url.Values{}
	params.Set("from", day)
	params.Set("to", day)

	var result historicalPriceResponse
	if err := c.get(ctx, "/v3/historical-price-full/"+url.PathEscape(symbol), params, &result); err != nil {
		return nil, err
	}

	for _, bar := range result.Historical {
		if bar.Date == day && bar.Close > 0 {
			return mapBar(bar), nil
		}
	}
	return nil, interfaces.ErrKeyNotFound
}

// DailyBars returns bars in [from, to] ascending by date.
func (c *Client) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.DailyBar, error) {
	params := url.Values{}
	params.Set("from", from.Format(dateLayout))
	params.Set("to", to.Format(dateLayout))

	var result historicalPriceResponse
	if err := c.get(ctx, "/v3/historical-price-full/"+url.PathEscape(symbol), params, &result); err != nil {
		return nil, err
	}
	if len(result.Historical) == 0 {
		return nil, interfaces.ErrKeyNotFound
	}

	// FMP returns newest first; reverse into ascending order.
	bars := make([]models.DailyBar, 0, len(result.Historical))
	for i := len(result.Historical) - 1; i >= 0; i-- {
		bars = append(bars, *mapBar(result.Historical[i]))
	}
	return bars, nil
}

func mapBar(bar historicalBar) *models.DailyBar {
	close := bar.Close
	if bar.AdjClose > 0 {
		close = bar.AdjClose
	}
	return &models.DailyBar{
		Date:   bar.Date,
		Open:   bar.Open,
		High:   bar.High,
		Low:    bar.Low,
		Close:  close,
		Volume: bar.Volume,
	}
}

// TopExposureETF returns the fund with the highest exposure weight to the
// symbol, used when the static sector table has no entry.
func (c *Client) TopExposureETF(ctx context.Context, symbol string) (string, error) {
	var result []etfExposureResponse
	if err := c.get(ctx, "/v3/etf-stock-exposure/"+url.PathEscape(symbol), nil, &result); err != nil {
		return "", err
	}

	best := ""
	bestWeight := 0.0
	for _, r := range result {
		if r.ETFSymbol == "" {
			continue
		}
		if r.WeightPercent > bestWeight {
			best = r.ETFSymbol
			bestWeight = r.WeightPercent
		}
	}
	if best == "" {
		return "", fmt.Errorf("no etf exposure data for %s: %w", symbol, interfaces.ErrKeyNotFound)
	}
	return best, nil
}
