package fmp

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

// ThirteenF returns normalized institutional holder rows for the given
// quarter sorted by position value descending, plus the net share delta.
// The quarter-level ownership summary is preferred for the delta; summing
// the per-holder rows is the fallback when the summary endpoint has no
// usable row. ErrKeyNotFound signals a quarter with no snapshot yet.
func (c *Client) ThirteenF(ctx context.Context, symbol string, quarter, year int) ([]models.HolderRow, float64, error) {
	params := symbolParams(symbol)
	params.Set("quarter", strconv.Itoa(quarter))
	params.Set("year", strconv.Itoa(year))

	var result []institutionalHolderResponse
	if err := c.get(ctx, "/v4/institutional-ownership/institutional-holders/symbol-ownership", params, &result); err != nil {
		return nil, 0, err
	}
	if len(result) == 0 {
		return nil, 0, interfaces.ErrKeyNotFound
	}

	rows := make([]models.HolderRow, 0, len(result))
	netShares := 0.0
	for _, r := range result {
		row := models.HolderRow{
			Holder:       firstNonEmpty(r.Holder, r.InvestorName, r.InstitutionName),
			Shares:       firstNonZero(r.Shares, r.SharesHeld, r.SharesNumber),
			Value:        firstNonZero(r.Value, r.MarketValue),
			ChangeShares: firstNonZero(r.ChangeShares, r.ChangeInShares, r.SharesChange, r.Change),
			Weight:       r.Weight,
		}
		if row.Holder == "" {
			continue
		}
		rows = append(rows, row)
		netShares += row.ChangeShares
	}
	if len(rows) == 0 {
		return nil, 0, interfaces.ErrKeyNotFound
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Value > rows[j].Value })

	if net, ok := c.ownershipNetShares(ctx, symbol, quarter, year); ok {
		netShares = net
	}

	return rows, netShares, nil
}

// ownershipNetShares queries the quarter-level ownership summary. The
// vendor's own aggregate beats a per-holder sum because the holder list is
// capped while the summary covers every filer.
func (c *Client) ownershipNetShares(ctx context.Context, symbol string, quarter, year int) (float64, bool) {
	params := symbolParams(symbol)
	params.Set("includeCurrentQuarter", "false")

	var result []ownershipSummaryResponse
	if err := c.get(ctx, "/v4/institutional-ownership/symbol-ownership", params, &result); err != nil {
		return 0, false
	}

	quarterEnd := quarterEndDate(quarter, year)
	for _, r := range result {
		if !strings.HasPrefix(r.Date, quarterEnd) {
			continue
		}
		if net := firstNonZero(r.NetSharesChange, r.NumberOf13FShares-r.LastNumberOf13FShares); net != 0 || r.NumberOf13FShares > 0 {
			return net, true
		}
	}
	return 0, false
}

// quarterEndDate maps a (quarter, year) pair onto the 13F reporting date.
func quarterEndDate(quarter, year int) string {
	switch quarter {
	case 1:
		return fmt.Sprintf("%d-03-31", year)
	case 2:
		return fmt.Sprintf("%d-06-30", year)
	case 3:
		return fmt.Sprintf("%d-09-30", year)
	default:
		return fmt.Sprintf("%d-12-31", year)
	}
}

// InsiderTrades returns insider transactions inside [from, to], newest first.
func (c *Client) InsiderTrades(ctx context.Context, symbol string, from, to time.Time) ([]models.InsiderTrade, error) {
	params := symbolParams(symbol)
	params.Set("page", "0")

	var result []insiderTradeResponse
	if err := c.get(ctx, "/v4/insider-trading", params, &result); err != nil {
		return nil, err
	}

	fromDay := from.Format(dateLayout)
	toDay := to.Format(dateLayout)

	trades := make([]models.InsiderTrade, 0, len(result))
	for _, r := range result {
		if r.TransactionDate < fromDay || r.TransactionDate > toDay {
			continue
		}
		trades = append(trades, models.InsiderTrade{
			Date:   r.TransactionDate,
			Name:   r.ReportingName,
			Type:   insiderTradeType(r),
			Shares: r.SecuritiesTrans,
			Price:  r.Price,
			Value:  r.SecuritiesTrans * r.Price,
		})
	}

	sort.Slice(trades, func(i, j int) bool { return trades[i].Date > trades[j].Date })
	return trades, nil
}

// insiderTradeType collapses the vendor's transaction coding into buy/sell.
// The acquisition flag is authoritative when present; otherwise the
// transaction type text decides.
func insiderTradeType(r insiderTradeResponse) string {
	switch strings.ToUpper(r.AcquistionOrDis) {
	case "A":
		return "buy"
	case "D":
		return "sell"
	}
	t := strings.ToLower(r.TransactionType)
	if strings.Contains(t, "purchase") || strings.Contains(t, "buy") || strings.Contains(t, "award") || strings.Contains(t, "grant") {
		return "buy"
	}
	return "sell"
}

// News returns articles for a symbol inside [from, to].
func (c *Client) News(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.NewsArticle, error) {
	params := url.Values{}
	params.Set("tickers", symbol)
	params.Set("from", from.Format(dateLayout))
	params.Set("to", to.Format(dateLayout))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var result []newsResponse
	if err := c.get(ctx, "/v3/stock_news", params, &result); err != nil {
		return nil, err
	}

	articles := make([]models.NewsArticle, 0, len(result))
	for _, r := range result {
		if r.Title == "" || r.URL == "" {
			continue
		}
		symbols := r.Tickers
		if symbols == "" {
			symbols = r.Symbol
		}
		articles = append(articles, models.NewsArticle{
			Title:       r.Title,
			URL:         r.URL,
			Source:      "fmp",
			Publisher:   r.Site,
			PublishedAt: r.PublishedDate,
			Summary:     r.Text,
			Symbols:     symbols,
			Weight:      1.0,
		})
	}
	return articles, nil
}
