// Package yahoo provides a client for the Yahoo Finance chart API, the
// last source in the price fallback chain. No API key is required.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/vantage/internal/adapters"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

const (
	// DefaultBaseURL is the base URL for the Yahoo chart API.
	DefaultBaseURL = "https://query1.finance.yahoo.com"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 15 * time.Second
)

// Client is a Yahoo Finance chart client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Yahoo chart client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(4), 4),
		breaker: adapters.NewBreaker("yahoo"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"chartPreviousClose"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *Client) chart(ctx context.Context, symbol string, params url.Values) (*chartResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	path := "/v8/finance/chart/" + url.PathEscape(strings.ToUpper(symbol))
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; vantage/1.0)")

	if c.logger != nil {
		c.logger.Debug().
			Str("url", c.baseURL+path).
			Msg("Yahoo chart request")
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return nil, &adapters.APIError{
				Vendor:   "yahoo",
				Endpoint: path,
				Status:   resp.StatusCode,
				Message:  string(body),
			}
		}

		var result chartResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return &result, nil
	})
	if err != nil {
		return nil, err
	}

	result := out.(*chartResponse)
	if result.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart error for %s: %s", symbol, result.Chart.Error.Description)
	}
	if len(result.Chart.Result) == 0 {
		return nil, interfaces.ErrKeyNotFound
	}
	return result, nil
}

// ChartQuote returns the latest market price from the chart metadata.
func (c *Client) ChartQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	params := url.Values{}
	params.Set("range", "1d")
	params.Set("interval", "1d")

	result, err := c.chart(ctx, symbol, params)
	if err != nil {
		return nil, err
	}

	meta := result.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return nil, interfaces.ErrKeyNotFound
	}

	ts := time.Now()
	if meta.RegularMarketTime > 0 {
		ts = time.Unix(meta.RegularMarketTime, 0).UTC()
	}

	return &models.Quote{
		Symbol:    strings.ToUpper(symbol),
		Price:     meta.RegularMarketPrice,
		PrevClose: meta.PreviousClose,
		Timestamp: ts,
	}, nil
}

// ChartClose returns the daily bar for the exact date, or ErrKeyNotFound
// when the chart has no bar for it.
func (c *Client) ChartClose(ctx context.Context, symbol string, date time.Time) (*models.DailyBar, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(dayStart.Unix(), 10))
	params.Set("period2", strconv.FormatInt(dayStart.AddDate(0, 0, 1).Unix(), 10))
	params.Set("interval", "1d")

	result, err := c.chart(ctx, symbol, params)
	if err != nil {
		return nil, err
	}

	r := result.Chart.Result[0]
	if len(r.Timestamp) == 0 || len(r.Indicators.Quote) == 0 {
		return nil, interfaces.ErrKeyNotFound
	}

	day := dayStart.Format("2006-01-02")
	quote := r.Indicators.Quote[0]
	for i, ts := range r.Timestamp {
		if time.Unix(ts, 0).UTC().Format("2006-01-02") != day {
			continue
		}
		if i >= len(quote.Close) || quote.Close[i] <= 0 {
			continue
		}
		bar := &models.DailyBar{Date: day, Close: quote.Close[i]}
		if i < len(quote.Open) {
			bar.Open = quote.Open[i]
		}
		if i < len(quote.High) {
			bar.High = quote.High[i]
		}
		if i < len(quote.Low) {
			bar.Low = quote.Low[i]
		}
		if i < len(quote.Volume) {
			bar.Volume = quote.Volume[i]
		}
		return bar, nil
	}
	return nil, interfaces.ErrKeyNotFound
}
