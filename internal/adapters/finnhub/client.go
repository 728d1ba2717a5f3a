// Package finnhub provides a client for the Finnhub API, serving the
// secondary quote source and company news.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
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
	// DefaultBaseURL is the base URL for the Finnhub API.
	DefaultBaseURL = "https://finnhub.io/api/v1"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 15 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 8
)

// Client is a Finnhub API client.
type Client struct {
	baseURL    string
	apiKey     string
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

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewClient creates a new Finnhub API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		breaker: adapters.NewBreaker("finnhub"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("token", c.apiKey)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("url", c.baseURL+path).
			Msg("Finnhub API request")
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return nil, &adapters.APIError{
				Vendor:   "finnhub",
				Endpoint: path,
				Status:   resp.StatusCode,
				Message:  string(body),
			}
		}

		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return nil, nil
	})

	return err
}

type quoteResponse struct {
	Current   float64 `json:"c"`
	Change    float64 `json:"d"`
	ChangePct float64 `json:"dp"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Open      float64 `json:"o"`
	PrevClose float64 `json:"pc"`
	Timestamp int64   `json:"t"`
}

type newsResponse struct {
	Category string `json:"category"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// Quote retrieves the live quote for one symbol. Finnhub answers 200 with a
// zero price for unknown symbols, so that case maps to ErrKeyNotFound.
func (c *Client) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var result quoteResponse
	if err := c.get(ctx, "/quote", params, &result); err != nil {
		return nil, err
	}
	if result.Current <= 0 {
		return nil, interfaces.ErrKeyNotFound
	}

	ts := time.Now()
	if result.Timestamp > 0 {
		ts = time.Unix(result.Timestamp, 0).UTC()
	}

	return &models.Quote{
		Symbol:        strings.ToUpper(symbol),
		Price:         result.Current,
		Change:        result.Change,
		ChangePercent: result.ChangePct,
		Open:          result.Open,
		High:          result.High,
		Low:           result.Low,
		PrevClose:     result.PrevClose,
		Timestamp:     ts,
	}, nil
}

// Quotes fetches symbols sequentially; Finnhub has no batch quote endpoint.
func (c *Client) Quotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error) {
	quotes := make(map[string]*models.Quote, len(symbols))
	for _, symbol := range symbols {
		q, err := c.Quote(ctx, symbol)
		if err != nil {
			if err == interfaces.ErrKeyNotFound {
				continue
			}
			return nil, err
		}
		quotes[strings.ToUpper(symbol)] = q
	}
	return quotes, nil
}

// News returns company news for a symbol inside [from, to].
func (c *Client) News(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.NewsArticle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("from", from.Format("2006-01-02"))
	params.Set("to", to.Format("2006-01-02"))

	var result []newsResponse
	if err := c.get(ctx, "/company-news", params, &result); err != nil {
		return nil, err
	}

	articles := make([]models.NewsArticle, 0, len(result))
	for _, r := range result {
		if r.Headline == "" || r.URL == "" {
			continue
		}
		articles = append(articles, models.NewsArticle{
			Title:       r.Headline,
			URL:         r.URL,
			Source:      "finnhub",
			Publisher:   r.Source,
			PublishedAt: time.Unix(r.Datetime, 0).UTC().Format(time.RFC3339),
			Summary:     r.Summary,
			Symbols:     r.Related,
			Weight:      0.8,
		})
		if limit > 0 && len(articles) >= limit {
			break
		}
	}
	return articles, nil
}
