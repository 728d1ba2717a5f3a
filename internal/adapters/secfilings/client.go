// Package secfilings provides a client for SEC EDGAR: filing lookups via
// the submissions API and MD&A extraction from filing documents.
package secfilings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/vantage/internal/adapters"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

const (
	// DefaultDataBaseURL serves the submissions API.
	DefaultDataBaseURL = "https://data.sec.gov"

	// DefaultWWWBaseURL serves filing documents and the ticker index.
	DefaultWWWBaseURL = "https://www.sec.gov"

	// DefaultTimeout is the default HTTP timeout. Filing documents run to
	// several megabytes, so this sits above the quote-vendor timeouts.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies the client per EDGAR access rules.
	DefaultUserAgent = "vantage-research admin@vantage.local"
)

// Client is an SEC EDGAR client.
type Client struct {
	dataBaseURL string
	wwwBaseURL  string
	userAgent   string
	httpClient  *http.Client
	logger      arbor.ILogger
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker

	mu       sync.Mutex
	cikIndex map[string]string // ticker -> zero-padded CIK
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithDataBaseURL sets a custom submissions API base URL.
func WithDataBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.dataBaseURL = baseURL
	}
}

// WithWWWBaseURL sets a custom document base URL.
func WithWWWBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.wwwBaseURL = baseURL
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUserAgent sets the EDGAR user agent string.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// NewClient creates a new SEC EDGAR client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		dataBaseURL: DefaultDataBaseURL,
		wwwBaseURL:  DefaultWWWBaseURL,
		userAgent:   DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		// EDGAR caps automated access at 10 requests per second.
		limiter:  rate.NewLimiter(rate.Limit(8), 8),
		breaker:  adapters.NewBreaker("sec"),
		cikIndex: make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	if c.logger != nil {
		c.logger.Debug().
			Str("url", rawURL).
			Msg("SEC EDGAR request")
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return nil, &adapters.APIError{
				Vendor:   "sec",
				Endpoint: rawURL,
				Status:   resp.StatusCode,
				Message:  string(body),
			}
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

type tickerIndexEntry struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// resolveCIK maps a ticker to its zero-padded CIK, loading the company
// index once per process.
func (c *Client) resolveCIK(ctx context.Context, ticker string) (string, error) {
	ticker = strings.ToUpper(ticker)

	c.mu.Lock()
	if cik, ok := c.cikIndex[ticker]; ok {
		c.mu.Unlock()
		return cik, nil
	}
	loaded := len(c.cikIndex) > 0
	c.mu.Unlock()

	if loaded {
		return "", fmt.Errorf("ticker %s not in EDGAR index: %w", ticker, interfaces.ErrKeyNotFound)
	}

	body, err := c.fetch(ctx, c.wwwBaseURL+"/files/company_tickers.json")
	if err != nil {
		return "", err
	}

	var index map[string]tickerIndexEntry
	if err := json.Unmarshal(body, &index); err != nil {
		return "", fmt.Errorf("failed to decode EDGAR ticker index: %w", err)
	}

	c.mu.Lock()
	for _, entry := range index {
		c.cikIndex[strings.ToUpper(entry.Ticker)] = fmt.Sprintf("%010d", entry.CIK)
	}
	cik, ok := c.cikIndex[ticker]
	c.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("ticker %s not in EDGAR index: %w", ticker, interfaces.ErrKeyNotFound)
	}
	return cik, nil
}

type submissionsResponse struct {
	CIK     string `json:"cik"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			ReportDate      []string `json:"reportDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// RecentFilings returns filings of the requested forms filed on or before
// the given date, newest first.
func (c *Client) RecentFilings(ctx context.Context, symbol string, forms []string, before time.Time, limit int) ([]models.FilingRef, error) {
	cik, err := c.resolveCIK(ctx, symbol)
	if err != nil {
		return nil, err
	}

	body, err := c.fetch(ctx, fmt.Sprintf("%s/submissions/CIK%s.json", c.dataBaseURL, cik))
	if err != nil {
		return nil, err
	}

	var subs submissionsResponse
	if err := json.Unmarshal(body, &subs); err != nil {
		return nil, fmt.Errorf("failed to decode EDGAR submissions: %w", err)
	}

	wanted := make(map[string]bool, len(forms))
	for _, form := range forms {
		wanted[strings.ToUpper(form)] = true
	}
	cutoff := before.Format("2006-01-02")

	recent := subs.Filings.Recent
	var refs []models.FilingRef
	for i := range recent.Form {
		if len(wanted) > 0 && !wanted[strings.ToUpper(recent.Form[i])] {
			continue
		}
		if recent.FilingDate[i] > cutoff {
			continue
		}

		accession := strings.ReplaceAll(recent.AccessionNumber[i], "-", "")
		docURL := fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s",
			c.wwwBaseURL, strings.TrimLeft(cik, "0"), accession, recent.PrimaryDocument[i])

		refs = append(refs, models.FilingRef{
			Form:       recent.Form[i],
			FilingDate: recent.FilingDate[i],
			ReportDate: recent.ReportDate[i],
			URL:        docURL,
			CIK:        cik,
			Accession:  recent.AccessionNumber[i],
		})
		if limit > 0 && len(refs) >= limit {
			break
		}
	}

	if len(refs) == 0 {
		return nil, interfaces.ErrKeyNotFound
	}
	return refs, nil
}
