package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/rewired-gh/contraledger/internal/models"
)

const (
	// DefaultBaseURL is the base URL for the price API.
	DefaultBaseURL = "https://eodhd.com/api"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 10
)

// Client is an end-of-day price API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewClient creates a new price API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// get performs a GET request to the API.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return &RateLimitError{RetryAfter: time.Second}
	}

	// Add API token
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	// Build URL
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	// Create request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Log request
	if c.logger != nil {
		c.logger.Debug().
			Str("url", c.baseURL+path).
			Msg("Price API request")
	}

	// Execute request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	// Check status
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	// Parse response
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// GetEOD retrieves end-of-day bars for a symbol over a date range, in
// ascending date order. Symbol format: TICKER.EXCHANGE (e.g., "AAPL.US").
func (c *Client) GetEOD(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "a")
	if !from.IsZero() {
		params.Set("from", from.Format("2006-01-02"))
	}
	if !to.IsZero() {
		params.Set("to", to.Format("2006-01-02"))
	}

	var result []Bar
	if err := c.get(ctx, "/eod/"+symbol, params, &result); err != nil {
		return nil, err
	}

	// Parse dates
	for i := range result {
		if t, err := time.Parse("2006-01-02", result[i].DateStr); err == nil {
			result[i].Date = t
		}
	}

	return result, nil
}

// DailyCloses retrieves daily closing prices for a symbol over a date range.
// Bars with an unparseable date or a non-positive close are dropped. The
// adjusted close is preferred when present; splits and dividends inside the
// window would otherwise distort the reaction move.
func (c *Client) DailyCloses(ctx context.Context, symbol string, from, to time.Time) ([]models.PricePoint, error) {
	bars, err := c.GetEOD(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}

	points := make([]models.PricePoint, 0, len(bars))
	for _, bar := range bars {
		if bar.Date.IsZero() {
			continue
		}
		close := bar.Close
		if bar.AdjustedClose > 0 {
			close = bar.AdjustedClose
		}
		if close <= 0 {
			continue
		}
		points = append(points, models.PricePoint{Date: bar.Date, Close: close})
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("symbol", symbol).
			Int("points", len(points)).
			Msg("Fetched daily closes")
	}

	return points, nil
}

// UpcomingEarnings retrieves earnings calendar entries for the given symbols
// over a date range. Entries without a parseable report date are dropped.
func (c *Client) UpcomingEarnings(ctx context.Context, symbols []string, from, to time.Time) ([]EarningsReport, error) {
	params := url.Values{}
	if len(symbols) > 0 {
		params.Set("symbols", strings.Join(symbols, ","))
	}
	if !from.IsZero() {
		params.Set("from", from.Format("2006-01-02"))
	}
	if !to.IsZero() {
		params.Set("to", to.Format("2006-01-02"))
	}

	var result earningsCalendarResponse
	if err := c.get(ctx, "/calendar/earnings", params, &result); err != nil {
		return nil, err
	}

	reports := make([]EarningsReport, 0, len(result.Earnings))
	for _, r := range result.Earnings {
		t, err := time.Parse("2006-01-02", r.ReportDateStr)
		if err != nil {
			continue
		}
		r.ReportDate = t
		if p, err := time.Parse("2006-01-02", r.PeriodStr); err == nil {
			r.Period = p
		}
		reports = append(reports, r)
	}

	if c.logger != nil {
		c.logger.Debug().
			Int("symbols", len(symbols)).
			Int("reports", len(reports)).
			Msg("Fetched earnings calendar")
	}

	return reports, nil
}
