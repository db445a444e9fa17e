package guardian

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the base URL for the Guardian content API.
	DefaultBaseURL = "https://content.guardianapis.com"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	// The free content API tier allows 1 request per second.
	DefaultRateLimit = 1

	// DefaultSection restricts searches to sections where earnings
	// commentary actually appears.
	DefaultSection = "business|technology|money"

	// DefaultPageSize is the number of results requested per page.
	DefaultPageSize = 50

	// maxPages caps pagination per search so a broad company name cannot
	// burn the daily API quota.
	maxPages = 10

	// minBodyLength filters out stubs and liveblog fragments; anything
	// shorter carries no usable opinion.
	minBodyLength = 200
)

// Client is a Guardian content-search API client.
type Client struct {
	baseURL    string
	apiKey     string
	section    string
	pageSize   int
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

// WithSection overrides the section filter. An empty string searches all
// sections.
func WithSection(section string) ClientOption {
	return func(c *Client) {
		c.section = section
	}
}

// WithPageSize sets the number of results per page.
func WithPageSize(pageSize int) ClientOption {
	return func(c *Client) {
		c.pageSize = pageSize
	}
}

// NewClient creates a new Guardian content-search client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		apiKey:   apiKey,
		section:  DefaultSection,
		pageSize: DefaultPageSize,
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

// PreEarningsArticles collects substantial articles mentioning a company in
// the window before its earnings date: [earningsDate - lookbackDays,
// earningsDate - 1 day]. Results are sorted newest first, longer articles
// first within a day.
func (c *Client) PreEarningsArticles(ctx context.Context, company string, earningsDate time.Time, lookbackDays int) ([]Article, error) {
	from := earningsDate.AddDate(0, 0, -lookbackDays)
	to := earningsDate.AddDate(0, 0, -1)

	if c.logger != nil {
		c.logger.Info().
			Str("company", company).
			Str("from", from.Format("2006-01-02")).
			Str("to", to.Format("2006-01-02")).
			Msg("Collecting pre-earnings articles")
	}

	var articles []Article
	for page := 1; page <= maxPages; page++ {
		resp, err := c.search(ctx, company, from, to, page)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page %d: %w", page, err)
		}

		for _, result := range resp.Results {
			article, ok := toArticle(result)
			if !ok {
				continue
			}
			articles = append(articles, article)
		}

		if page >= resp.Pages || len(resp.Results) == 0 {
			break
		}
	}

	sort.Slice(articles, func(i, j int) bool {
		if !articles[i].PublishedAt.Equal(articles[j].PublishedAt) {
			return articles[i].PublishedAt.After(articles[j].PublishedAt)
		}
		return articles[i].WordCount > articles[j].WordCount
	})

	if c.logger != nil {
		c.logger.Info().
			Str("company", company).
			Int("articles", len(articles)).
			Msg("Collected pre-earnings articles")
	}

	return articles, nil
}

// search performs a single content-search page request.
func (c *Client) search(ctx context.Context, query string, from, to time.Time, page int) (*searchResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &RateLimitError{RetryAfter: time.Second}
	}

	params := url.Values{}
	params.Set("api-key", c.apiKey)
	params.Set("q", query)
	params.Set("from-date", from.Format("2006-01-02"))
	params.Set("to-date", to.Format("2006-01-02"))
	params.Set("page-size", strconv.Itoa(c.pageSize))
	params.Set("page", strconv.Itoa(page))
	params.Set("show-fields", "all")
	params.Set("order-by", "newest")
	if c.section != "" {
		params.Set("section", c.section)
	}

	reqURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	resp, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Minute
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, &RateLimitError{RetryAfter: retryAfter}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   "/search",
		}
	}

	var envelope searchEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	return &envelope.Response, nil
}

// doRequest performs an HTTP request with retry on transient failures.
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	maxRetries := 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
		} else {
			return resp, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * time.Second):
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// toArticle converts a search result into an Article, filtering out entries
// with no substantial body text.
func toArticle(result searchResult) (Article, bool) {
	if result.Fields == nil {
		return Article{}, false
	}
	body := result.Fields.BodyText
	if len(body) <= minBodyLength {
		return Article{}, false
	}

	headline := result.Fields.Headline
	if headline == "" {
		headline = result.WebTitle
	}

	published := parsePublicationDate(result.Fields.FirstPublicationDate)
	if published.IsZero() {
		published = parsePublicationDate(result.WebPublicationDate)
	}

	articleURL := result.Fields.ShortURL
	if articleURL == "" {
		articleURL = result.WebURL
	}

	return Article{
		Headline:    headline,
		Body:        body,
		Byline:      result.Fields.Byline,
		PublishedAt: published,
		URL:         articleURL,
		TrailText:   result.Fields.TrailText,
		Section:     result.SectionName,
		WordCount:   len(strings.Fields(body)),
	}, true
}

func parsePublicationDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05Z0700", s); err == nil {
		return t
	}
	return time.Time{}
}
