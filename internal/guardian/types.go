// Package guardian provides a client for the Guardian content-search API,
// used to collect pre-earnings commentary articles about a company.
package guardian

import (
	"fmt"
	"time"
)

// Article is one substantial commentary piece about a company, with the
// byline that attribution downstream depends on.
type Article struct {
	Headline    string    `json:"headline"`
	Body        string    `json:"body"`
	Byline      string    `json:"byline"`
	PublishedAt time.Time `json:"published_at"`
	URL         string    `json:"url"`
	TrailText   string    `json:"trail_text"`
	Section     string    `json:"section"`
	WordCount   int       `json:"word_count"`
}

// searchEnvelope is the wire format of a content-search response.
type searchEnvelope struct {
	Response searchResponse `json:"response"`
}

type searchResponse struct {
	Status      string         `json:"status"`
	Total       int            `json:"total"`
	Pages       int            `json:"pages"`
	CurrentPage int            `json:"currentPage"`
	Results     []searchResult `json:"results"`
}

type searchResult struct {
	ID                 string        `json:"id"`
	SectionName        string        `json:"sectionName"`
	WebPublicationDate string        `json:"webPublicationDate"`
	WebTitle           string        `json:"webTitle"`
	WebURL             string        `json:"webUrl"`
	Fields             *resultFields `json:"fields"`
}

type resultFields struct {
	Headline             string `json:"headline"`
	Byline               string `json:"byline"`
	BodyText             string `json:"bodyText"`
	TrailText            string `json:"trailText"`
	FirstPublicationDate string `json:"firstPublicationDate"`
	ShortURL             string `json:"shortUrl"`
}

// APIError represents an error response from the content API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("content API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError is returned when the API reports quota exhaustion (429).
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("content API rate limit exceeded, retry after %v", e.RetryAfter)
}
