// Package prices provides a client for an EODHD-style end-of-day price
// API. Daily closes around an earnings date are the raw material for
// resolving whether the market read a report as a beat, miss, or meet.
package prices

import (
	"fmt"
	"time"
)

// Bar represents a single day's end-of-day price data as returned by the API.
type Bar struct {
	Date          time.Time `json:"-"`
	DateStr       string    `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	AdjustedClose float64   `json:"adjusted_close"`
	Volume        int64     `json:"volume"`
}

// EarningsReport is a single entry from the earnings calendar. ReportDate is
// the day the company reports; Period is the fiscal period being reported.
// Actual and Estimate are nil until the vendor publishes figures.
type EarningsReport struct {
	Code              string    `json:"code"`
	ReportDate        time.Time `json:"-"`
	ReportDateStr     string    `json:"report_date"`
	Period            time.Time `json:"-"`
	PeriodStr         string    `json:"date"`
	BeforeAfterMarket string    `json:"before_after_market"`
	Actual            *float64  `json:"actual"`
	Estimate          *float64  `json:"estimate"`
}

// earningsCalendarResponse is the wire envelope for the earnings calendar.
type earningsCalendarResponse struct {
	Earnings []EarningsReport `json:"earnings"`
}

// APIError represents an error response from the price API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("price API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError represents a client-side rate limit interruption.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("price API rate limit exceeded, retry after %v", e.RetryAfter)
}
