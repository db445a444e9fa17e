// Package models defines the core domain entities for the contraledger application.
// These models represent classified commentator opinions, per-event consensus
// distributions, resolved earnings outcomes, contrarian findings, and the durable
// per-author ledger records built from them.
// All models include built-in validation to ensure data integrity throughout the application.
//
// Terminology:
//   - Event: one company earnings report, identified by "SYMBOL:YYYY-MM-DD".
//   - Opinion: one commentator's pre-earnings stance on one event, already
//     classified upstream (sentiment, prediction, confidence).
//   - Finding: the contrarian evaluation of one opinion against its event's
//     consensus and actual outcome.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentiment is a commentator's directional stance on a stock going into earnings.
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// Valid reports whether s is one of the three known sentiment categories.
func (s Sentiment) Valid() bool {
	return s == SentimentBullish || s == SentimentBearish || s == SentimentNeutral
}

// ParseSentiment parses a free-case sentiment label as produced by upstream
// classifiers ("Bullish", "BEARISH", " neutral ").
func ParseSentiment(raw string) (Sentiment, error) {
	s := Sentiment(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown sentiment %q", raw)
	}
	return s, nil
}

// PredictedOutcome is a commentator's discrete call on the earnings result.
type PredictedOutcome string

const (
	PredictionBeat PredictedOutcome = "beat"
	PredictionMiss PredictedOutcome = "miss"
	PredictionMeet PredictedOutcome = "meet"
)

// Valid reports whether p is one of the three known prediction categories.
func (p PredictedOutcome) Valid() bool {
	return p == PredictionBeat || p == PredictionMiss || p == PredictionMeet
}

// ParsePredictedOutcome parses a free-case prediction label.
func ParsePredictedOutcome(raw string) (PredictedOutcome, error) {
	p := PredictedOutcome(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown predicted outcome %q", raw)
	}
	return p, nil
}

// Confidence is the classifier's stated confidence in an opinion. It is
// optional; the zero value means the classifier reported none.
type Confidence string

const (
	ConfidenceNone   Confidence = ""
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Valid reports whether c is a known confidence level or absent.
func (c Confidence) Valid() bool {
	return c == ConfidenceNone || c == ConfidenceHigh || c == ConfidenceMedium || c == ConfidenceLow
}

// ParseConfidence parses a free-case confidence label. Empty input is valid
// and yields ConfidenceNone.
func ParseConfidence(raw string) (Confidence, error) {
	c := Confidence(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown confidence %q", raw)
	}
	return c, nil
}

// Opinion is one commentator's classified stance on one earnings event.
// Opinions are immutable once produced by the classification step; the core
// treats classification as given input, not something it computes.
type Opinion struct {
	Author      string           `json:"author"`     // Raw byline as published, before identity normalization
	Sentiment   Sentiment        `json:"sentiment"`  // bullish, bearish, or neutral
	Prediction  PredictedOutcome `json:"prediction"` // beat, miss, or meet
	Confidence  Confidence       `json:"confidence,omitempty"`
	SourceID    string           `json:"source_id"` // Headline, URL, or other traceability handle
	EventKey    string           `json:"event_key"` // "SYMBOL:YYYY-MM-DD"
	PublishedAt time.Time        `json:"published_at"`
}

// Validate checks that all opinion fields are valid.
func (o *Opinion) Validate() error {
	if strings.TrimSpace(o.Author) == "" {
		return errors.New("opinion author must not be empty")
	}
	if !o.Sentiment.Valid() {
		return fmt.Errorf("invalid sentiment %q", o.Sentiment)
	}
	if !o.Prediction.Valid() {
		return fmt.Errorf("invalid prediction %q", o.Prediction)
	}
	if !o.Confidence.Valid() {
		return fmt.Errorf("invalid confidence %q", o.Confidence)
	}
	if o.EventKey == "" {
		return errors.New("opinion event key must not be empty")
	}
	return nil
}

// EarningsEvent identifies one company earnings report being evaluated.
type EarningsEvent struct {
	Company string    `json:"company"` // Display name, e.g. "Apple"
	Symbol  string    `json:"symbol"`  // Price-feed symbol, e.g. "AAPL.US"
	Date    time.Time `json:"date"`    // Earnings report date
}

// Key returns the canonical event key "SYMBOL:YYYY-MM-DD" used to associate
// opinions, consensus snapshots, and outcomes.
func (e EarningsEvent) Key() string {
	return e.Symbol + ":" + e.Date.Format("2006-01-02")
}

// Validate checks that all event fields are present.
func (e *EarningsEvent) Validate() error {
	if e.Company == "" {
		return errors.New("event company must not be empty")
	}
	if e.Symbol == "" {
		return errors.New("event symbol must not be empty")
	}
	if e.Date.IsZero() {
		return errors.New("event date must be set")
	}
	return nil
}
