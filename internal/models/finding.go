package models

import (
	"errors"
	"fmt"
	"time"
)

// ContrarianType records which dimensions of an opinion were in the minority.
type ContrarianType string

const (
	ContrarianBoth           ContrarianType = "both"
	ContrarianSentimentOnly  ContrarianType = "sentiment_only"
	ContrarianPredictionOnly ContrarianType = "prediction_only"
	ContrarianNone           ContrarianType = "none"
)

// Valid reports whether t is a known contrarian type.
func (t ContrarianType) Valid() bool {
	switch t {
	case ContrarianBoth, ContrarianSentimentOnly, ContrarianPredictionOnly, ContrarianNone:
		return true
	}
	return false
}

// ContrarianFinding is the evaluation of one opinion against its event's
// consensus and (optionally) its actual outcome. A finding is produced once
// per opinion per event and never recomputed in place; a later ledger merge
// is always additive, never destructive of this record.
type ContrarianFinding struct {
	ID       string `json:"id"`
	EventKey string `json:"event_key"`

	// Event context carried for ledger "latest" fields and history rows.
	Company   string    `json:"company"`
	Symbol    string    `json:"symbol"`
	EventDate time.Time `json:"event_date"`

	Author    string    `json:"author"`     // Raw byline
	AuthorKey AuthorKey `json:"author_key"` // Normalized identity

	Sentiment  Sentiment        `json:"sentiment"`
	Prediction PredictedOutcome `json:"prediction"`
	Confidence Confidence       `json:"confidence,omitempty"`

	SentimentShare  float64 `json:"sentiment_share"`  // Batch share of this opinion's sentiment, [0,1]
	PredictionShare float64 `json:"prediction_share"` // Batch share of this opinion's prediction, [0,1]

	WasMinoritySentiment  bool `json:"was_minority_sentiment"`
	WasMinorityPrediction bool `json:"was_minority_prediction"`
	IsContrarian          bool `json:"is_contrarian"`

	// Per-dimension correctness, nil when the event has no resolved outcome.
	SentimentCorrect  *bool `json:"sentiment_correct,omitempty"`
	PredictionCorrect *bool `json:"prediction_correct,omitempty"`
	// Correct is the lenient-OR verdict: true when either dimension matched.
	Correct *bool `json:"correct,omitempty"`

	Score float64        `json:"score"`
	Type  ContrarianType `json:"type"`

	ActualResult OutcomeResult `json:"actual_result"` // OutcomeUnknown when no outcome was resolved
	PriceMovePct *float64      `json:"price_move_pct,omitempty"`

	Reasoning   string    `json:"reasoning"`
	SourceID    string    `json:"source_id"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Validate checks structural invariants of the finding.
func (f *ContrarianFinding) Validate() error {
	if f.ID == "" {
		return errors.New("finding ID must not be empty")
	}
	if f.EventKey == "" {
		return errors.New("finding event key must not be empty")
	}
	if f.Author == "" {
		return errors.New("finding author must not be empty")
	}
	if f.AuthorKey == "" {
		return errors.New("finding author key must not be empty")
	}
	if f.SentimentShare < 0 || f.SentimentShare > 1 {
		return fmt.Errorf("sentiment share %f out of [0,1]", f.SentimentShare)
	}
	if f.PredictionShare < 0 || f.PredictionShare > 1 {
		return fmt.Errorf("prediction share %f out of [0,1]", f.PredictionShare)
	}
	if f.IsContrarian != (f.WasMinoritySentiment || f.WasMinorityPrediction) {
		return errors.New("is_contrarian must equal (minority sentiment OR minority prediction)")
	}
	if f.Score < 0 {
		return fmt.Errorf("score %f must not be negative", f.Score)
	}
	if !f.Type.Valid() {
		return fmt.Errorf("invalid contrarian type %q", f.Type)
	}
	if !f.ActualResult.Valid() {
		return fmt.Errorf("invalid actual result %q", f.ActualResult)
	}
	if f.ActualResult == OutcomeUnknown && f.Correct != nil {
		return errors.New("correctness must be unknown when no outcome was resolved")
	}
	return nil
}
