package models

import (
	"errors"
	"time"
)

// OutcomeResult is the discretized actual earnings outcome, in the same
// category space commentators predict in. OutcomeUnknown appears only in
// persisted records for events whose outcome could not be resolved; a
// missing outcome itself is represented by a nil *ActualOutcome, never by a
// "false" correctness verdict.
type OutcomeResult string

const (
	OutcomeBeat    OutcomeResult = "beat"
	OutcomeMiss    OutcomeResult = "miss"
	OutcomeMeet    OutcomeResult = "meet"
	OutcomeUnknown OutcomeResult = "unknown"
)

// Valid reports whether r is a known outcome category.
func (r OutcomeResult) Valid() bool {
	return r == OutcomeBeat || r == OutcomeMiss || r == OutcomeMeet || r == OutcomeUnknown
}

// MatchesPrediction reports whether a commentator's prediction named this result.
func (r OutcomeResult) MatchesPrediction(p PredictedOutcome) bool {
	return string(r) == string(p)
}

// PricePoint is one daily closing price, the raw material for outcome resolution.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// ActualOutcome is the resolved market reaction to one earnings event: the
// continuous percentage price move across the report date and its
// discretized result category. Events without enough price data have no
// ActualOutcome at all (nil), and correctness downstream stays unknown.
type ActualOutcome struct {
	EventKey     string        `json:"event_key"`
	PriceMovePct float64       `json:"price_move_pct"` // Close-to-close move across the event, in percent
	Result       OutcomeResult `json:"result"`
	PreClose     float64       `json:"pre_close"`
	PostClose    float64       `json:"post_close"`
	PreDate      time.Time     `json:"pre_date"`
	PostDate     time.Time     `json:"post_date"`
	ResolvedAt   time.Time     `json:"resolved_at"`
}

// Validate checks that the outcome is internally consistent.
func (a *ActualOutcome) Validate() error {
	if a.EventKey == "" {
		return errors.New("outcome event key must not be empty")
	}
	if !a.Result.Valid() || a.Result == OutcomeUnknown {
		return errors.New("outcome result must be beat, miss, or meet")
	}
	if a.PreClose <= 0 || a.PostClose <= 0 {
		return errors.New("outcome closes must be positive")
	}
	if a.PostDate.Before(a.PreDate) {
		return errors.New("outcome post date must not precede pre date")
	}
	return nil
}
