package models

import (
	"errors"
	"fmt"
	"time"
)

// RiskTier is a coarse classification of an author's reliability as a
// contrarian signal. "new" is assigned at entry creation; every subsequent
// merge recomputes the tier from the entry's running statistics.
type RiskTier string

const (
	RiskUnknown RiskTier = "unknown"
	RiskNew     RiskTier = "new"
	RiskLow     RiskTier = "low"
	RiskMedium  RiskTier = "medium"
	RiskHigh    RiskTier = "high"
)

// Valid reports whether r is a known risk tier.
func (r RiskTier) Valid() bool {
	switch r {
	case RiskUnknown, RiskNew, RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// AuthorLedgerEntry is the long-lived aggregate record for one normalized
// author identity. An entry is created on first sighting of the identity and
// mutated by every subsequent merge; entries are never deleted.
//
// The running counters here are the canonical source of truth for author
// statistics. The append-only history log is audit detail and is never used
// to recompute these aggregates.
type AuthorLedgerEntry struct {
	Key         AuthorKey `json:"key"`
	DisplayName string    `json:"display_name"` // First raw spelling seen
	RawNames    []string  `json:"raw_names"`    // All raw spellings observed for this key

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`

	TotalAppearances    int `json:"total_appearances"`    // Every evaluated opinion by this identity
	ContrarianInstances int `json:"contrarian_instances"` // Appearances flagged contrarian
	SuccessfulCalls     int `json:"successful_calls"`     // Contrarian instances resolved correct
	FailedCalls         int `json:"failed_calls"`         // Contrarian instances resolved incorrect

	// SuccessRate is successes/(successes+failures)×100. Nil while no
	// contrarian instance has resolved correctness; never NaN.
	SuccessRate *float64 `json:"success_rate,omitempty"`

	TotalScore   float64 `json:"total_score"`
	AverageScore float64 `json:"average_score"` // TotalScore / ContrarianInstances

	Companies []string `json:"companies"` // Sorted set of covered company names

	LatestCompany   string         `json:"latest_company"`
	LatestSymbol    string         `json:"latest_symbol"`
	LatestEventDate time.Time      `json:"latest_event_date"`
	LatestType      ContrarianType `json:"latest_type"`
	LatestCorrect   *bool          `json:"latest_correct,omitempty"`

	// ConsistencyScore is ContrarianInstances/TotalAppearances×100.
	ConsistencyScore float64  `json:"consistency_score"`
	RiskTier         RiskTier `json:"risk_tier"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the entry's counter invariants.
func (e *AuthorLedgerEntry) Validate() error {
	if e.Key == "" {
		return errors.New("ledger entry key must not be empty")
	}
	if e.DisplayName == "" {
		return errors.New("ledger entry display name must not be empty")
	}
	if e.TotalAppearances < 1 {
		return errors.New("ledger entry must have at least one appearance")
	}
	if e.ContrarianInstances < 0 || e.ContrarianInstances > e.TotalAppearances {
		return fmt.Errorf("contrarian instances %d out of [0,%d]", e.ContrarianInstances, e.TotalAppearances)
	}
	if e.SuccessfulCalls < 0 || e.FailedCalls < 0 {
		return errors.New("call counters must not be negative")
	}
	if e.SuccessfulCalls+e.FailedCalls > e.ContrarianInstances {
		return errors.New("resolved calls must not exceed contrarian instances")
	}
	if e.SuccessRate != nil && (*e.SuccessRate < 0 || *e.SuccessRate > 100) {
		return fmt.Errorf("success rate %f out of [0,100]", *e.SuccessRate)
	}
	if e.ConsistencyScore < 0 || e.ConsistencyScore > 100 {
		return fmt.Errorf("consistency score %f out of [0,100]", e.ConsistencyScore)
	}
	if !e.RiskTier.Valid() {
		return fmt.Errorf("invalid risk tier %q", e.RiskTier)
	}
	return nil
}

// AuthorHistoryRecord is one row of the append-only per-author log: a single
// contrarian finding with enough context to reconstruct its contribution to
// the aggregate. Records are strictly additive and never rewritten.
type AuthorHistoryRecord struct {
	ID        string    `json:"id"`
	AuthorKey AuthorKey `json:"author_key"`

	Company   string    `json:"company"`
	Symbol    string    `json:"symbol"`
	EventDate time.Time `json:"event_date"`
	EventKey  string    `json:"event_key"`

	Sentiment  Sentiment        `json:"sentiment"`
	Prediction PredictedOutcome `json:"prediction"`
	Confidence Confidence       `json:"confidence,omitempty"`

	Type         ContrarianType `json:"type"`
	Score        float64        `json:"score"`
	Correct      *bool          `json:"correct,omitempty"`
	ActualResult OutcomeResult  `json:"actual_result"`
	PriceMovePct *float64       `json:"price_move_pct,omitempty"`

	Reasoning  string    `json:"reasoning"`
	SourceID   string    `json:"source_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Validate checks the history record's required fields.
func (h *AuthorHistoryRecord) Validate() error {
	if h.ID == "" {
		return errors.New("history record ID must not be empty")
	}
	if h.AuthorKey == "" {
		return errors.New("history record author key must not be empty")
	}
	if h.EventKey == "" {
		return errors.New("history record event key must not be empty")
	}
	if h.Score < 0 {
		return fmt.Errorf("history record score %f must not be negative", h.Score)
	}
	if !h.Type.Valid() || h.Type == ContrarianNone {
		return fmt.Errorf("history record type %q must be a contrarian type", h.Type)
	}
	return nil
}
