// Package adapter normalizes heterogeneous classified-article records into
// validated opinions the detection core consumes. Upstream classifiers emit
// free-case labels and sometimes no usable prediction at all; this is the
// boundary where such records are cleaned up or rejected.
package adapter

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rewired-gh/contraledger/internal/models"
)

// RawOpinion is one record as produced upstream: classifier output joined
// with article metadata. Labels are free-case ("Bullish", "BEAT");
// confidence and publication time are optional.
type RawOpinion struct {
	Author      string    `json:"author" validate:"required"`
	Sentiment   string    `json:"sentiment" validate:"required"`
	Prediction  string    `json:"prediction" validate:"required"`
	Confidence  string    `json:"confidence,omitempty"`
	SourceID    string    `json:"source_id,omitempty"`
	EventKey    string    `json:"event_key" validate:"required"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// RecordError ties a rejected record to its batch position and cause.
type RecordError struct {
	Index  int
	Source string
	Err    error
}

func (e *RecordError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("record %d (%s): %v", e.Index, e.Source, e.Err)
	}
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

var validate = validator.New()

// Adapt converts one raw record into a validated opinion.
func Adapt(raw RawOpinion) (models.Opinion, error) {
	if err := validate.Struct(raw); err != nil {
		return models.Opinion{}, fmt.Errorf("invalid record: %w", err)
	}

	sentiment, err := models.ParseSentiment(raw.Sentiment)
	if err != nil {
		return models.Opinion{}, err
	}
	prediction, err := models.ParsePredictedOutcome(raw.Prediction)
	if err != nil {
		return models.Opinion{}, err
	}
	confidence, err := models.ParseConfidence(raw.Confidence)
	if err != nil {
		return models.Opinion{}, err
	}

	opinion := models.Opinion{
		Author:      raw.Author,
		Sentiment:   sentiment,
		Prediction:  prediction,
		Confidence:  confidence,
		SourceID:    raw.SourceID,
		EventKey:    raw.EventKey,
		PublishedAt: raw.PublishedAt,
	}
	if err := opinion.Validate(); err != nil {
		return models.Opinion{}, err
	}

	return opinion, nil
}

// AdaptBatch converts a batch of raw records, collecting rejects instead of
// aborting: one article the model read badly must not cost the whole event.
func AdaptBatch(raws []RawOpinion) ([]models.Opinion, []*RecordError) {
	opinions := make([]models.Opinion, 0, len(raws))
	var rejects []*RecordError

	for i, raw := range raws {
		opinion, err := Adapt(raw)
		if err != nil {
			rejects = append(rejects, &RecordError{Index: i, Source: raw.SourceID, Err: err})
			continue
		}
		opinions = append(opinions, opinion)
	}

	return opinions, rejects
}
