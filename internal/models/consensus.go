package models

import (
	"errors"
	"fmt"
)

// ConsensusSnapshot holds the per-event frequency distributions of sentiment
// and prediction categories across one batch of opinions. Snapshots are
// recomputed fresh per event and never mutated after construction.
//
// Invariant: the counts in each table independently sum to TotalOpinions.
type ConsensusSnapshot struct {
	EventKey         string                   `json:"event_key"`
	SentimentCounts  map[Sentiment]int        `json:"sentiment_counts"`
	PredictionCounts map[PredictedOutcome]int `json:"prediction_counts"`
	TotalOpinions    int                      `json:"total_opinions"`
}

// SentimentShare returns the fraction of the batch holding sentiment s, in [0,1].
func (c *ConsensusSnapshot) SentimentShare(s Sentiment) float64 {
	if c.TotalOpinions == 0 {
		return 0
	}
	return float64(c.SentimentCounts[s]) / float64(c.TotalOpinions)
}

// PredictionShare returns the fraction of the batch predicting p, in [0,1].
func (c *ConsensusSnapshot) PredictionShare(p PredictedOutcome) float64 {
	if c.TotalOpinions == 0 {
		return 0
	}
	return float64(c.PredictionCounts[p]) / float64(c.TotalOpinions)
}

// DominantSentiment returns the sentiment with the highest count. Ties are
// broken by the fixed order bullish > bearish > neutral for determinism.
func (c *ConsensusSnapshot) DominantSentiment() Sentiment {
	best := SentimentBullish
	for _, s := range []Sentiment{SentimentBullish, SentimentBearish, SentimentNeutral} {
		if c.SentimentCounts[s] > c.SentimentCounts[best] {
			best = s
		}
	}
	return best
}

// DominantPrediction returns the prediction with the highest count. Ties are
// broken by the fixed order beat > miss > meet for determinism.
func (c *ConsensusSnapshot) DominantPrediction() PredictedOutcome {
	best := PredictionBeat
	for _, p := range []PredictedOutcome{PredictionBeat, PredictionMiss, PredictionMeet} {
		if c.PredictionCounts[p] > c.PredictionCounts[best] {
			best = p
		}
	}
	return best
}

// Validate checks the snapshot's structural invariants.
func (c *ConsensusSnapshot) Validate() error {
	if c.EventKey == "" {
		return errors.New("snapshot event key must not be empty")
	}
	if c.TotalOpinions <= 0 {
		return errors.New("snapshot must cover at least one opinion")
	}

	sentimentSum := 0
	for s, n := range c.SentimentCounts {
		if !s.Valid() {
			return fmt.Errorf("invalid sentiment key %q in counts", s)
		}
		if n < 0 {
			return fmt.Errorf("negative count for sentiment %q", s)
		}
		sentimentSum += n
	}
	if sentimentSum != c.TotalOpinions {
		return fmt.Errorf("sentiment counts sum to %d, want %d", sentimentSum, c.TotalOpinions)
	}

	predictionSum := 0
	for p, n := range c.PredictionCounts {
		if !p.Valid() {
			return fmt.Errorf("invalid prediction key %q in counts", p)
		}
		if n < 0 {
			return fmt.Errorf("negative count for prediction %q", p)
		}
		predictionSum += n
	}
	if predictionSum != c.TotalOpinions {
		return fmt.Errorf("prediction counts sum to %d, want %d", predictionSum, c.TotalOpinions)
	}

	return nil
}
