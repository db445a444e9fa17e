// Package consensus builds per-event consensus distributions from
// batches of analyst opinions. The resulting snapshot is the sole
// input for minority classification, so tallies are computed in one
// place and validated before they leave this package.
package consensus

import (
	"fmt"

	"github.com/rewired-gh/contraledger/internal/models"
)

// EmptyBatchError reports an attempt to tally an event with no opinions.
// Callers are expected to skip the event and continue with the rest of
// the run rather than abort.
type EmptyBatchError struct {
	EventKey string
}

func (e *EmptyBatchError) Error() string {
	return fmt.Sprintf("no opinions to tally for event %s", e.EventKey)
}

// Tally counts sentiment and prediction labels for a single event batch.
//
// All opinions must carry the given event key. Opinions from a different
// event indicate a grouping bug upstream and fail the whole tally instead
// of silently skewing the distribution.
func Tally(eventKey string, opinions []models.Opinion) (models.ConsensusSnapshot, error) {
	if len(opinions) == 0 {
		return models.ConsensusSnapshot{}, &EmptyBatchError{EventKey: eventKey}
	}

	snapshot := models.ConsensusSnapshot{
		EventKey:         eventKey,
		SentimentCounts:  make(map[models.Sentiment]int),
		PredictionCounts: make(map[models.PredictedOutcome]int),
	}

	for i, opinion := range opinions {
		if opinion.EventKey != eventKey {
			return models.ConsensusSnapshot{}, fmt.Errorf(
				"opinion %d belongs to event %s, expected %s", i, opinion.EventKey, eventKey)
		}
		if err := opinion.Validate(); err != nil {
			return models.ConsensusSnapshot{}, fmt.Errorf("opinion %d by %s: %w", i, opinion.Author, err)
		}
		snapshot.SentimentCounts[opinion.Sentiment]++
		snapshot.PredictionCounts[opinion.Prediction]++
		snapshot.TotalOpinions++
	}

	if err := snapshot.Validate(); err != nil {
		return models.ConsensusSnapshot{}, fmt.Errorf("tally for %s: %w", eventKey, err)
	}
	return snapshot, nil
}

// GroupByEvent splits a mixed batch of opinions into per-event batches,
// preserving the order opinions arrived in within each batch.
func GroupByEvent(opinions []models.Opinion) map[string][]models.Opinion {
	groups := make(map[string][]models.Opinion)
	for _, opinion := range opinions {
		groups[opinion.EventKey] = append(groups[opinion.EventKey], opinion)
	}
	return groups
}
