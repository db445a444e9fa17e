// Package outcome resolves what actually happened after an earnings
// event by comparing the closest daily closes bracketing the event
// date. Events without a close on both sides stay unresolved so that
// correctness verdicts are never guessed.
package outcome

import (
	"fmt"
	"sort"
	"time"

	"github.com/rewired-gh/contraledger/internal/models"
)

// DefaultMoveThresholdPct is the price move magnitude, in percent,
// separating a meet from a beat or a miss.
const DefaultMoveThresholdPct = 3.0

// Resolve maps a close-to-close percentage move to a coarse result.
// Moves of at least +thresholdPct are a beat, moves of at most
// -thresholdPct are a miss, and everything in between is a meet.
func Resolve(movePct, thresholdPct float64) models.OutcomeResult {
	switch {
	case movePct >= thresholdPct:
		return models.OutcomeBeat
	case movePct <= -thresholdPct:
		return models.OutcomeMiss
	default:
		return models.OutcomeMeet
	}
}

// SentimentFor returns the sentiment a realized outcome vindicates.
// An unknown outcome vindicates nothing and yields the empty sentiment.
func SentimentFor(result models.OutcomeResult) models.Sentiment {
	switch result {
	case models.OutcomeBeat:
		return models.SentimentBullish
	case models.OutcomeMiss:
		return models.SentimentBearish
	case models.OutcomeMeet:
		return models.SentimentNeutral
	default:
		return ""
	}
}

// FromPriceWindow derives the realized outcome for an event from a daily
// close series. The pre close is the last close strictly before the event
// date and the post close is the first close strictly after it, so the
// event day's own close never sits on both sides of the comparison.
//
// A nil outcome with a nil error means the series does not bracket the
// event date yet. Callers treat that as "not resolved", not a failure.
func FromPriceWindow(eventKey string, eventDate time.Time, points []models.PricePoint, thresholdPct float64) (*models.ActualOutcome, error) {
	if len(points) == 0 {
		return nil, nil
	}

	sorted := make([]models.PricePoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	eventDay := dayOf(eventDate)
	var pre, post *models.PricePoint
	for i := range sorted {
		day := dayOf(sorted[i].Date)
		if day.Before(eventDay) {
			pre = &sorted[i]
		} else if day.After(eventDay) {
			post = &sorted[i]
			break
		}
	}
	if pre == nil || post == nil {
		return nil, nil
	}
	if pre.Close <= 0 {
		return nil, fmt.Errorf("non-positive close %f on %s for %s",
			pre.Close, pre.Date.Format("2006-01-02"), eventKey)
	}

	movePct := (post.Close - pre.Close) / pre.Close * 100
	result := &models.ActualOutcome{
		EventKey:     eventKey,
		PriceMovePct: movePct,
		Result:       Resolve(movePct, thresholdPct),
		PreClose:     pre.Close,
		PostClose:    post.Close,
		PreDate:      pre.Date,
		PostDate:     post.Date,
		ResolvedAt:   time.Now().UTC(),
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("resolved outcome for %s: %w", eventKey, err)
	}
	return result, nil
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
