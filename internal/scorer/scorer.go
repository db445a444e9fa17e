// Package scorer decides contrarian membership and produces the numeric
// contrarian score for each opinion in an event batch.
//
// An opinion is contrarian when its sentiment or its prediction holds a
// minority share of the event's consensus. Each minority dimension
// contributes (1 - share) * 100 points plus a confidence bonus, and the
// whole contribution is multiplied by the correctness multiplier when
// that dimension individually matched the realized outcome. Dimensions
// holding a majority share contribute nothing.
package scorer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/contraledger/internal/consensus"
	"github.com/rewired-gh/contraledger/internal/models"
	"github.com/rewired-gh/contraledger/internal/outcome"
)

// Config holds the tunable scoring constants. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	// MinorityThreshold is the consensus share strictly below which a
	// category counts as minority. A lone opinion always holds a share
	// of 1.0 and can never be minority.
	MinorityThreshold float64

	// Confidence bonuses added to a minority dimension's contribution.
	HighConfidenceBonus   float64
	MediumConfidenceBonus float64
	LowConfidenceBonus    float64

	// CorrectMultiplier scales a minority dimension's contribution when
	// that dimension individually matched the realized outcome.
	CorrectMultiplier float64
}

// DefaultConfig returns the standard scoring constants: minority below
// a 0.40 share, bonuses of +20/+10/+5 for high/medium/low confidence,
// and a 1.5x multiplier for individually correct dimensions.
func DefaultConfig() Config {
	return Config{
		MinorityThreshold:     0.40,
		HighConfidenceBonus:   20,
		MediumConfidenceBonus: 10,
		LowConfidenceBonus:    5,
		CorrectMultiplier:     1.5,
	}
}

// Validate checks that the configuration produces meaningful scores.
func (c Config) Validate() error {
	if c.MinorityThreshold <= 0 || c.MinorityThreshold > 1 {
		return errors.New("minority threshold must be in (0, 1]")
	}
	if c.HighConfidenceBonus < 0 || c.MediumConfidenceBonus < 0 || c.LowConfidenceBonus < 0 {
		return errors.New("confidence bonuses cannot be negative")
	}
	if c.CorrectMultiplier < 1 {
		return errors.New("correct multiplier must be at least 1")
	}
	return nil
}

// Scorer evaluates opinions against their event's consensus and
// realized outcome.
type Scorer struct {
	cfg Config
}

// New creates a Scorer with the given configuration.
func New(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scorer config: %w", err)
	}
	return &Scorer{cfg: cfg}, nil
}

// EvaluateBatch tallies the consensus for one event and scores every
// opinion against it. The outcome may be nil for events that have not
// resolved yet; findings for such events carry unknown correctness
// instead of failing the batch.
func (s *Scorer) EvaluateBatch(event models.EarningsEvent, opinions []models.Opinion, actual *models.ActualOutcome) ([]models.ContrarianFinding, error) {
	snapshot, err := consensus.Tally(event.Key(), opinions)
	if err != nil {
		return nil, err
	}

	findings := make([]models.ContrarianFinding, 0, len(opinions))
	for i, op := range opinions {
		finding, err := s.Evaluate(event, op, snapshot, actual)
		if err != nil {
			return nil, fmt.Errorf("opinion %d by %s: %w", i, op.Author, err)
		}
		findings = append(findings, finding)
	}
	return findings, nil
}

// Evaluate scores a single opinion against its event's consensus
// snapshot and, when available, the realized outcome.
//
// Correctness is deliberately lenient: an opinion counts as correct when
// either its sentiment matches the sentiment the outcome vindicates or
// its prediction matches the outcome's result. Requiring both would
// punish authors for the noisier of the two labels.
func (s *Scorer) Evaluate(event models.EarningsEvent, op models.Opinion, snapshot models.ConsensusSnapshot, actual *models.ActualOutcome) (models.ContrarianFinding, error) {
	sentimentShare := snapshot.SentimentShare(op.Sentiment)
	predictionShare := snapshot.PredictionShare(op.Prediction)
	minoritySentiment := sentimentShare < s.cfg.MinorityThreshold
	minorityPrediction := predictionShare < s.cfg.MinorityThreshold

	finding := models.ContrarianFinding{
		ID:                    uuid.NewString(),
		EventKey:              snapshot.EventKey,
		Company:               event.Company,
		Symbol:                event.Symbol,
		EventDate:             event.Date,
		Author:                op.Author,
		AuthorKey:             models.NormalizeAuthor(op.Author),
		Sentiment:             op.Sentiment,
		Prediction:            op.Prediction,
		Confidence:            op.Confidence,
		SentimentShare:        sentimentShare,
		PredictionShare:       predictionShare,
		WasMinoritySentiment:  minoritySentiment,
		WasMinorityPrediction: minorityPrediction,
		IsContrarian:          minoritySentiment || minorityPrediction,
		Type:                  contrarianType(minoritySentiment, minorityPrediction),
		ActualResult:          models.OutcomeUnknown,
		SourceID:              op.SourceID,
		EvaluatedAt:           time.Now().UTC(),
	}

	if actual != nil {
		sentimentCorrect := outcome.SentimentFor(actual.Result) == op.Sentiment
		predictionCorrect := actual.Result.MatchesPrediction(op.Prediction)
		correct := sentimentCorrect || predictionCorrect
		movePct := actual.PriceMovePct

		finding.SentimentCorrect = &sentimentCorrect
		finding.PredictionCorrect = &predictionCorrect
		finding.Correct = &correct
		finding.ActualResult = actual.Result
		finding.PriceMovePct = &movePct
	}

	if minoritySentiment {
		finding.Score += s.dimensionScore(sentimentShare, op.Confidence, finding.SentimentCorrect)
	}
	if minorityPrediction {
		finding.Score += s.dimensionScore(predictionShare, op.Confidence, finding.PredictionCorrect)
	}
	finding.Reasoning = s.buildReasoning(finding, snapshot)

	if err := finding.Validate(); err != nil {
		return models.ContrarianFinding{}, fmt.Errorf("finding for %s: %w", op.Author, err)
	}
	return finding, nil
}

// dimensionScore computes one minority dimension's contribution:
// (1 - share) * 100, plus the confidence bonus, times the correctness
// multiplier when the dimension individually matched the outcome.
func (s *Scorer) dimensionScore(share float64, confidence models.Confidence, correct *bool) float64 {
	contribution := (1-share)*100 + s.confidenceBonus(confidence)
	if correct != nil && *correct {
		contribution *= s.cfg.CorrectMultiplier
	}
	return contribution
}

func (s *Scorer) confidenceBonus(confidence models.Confidence) float64 {
	switch confidence {
	case models.ConfidenceHigh:
		return s.cfg.HighConfidenceBonus
	case models.ConfidenceMedium:
		return s.cfg.MediumConfidenceBonus
	case models.ConfidenceLow:
		return s.cfg.LowConfidenceBonus
	default:
		return 0
	}
}

func contrarianType(minoritySentiment, minorityPrediction bool) models.ContrarianType {
	switch {
	case minoritySentiment && minorityPrediction:
		return models.ContrarianBoth
	case minoritySentiment:
		return models.ContrarianSentimentOnly
	case minorityPrediction:
		return models.ContrarianPredictionOnly
	default:
		return models.ContrarianNone
	}
}

// buildReasoning renders a short audit trail for the history log so a
// reader can reconstruct the verdict without replaying the batch.
func (s *Scorer) buildReasoning(f models.ContrarianFinding, snapshot models.ConsensusSnapshot) string {
	var sb strings.Builder

	if f.WasMinoritySentiment {
		fmt.Fprintf(&sb, "%s sentiment held %.0f%% of %d opinions against a %s majority",
			f.Sentiment, f.SentimentShare*100, snapshot.TotalOpinions, snapshot.DominantSentiment())
	}
	if f.WasMinorityPrediction {
		if sb.Len() > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "predicted %s at %.0f%% share against a %s majority",
			f.Prediction, f.PredictionShare*100, snapshot.DominantPrediction())
	}
	if sb.Len() == 0 {
		fmt.Fprintf(&sb, "%s/%s aligned with the consensus", f.Sentiment, f.Prediction)
	}

	switch {
	case f.Correct == nil:
		sb.WriteString("; outcome not yet resolved")
	case *f.Correct:
		fmt.Fprintf(&sb, "; outcome %s (%+.1f%%) vindicated the call", f.ActualResult, *f.PriceMovePct)
	default:
		fmt.Fprintf(&sb, "; outcome %s (%+.1f%%) went against the call", f.ActualResult, *f.PriceMovePct)
	}
	return sb.String()
}
