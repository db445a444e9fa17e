package ledger

import "github.com/rewired-gh/contraledger/internal/models"

// Risk tier thresholds. An author needs a track record before any tier
// stronger than "unknown" is assigned.
const (
	riskMinInstances    = 2
	riskLowMinRate      = 70.0
	riskLowMinInstances = 3
	riskHighMaxRate     = 30.0
	riskHighMinConsist  = 20.0
)

// RiskFor derives the risk tier from an author's success rate, contrarian
// instance count, and consistency score. It is a pure function: the same
// inputs always produce the same tier, independent of merge order.
//
// A nil success rate means no contrarian call has resolved yet.
func RiskFor(successRate *float64, instances int, consistency float64) models.RiskTier {
	if instances < riskMinInstances || successRate == nil {
		return models.RiskUnknown
	}
	if *successRate >= riskLowMinRate && instances >= riskLowMinInstances {
		return models.RiskLow
	}
	if *successRate < riskHighMaxRate || consistency < riskHighMinConsist {
		return models.RiskHigh
	}
	return models.RiskMedium
}
