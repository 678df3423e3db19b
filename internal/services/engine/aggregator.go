package engine

import (
	"time"

	"FinSignal/internal/domain/models"
	domsvc "FinSignal/internal/domain/service"
)

// MajorityAggregator folds per-timeframe hybrid signals into one
// instrument-level verdict by direction vote.
type MajorityAggregator struct{}

func NewMajorityAggregator() *MajorityAggregator {
	return &MajorityAggregator{}
}

// Aggregate picks the direction held by strictly more timeframes than any
// other. Ties resolve to NEUTRAL. Overall confidence is the mean confidence
// across all inputs regardless of the vote, and the agreement ratio is the
// share of inputs matching the winning direction. An empty input yields a
// NEUTRAL verdict with zero confidence and a zero timestamp.
func (a *MajorityAggregator) Aggregate(instrumentID string, perTimeframe []models.Signal) models.AggregatedSignal {
	out := models.AggregatedSignal{
		InstrumentID:     instrumentID,
		OverallDirection: models.DirectionNeutral,
		PerTimeframe:     perTimeframe,
	}
	if len(perTimeframe) == 0 {
		return out
	}

	votes := map[models.Direction]int{}
	var confSum float64
	var latest time.Time
	for _, s := range perTimeframe {
		votes[s.Direction]++
		confSum += s.Confidence
		if s.Timestamp.After(latest) {
			latest = s.Timestamp
		}
	}
	out.Timestamp = latest
	out.OverallConfidence = confSum / float64(len(perTimeframe))

	winner := models.DirectionNeutral
	best, tied := 0, false
	for _, d := range []models.Direction{models.DirectionBuy, models.DirectionSell, models.DirectionNeutral} {
		n := votes[d]
		switch {
		case n > best:
			winner, best, tied = d, n, false
		case n == best && n > 0:
			tied = true
		}
	}
	if tied {
		winner = models.DirectionNeutral
	}

	out.OverallDirection = winner
	out.AgreementRatio = float64(votes[winner]) / float64(len(perTimeframe))
	return out
}

var _ domsvc.TimeframeAggregator = (*MajorityAggregator)(nil)
