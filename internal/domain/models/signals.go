package models

import "time"

// AggregatedSignal represents the cross-timeframe consensus for one
// instrument. Note: no transport (json/http) concerns here.
type AggregatedSignal struct {
	InstrumentID      string
	Timestamp         time.Time
	OverallDirection  Direction
	OverallConfidence float64
	PerTimeframe      []Signal // ordered finest to coarsest, as evaluated
	AgreementRatio    float64
}

// Matching returns the per-timeframe signals whose direction equals the
// overall direction.
func (a *AggregatedSignal) Matching() []Signal {
	out := make([]Signal, 0, len(a.PerTimeframe))
	for _, s := range a.PerTimeframe {
		if s.Direction == a.OverallDirection {
			out = append(out, s)
		}
	}
	return out
}

// Unanimous reports whether every evaluated timeframe agreed on the overall
// direction.
func (a *AggregatedSignal) Unanimous() bool {
	return len(a.PerTimeframe) > 0 && a.AgreementRatio == 1.0
}
