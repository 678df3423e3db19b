package engine

import (
	"fmt"
	"strings"

	"FinSignal/internal/domain/models"
)

// Indicator family names used in component breakdowns and rationales.
const (
	IndicatorTrend    = "trend"
	IndicatorTiming   = "timing"
	IndicatorMomentum = "momentum"
)

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func mean(vals ...float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// neutralSignal builds the degraded outcome every evaluator falls back to:
// direction NEUTRAL, strength 0, the reason preserved in the rationale.
func neutralSignal(r *models.IndicatorReading, indicator, reason string) models.Signal {
	s := models.Signal{
		Direction:  models.DirectionNeutral,
		SignalType: models.SignalNeutral,
		Rationale:  reason,
		Components: []models.Component{{
			Indicator: indicator,
			Direction: models.DirectionNeutral,
			Note:      reason,
		}},
	}
	if r != nil {
		s.InstrumentID = r.InstrumentID
		s.Timeframe = r.Timeframe
		s.Timestamp = r.Timestamp
	}
	return s
}

// missingFieldsSignal degrades incomplete readings to a neutral outcome
// naming the absent scalars.
func missingFieldsSignal(r *models.IndicatorReading, indicator string, missing []string) models.Signal {
	return neutralSignal(r, indicator, fmt.Sprintf("missing fields: %s", strings.Join(missing, ", ")))
}

// componentOf extracts the leading component of a per-indicator signal, or
// synthesizes one when the signal carries none.
func componentOf(indicator string, s models.Signal) models.Component {
	if len(s.Components) > 0 {
		return s.Components[0]
	}
	return models.Component{
		Indicator: indicator,
		Direction: s.Direction,
		Strength:  s.Strength,
		Note:      s.Rationale,
	}
}
