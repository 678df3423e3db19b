package engine

import (
	"context"
	"fmt"
	"math"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	domsvc "FinSignal/internal/domain/service"
)

// HistogramMomentum adds a third vote independent of the timing evaluator:
// abs(histogram) is classified against the "bars" zone set and the
// histogram's sign picks the side.
type HistogramMomentum struct {
	zones domsvc.ZoneClassifier
}

func NewHistogramMomentum(zones domsvc.ZoneClassifier) *HistogramMomentum {
	return &HistogramMomentum{zones: zones}
}

func (h *HistogramMomentum) Evaluate(ctx context.Context, r *models.IndicatorReading) models.Signal {
	hist, ok := r.Value(models.FieldHistogram)
	if !ok {
		return missingFieldsSignal(r, IndicatorMomentum, []string{models.FieldHistogram})
	}

	tf := domrepo.Timeframe(r.Timeframe)
	zone := h.zones.Match(ctx, r.InstrumentID, tf, models.IndicatorBars, math.Abs(hist))
	zones := map[string]string{models.IndicatorBars: string(zone)}

	if zone == models.ZoneNeutral {
		s := neutralSignal(r, IndicatorMomentum, "histogram magnitude inside neutral band")
		s.Components[0].Zones = zones
		return s
	}

	var dir models.Direction
	var st models.SignalType
	switch {
	case hist > 0:
		dir, st = models.DirectionBuy, models.SignalBuy
	case hist < 0:
		dir, st = models.DirectionSell, models.SignalSell
	default:
		s := neutralSignal(r, IndicatorMomentum, "histogram flat at zero")
		s.Components[0].Zones = zones
		return s
	}

	strength := clamp01(h.zones.Extremity(zone))
	rationale := fmt.Sprintf("histogram magnitude in %q zone, sign %s", zone, dir)

	return models.Signal{
		InstrumentID: r.InstrumentID,
		Timeframe:    r.Timeframe,
		Timestamp:    r.Timestamp,
		Direction:    dir,
		SignalType:   st,
		Strength:     strength,
		Confidence:   strength,
		Rationale:    rationale,
		Components: []models.Component{{
			Indicator: IndicatorMomentum,
			Direction: dir,
			Strength:  strength,
			Zones:     zones,
			Note:      rationale,
		}},
	}
}

var _ domsvc.MomentumEvaluator = (*HistogramMomentum)(nil)
