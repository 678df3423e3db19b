package engine

import (
	"context"
	"fmt"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	domsvc "FinSignal/internal/domain/service"
)

// OscillatorTiming evaluates the oscillator triplet of a reading. Each of
// line, signal and histogram is zone-classified independently; the majority
// side wins and zone extremity drives strength.
type OscillatorTiming struct {
	zones domsvc.ZoneClassifier
}

func NewOscillatorTiming(zones domsvc.ZoneClassifier) *OscillatorTiming {
	return &OscillatorTiming{zones: zones}
}

var timingFields = []string{
	models.FieldLine,
	models.FieldSignal,
	models.FieldHistogram,
}

func (o *OscillatorTiming) Evaluate(ctx context.Context, r *models.IndicatorReading) models.Signal {
	if missing := r.Missing(timingFields...); len(missing) > 0 {
		return missingFieldsSignal(r, IndicatorTiming, missing)
	}

	tf := domrepo.Timeframe(r.Timeframe)
	zoneByField := make(map[string]string, len(timingFields))
	bull, bear := 0, 0
	var bullExt, bearExt []float64
	for _, name := range timingFields {
		v, _ := r.Value(name)
		z := o.zones.Match(ctx, r.InstrumentID, tf, name, v)
		zoneByField[name] = string(z)
		switch o.zones.Side(z) {
		case models.DirectionBuy:
			bull++
			bullExt = append(bullExt, o.zones.Extremity(z))
		case models.DirectionSell:
			bear++
			bearExt = append(bearExt, o.zones.Extremity(z))
		}
	}

	var dir models.Direction
	var strength float64
	switch {
	case bull >= 2:
		dir = models.DirectionBuy
		strength = clamp01(mean(bullExt...))
	case bear >= 2:
		dir = models.DirectionSell
		strength = clamp01(mean(bearExt...))
	default:
		s := neutralSignal(r, IndicatorTiming, "no zone majority on either side")
		s.Components[0].Zones = zoneByField
		return s
	}

	st := models.SignalBuy
	if dir == models.DirectionSell {
		st = models.SignalSell
	}
	rationale := fmt.Sprintf("line=%s signal=%s histogram=%s: majority %s",
		zoneByField[models.FieldLine], zoneByField[models.FieldSignal], zoneByField[models.FieldHistogram], dir)

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
			Indicator: IndicatorTiming,
			Direction: dir,
			Strength:  strength,
			Zones:     zoneByField,
			Note:      rationale,
		}},
	}
}

var _ domsvc.TimingEvaluator = (*OscillatorTiming)(nil)
