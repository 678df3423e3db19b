package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
)

// stubZones returns a fixed zone per scalar name, with side and extremity
// taken from the default ladder.
type stubZones struct {
	zones map[string]models.Zone
	order models.ZoneOrder
}

func newStubZones(zones map[string]models.Zone) *stubZones {
	return &stubZones{zones: zones, order: models.DefaultZoneOrder()}
}

func (s *stubZones) Match(_ context.Context, _ string, _ domrepo.Timeframe, indicator string, _ float64) models.Zone {
	if z, ok := s.zones[indicator]; ok {
		return z
	}
	return models.ZoneNeutral
}

func (s *stubZones) Side(z models.Zone) models.Direction { return s.order.Side(z) }
func (s *stubZones) Extremity(z models.Zone) float64     { return s.order.Extremity(z) }

func oscReading(line, signal, histogram float64) *models.IndicatorReading {
	return &models.IndicatorReading{
		InstrumentID: "AAPL",
		Timeframe:    "1h",
		Timestamp:    time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Values: map[string]float64{
			models.FieldLine:      line,
			models.FieldSignal:    signal,
			models.FieldHistogram: histogram,
		},
	}
}

func TestTimingBullishMajority(t *testing.T) {
	o := NewOscillatorTiming(newStubZones(map[string]models.Zone{
		models.FieldLine:      models.ZoneBull,  // extremity 0.5
		models.FieldSignal:    models.ZoneGreed, // extremity 0.75
		models.FieldHistogram: models.ZonePos,   // extremity 0.25
	}))

	sig := o.Evaluate(context.Background(), oscReading(1.2, 1.0, 0.2))
	require.Equal(t, models.DirectionBuy, sig.Direction)
	require.Equal(t, models.SignalBuy, sig.SignalType)
	assert.InDelta(t, 0.5, sig.Strength, 1e-9, "strength is the mean extremity of the majority side")
	require.Len(t, sig.Components, 1)
	assert.Equal(t, string(models.ZoneBull), sig.Components[0].Zones[models.FieldLine])
}

func TestTimingBearishTwoOfThree(t *testing.T) {
	o := NewOscillatorTiming(newStubZones(map[string]models.Zone{
		models.FieldLine:      models.ZoneBear, // extremity 0.5
		models.FieldSignal:    models.ZoneFear, // extremity 0.75
		models.FieldHistogram: models.ZoneNeutral,
	}))

	sig := o.Evaluate(context.Background(), oscReading(-1.2, -1.5, 0.0))
	require.Equal(t, models.DirectionSell, sig.Direction)
	require.Equal(t, models.SignalSell, sig.SignalType)
	assert.InDelta(t, 0.625, sig.Strength, 1e-9, "only majority-side extremities count")
}

func TestTimingSplitIsNeutral(t *testing.T) {
	o := NewOscillatorTiming(newStubZones(map[string]models.Zone{
		models.FieldLine:      models.ZoneBull,
		models.FieldSignal:    models.ZoneBear,
		models.FieldHistogram: models.ZoneNeutral,
	}))

	sig := o.Evaluate(context.Background(), oscReading(1.0, -1.0, 0.0))
	require.Equal(t, models.DirectionNeutral, sig.Direction)
	assert.Zero(t, sig.Strength)
	require.Len(t, sig.Components, 1)
	assert.NotEmpty(t, sig.Components[0].Zones, "neutral outcome still reports the classified zones")
}

func TestTimingMissingFields(t *testing.T) {
	o := NewOscillatorTiming(newStubZones(nil))
	r := &models.IndicatorReading{
		InstrumentID: "AAPL",
		Timeframe:    "1h",
		Values:       map[string]float64{models.FieldLine: 1.0},
	}

	sig := o.Evaluate(context.Background(), r)
	require.Equal(t, models.DirectionNeutral, sig.Direction)
	assert.Contains(t, sig.Rationale, models.FieldSignal)
	assert.Contains(t, sig.Rationale, models.FieldHistogram)
}
