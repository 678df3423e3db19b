package models

import "time"

// Scalar names the engine understands inside an IndicatorReading. The
// upstream numeric layer owns the computation; these are only lookup keys.
const (
	FieldPrice     = "price"
	FieldMAShort1  = "ma_short1"
	FieldMAShort2  = "ma_short2"
	FieldMAShort3  = "ma_short3"
	FieldMALong    = "ma_long"
	FieldLine      = "line"
	FieldSignal    = "signal"
	FieldHistogram = "histogram"

	// IndicatorBars is the zone set used for momentum classification of
	// abs(histogram).
	IndicatorBars = "bars"
)

// IndicatorReading carries already-computed indicator scalars for one
// instrument and timeframe. Produced and owned by the upstream layer; the
// engine only reads it.
type IndicatorReading struct {
	InstrumentID string             `json:"instrument_id"`
	Timeframe    string             `json:"tf"`
	Timestamp    time.Time          `json:"ts"`
	Values       map[string]float64 `json:"values"`
}

// Value returns the named scalar and whether it is present.
func (r *IndicatorReading) Value(name string) (float64, bool) {
	if r == nil || r.Values == nil {
		return 0, false
	}
	v, ok := r.Values[name]
	return v, ok
}

// Missing returns the subset of names absent from the reading, in the given
// order. Used by evaluators to build degrade rationales.
func (r *IndicatorReading) Missing(names ...string) []string {
	var out []string
	for _, n := range names {
		if _, ok := r.Value(n); !ok {
			out = append(out, n)
		}
	}
	return out
}
