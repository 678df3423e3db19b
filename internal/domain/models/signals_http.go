package models

import "time"

// Requests and response views for the signal HTTP endpoints. Defined in
// domain for consistency and reuse.

type SnapshotSignalRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
}

type EvaluateReadingPayload struct {
	TF     string             `json:"tf" default:"1h" validate:"oneof=15m 30m 1h 4h 1d"`
	TS     string             `json:"ts"`
	Values map[string]float64 `json:"values" validate:"required"`
}

type EvaluateRequest struct {
	Instrument string                   `json:"instrument" validate:"required"`
	Readings   []EvaluateReadingPayload `json:"readings" validate:"required,min=1,max=16,dive"`
	Emit       bool                     `json:"emit"`
}

type RecentSignalsRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
	From       string `query:"from" json:"from"`
	To         string `query:"to" json:"to"`
	Limit      int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=1000"`
}

type ResolveZoneRequest struct {
	Instrument string  `query:"instrument" json:"instrument" validate:"required"`
	TF         string  `query:"tf" json:"tf" default:"1h" validate:"oneof=15m 30m 1h 4h 1d"`
	Indicator  string  `query:"indicator" json:"indicator" validate:"required"`
	Value      float64 `query:"value" json:"value"`
}

// ComponentView is the JSON form of one indicator family's vote.
type ComponentView struct {
	Indicator string            `json:"indicator"`
	Direction string            `json:"direction"`
	Strength  float64           `json:"strength"`
	Zones     map[string]string `json:"zones,omitempty"`
	Note      string            `json:"note,omitempty"`
}

// SignalView is the JSON form of a per-timeframe hybrid signal. ID is empty
// on preview snapshots; only emitted signals carry one.
type SignalView struct {
	ID         string          `json:"id,omitempty"`
	Instrument string          `json:"instrument"`
	TF         string          `json:"tf"`
	TS         time.Time       `json:"ts"`
	Direction  string          `json:"direction"`
	SignalType string          `json:"signal_type"`
	Strength   float64         `json:"strength"`
	Confidence float64         `json:"confidence"`
	Rationale  string          `json:"rationale,omitempty"`
	Components []ComponentView `json:"components,omitempty"`
}

// AggregateView is the JSON form of the cross-timeframe verdict.
type AggregateView struct {
	Instrument     string       `json:"instrument"`
	TS             time.Time    `json:"ts"`
	Direction      string       `json:"direction"`
	Confidence     float64      `json:"confidence"`
	AgreementRatio float64      `json:"agreement_ratio"`
	Unanimous      bool         `json:"unanimous"`
	PerTimeframe   []SignalView `json:"per_timeframe"`
}

// EvaluateResponse reports an ad-hoc evaluation; Emitted is filled only when
// the caller asked for dispatch and the gate let signals through.
type EvaluateResponse struct {
	Aggregate AggregateView `json:"aggregate"`
	Emitted   []SignalView  `json:"emitted,omitempty"`
}

// ZoneResolution reports which zone a raw value classifies into.
type ZoneResolution struct {
	Instrument string  `json:"instrument"`
	TF         string  `json:"tf"`
	Indicator  string  `json:"indicator"`
	Value      float64 `json:"value"`
	Zone       string  `json:"zone"`
	Direction  string  `json:"direction"`
	Extremity  float64 `json:"extremity"`
}

// HealthStatus reports dependency health for the liveness endpoint.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// NewSignalView projects a domain signal for API responses.
func NewSignalView(s *Signal) SignalView {
	v := SignalView{
		ID:         s.ID,
		Instrument: s.InstrumentID,
		TF:         s.Timeframe,
		TS:         s.Timestamp,
		Direction:  string(s.Direction),
		SignalType: string(s.SignalType),
		Strength:   s.Strength,
		Confidence: s.Confidence,
		Rationale:  s.Rationale,
	}
	for _, comp := range s.Components {
		v.Components = append(v.Components, ComponentView{
			Indicator: comp.Indicator,
			Direction: string(comp.Direction),
			Strength:  comp.Strength,
			Zones:     comp.Zones,
			Note:      comp.Note,
		})
	}
	return v
}

// NewAggregateView projects a cross-timeframe verdict for API responses.
func NewAggregateView(a *AggregatedSignal) AggregateView {
	v := AggregateView{
		Instrument:     a.InstrumentID,
		TS:             a.Timestamp,
		Direction:      string(a.OverallDirection),
		Confidence:     a.OverallConfidence,
		AgreementRatio: a.AgreementRatio,
		Unanimous:      a.Unanimous(),
		PerTimeframe:   make([]SignalView, 0, len(a.PerTimeframe)),
	}
	for i := range a.PerTimeframe {
		v.PerTimeframe = append(v.PerTimeframe, NewSignalView(&a.PerTimeframe[i]))
	}
	return v
}
