package models

import "time"

// Direction is the coarse side of a signal.
type Direction string

const (
	DirectionBuy     Direction = "BUY"
	DirectionSell    Direction = "SELL"
	DirectionNeutral Direction = "NEUTRAL"
)

// SignalType grades a recommendation from strongly bearish to strongly
// bullish. The ordering is part of the contract: callers compare types by
// Rank.
type SignalType string

const (
	SignalStrongSell SignalType = "STRONG_SELL"
	SignalSell       SignalType = "SELL"
	SignalWeakSell   SignalType = "WEAK_SELL"
	SignalNeutral    SignalType = "NEUTRAL"
	SignalWeakBuy    SignalType = "WEAK_BUY"
	SignalBuy        SignalType = "BUY"
	SignalStrongBuy  SignalType = "STRONG_BUY"
)

// Rank orders signal types from most bearish (-3) to most bullish (+3).
func (s SignalType) Rank() int {
	switch s {
	case SignalStrongSell:
		return -3
	case SignalSell:
		return -2
	case SignalWeakSell:
		return -1
	case SignalWeakBuy:
		return 1
	case SignalBuy:
		return 2
	case SignalStrongBuy:
		return 3
	default:
		return 0
	}
}

// Direction projects the type onto its coarse side.
func (s SignalType) Direction() Direction {
	switch {
	case s.Rank() > 0:
		return DirectionBuy
	case s.Rank() < 0:
		return DirectionSell
	default:
		return DirectionNeutral
	}
}

// Component is one indicator family's contribution to a hybrid signal.
type Component struct {
	Indicator string // "trend", "timing", "momentum"
	Direction Direction
	Strength  float64
	Zones     map[string]string // scalar name -> matched zone, for zone-driven evaluators
	Note      string
}

// Signal is an evaluation outcome for one instrument and timeframe. Built
// once; ID is stamped when the dispatcher emits it.
type Signal struct {
	ID           string
	InstrumentID string
	Timeframe    string
	Timestamp    time.Time
	Direction    Direction
	SignalType   SignalType
	Strength     float64
	Confidence   float64
	Rationale    string
	Components   []Component
}
