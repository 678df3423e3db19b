package repository

// Timeframe represents indicator evaluation resolution buckets.
type Timeframe string

const (
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// AllTimeframes lists supported timeframes from finest to coarsest.
func AllTimeframes() []Timeframe {
	return []Timeframe{TF15m, TF30m, TF1h, TF4h, TF1d}
}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF15m, TF30m, TF1h, TF4h, TF1d:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1h }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// HigherTimeframe returns the confirmation timeframe one step up the ladder,
// or empty when tf is already at the top.
func HigherTimeframe(tf Timeframe) Timeframe {
	switch tf {
	case TF15m:
		return TF1h
	case TF30m:
		return TF4h
	case TF1h:
		return TF4h
	case TF4h:
		return TF1d
	default:
		return ""
	}
}

// SortIndex orders timeframes from finest (0) to coarsest. Unknown values
// sort last.
func SortIndex(tf Timeframe) int {
	switch tf {
	case TF15m:
		return 0
	case TF30m:
		return 1
	case TF1h:
		return 2
	case TF4h:
		return 3
	case TF1d:
		return 4
	default:
		return 5
	}
}
