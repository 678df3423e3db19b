package models

import (
	"fmt"
	"math"
)

// Zone names a bucket a scalar indicator value is classified into.
type Zone string

const (
	ZoneIgr     Zone = "igr" // irrational greed, most bullish
	ZoneGreed   Zone = "greed"
	ZoneBull    Zone = "bull"
	ZonePos     Zone = "pos"
	ZoneNeutral Zone = "neutral"
	ZoneNeg     Zone = "neg"
	ZoneBear    Zone = "bear"
	ZoneFear    Zone = "fear"
	ZonePanic   Zone = "panic" // most bearish
)

// CompareOp is the comparison predicate of a threshold row.
type CompareOp string

const (
	OpGT      CompareOp = ">"
	OpGTE     CompareOp = ">="
	OpLT      CompareOp = "<"
	OpLTE     CompareOp = "<="
	OpBetween CompareOp = "between"
)

// ZoneThreshold defines one zone bucket for an (owner, timeframe, indicator)
// key, where owner is either an instrument or a market template. Bound
// usage by operator: ">"/" >=" read Min, "<"/"<=" read Max, "between" reads
// both and is inclusive on both ends.
type ZoneThreshold struct {
	InstrumentID string // empty on market template rows
	Market       string // set on market template rows
	Timeframe    string
	Indicator    string
	Zone         Zone
	Op           CompareOp
	Min          float64
	Max          float64
}

// Matches reports whether v satisfies the row's predicate.
func (t ZoneThreshold) Matches(v float64) bool {
	switch t.Op {
	case OpGT:
		return v > t.Min
	case OpGTE:
		return v >= t.Min
	case OpLT:
		return v < t.Max
	case OpLTE:
		return v <= t.Max
	case OpBetween:
		return v >= t.Min && v <= t.Max
	default:
		return false
	}
}

// interval is the satisfied-set of a row on the real line.
type interval struct {
	lo, hi         float64
	loIncl, hiIncl bool
}

func (t ZoneThreshold) toInterval() interval {
	switch t.Op {
	case OpGT:
		return interval{lo: t.Min, hi: math.Inf(1), loIncl: false, hiIncl: false}
	case OpGTE:
		return interval{lo: t.Min, hi: math.Inf(1), loIncl: true, hiIncl: false}
	case OpLT:
		return interval{lo: math.Inf(-1), hi: t.Max, loIncl: false, hiIncl: false}
	case OpLTE:
		return interval{lo: math.Inf(-1), hi: t.Max, loIncl: false, hiIncl: true}
	default:
		return interval{lo: t.Min, hi: t.Max, loIncl: true, hiIncl: true}
	}
}

// contains reports whether b's satisfied-set lies entirely inside a's.
func (a interval) contains(b interval) bool {
	okLo := a.lo < b.lo || (a.lo == b.lo && (a.loIncl || !b.loIncl))
	okHi := a.hi > b.hi || (a.hi == b.hi && (a.hiIncl || !b.hiIncl))
	return okLo && okHi
}

// overlapsInterior reports whether the two satisfied-sets intersect on an
// interval of positive length. A single shared endpoint is not an overlap:
// between is inclusive on both ends, so adjacent zones legitimately touch
// and the ladder's first-match rule resolves the boundary point.
func (a interval) overlapsInterior(b interval) bool {
	lo := math.Max(a.lo, b.lo)
	hi := math.Min(a.hi, b.hi)
	return lo < hi
}

// ZoneOrder is the priority ladder from most bullish to most bearish, with
// "neutral" somewhere in between. Matching scans it front to back, so the
// most extreme satisfied zone always wins.
type ZoneOrder []Zone

// DefaultZoneOrder returns the full nine-zone ladder.
func DefaultZoneOrder() ZoneOrder {
	return ZoneOrder{
		ZoneIgr, ZoneGreed, ZoneBull, ZonePos,
		ZoneNeutral,
		ZoneNeg, ZoneBear, ZoneFear, ZonePanic,
	}
}

// Validate checks the ladder is usable: non-empty, contains neutral exactly
// once, no duplicates.
func (o ZoneOrder) Validate() error {
	if len(o) == 0 {
		return fmt.Errorf("zone order: empty")
	}
	seen := make(map[Zone]bool, len(o))
	neutrals := 0
	for _, z := range o {
		if seen[z] {
			return fmt.Errorf("zone order: duplicate zone %q", z)
		}
		seen[z] = true
		if z == ZoneNeutral {
			neutrals++
		}
	}
	if neutrals != 1 {
		return fmt.Errorf("zone order: must contain %q exactly once", ZoneNeutral)
	}
	return nil
}

// Index returns the priority position of z, or -1 when z is not on the
// ladder.
func (o ZoneOrder) Index(z Zone) int {
	for i, x := range o {
		if x == z {
			return i
		}
	}
	return -1
}

// Side reports which side of neutral z sits on.
func (o ZoneOrder) Side(z Zone) Direction {
	i := o.Index(z)
	n := o.Index(ZoneNeutral)
	switch {
	case i < 0 || n < 0 || i == n:
		return DirectionNeutral
	case i < n:
		return DirectionBuy
	default:
		return DirectionSell
	}
}

// Extremity returns how far z sits from neutral on its side, normalized to
// (0,1] with 1 at the ladder's end. Neutral and unknown zones score 0.
func (o ZoneOrder) Extremity(z Zone) float64 {
	i := o.Index(z)
	n := o.Index(ZoneNeutral)
	if i < 0 || n < 0 || i == n {
		return 0
	}
	if i < n {
		return float64(n-i) / float64(n)
	}
	return float64(i-n) / float64(len(o)-1-n)
}

// ValidateZoneSet rejects ambiguous threshold groups at load time. rows must
// all share one (owner, timeframe, indicator) key. A group is invalid when a
// zone appears twice, a row's bounds are unusable, a lower-priority row's
// satisfied-set is fully shadowed by a higher-priority one (a dead zone that
// can never match), or two rows' satisfied-sets intersect on more than a
// shared boundary point (values in the intersection would match both zones
// and only ladder priority would decide).
func ValidateZoneSet(rows []ZoneThreshold, order ZoneOrder) error {
	seen := make(map[Zone]bool, len(rows))
	for _, r := range rows {
		if order.Index(r.Zone) < 0 {
			return fmt.Errorf("zone set %s/%s: zone %q not in priority order", r.Timeframe, r.Indicator, r.Zone)
		}
		if seen[r.Zone] {
			return fmt.Errorf("zone set %s/%s: zone %q defined twice", r.Timeframe, r.Indicator, r.Zone)
		}
		seen[r.Zone] = true
		switch r.Op {
		case OpGT, OpGTE, OpLT, OpLTE, OpBetween:
		default:
			return fmt.Errorf("zone set %s/%s: zone %q has unknown operator %q", r.Timeframe, r.Indicator, r.Zone, r.Op)
		}
		if math.IsNaN(r.Min) || math.IsNaN(r.Max) {
			return fmt.Errorf("zone set %s/%s: zone %q has NaN bound", r.Timeframe, r.Indicator, r.Zone)
		}
		if r.Op == OpBetween && r.Min > r.Max {
			return fmt.Errorf("zone set %s/%s: zone %q between bounds inverted (%v > %v)", r.Timeframe, r.Indicator, r.Zone, r.Min, r.Max)
		}
	}
	for i := range rows {
		for j := range rows {
			if i == j {
				continue
			}
			hi, lo := rows[i], rows[j]
			if order.Index(hi.Zone) >= order.Index(lo.Zone) {
				continue // only check pairs where hi has strictly higher priority
			}
			if hi.toInterval().contains(lo.toInterval()) {
				return fmt.Errorf("zone set %s/%s: zone %q is unreachable, range fully covered by higher-priority zone %q",
					lo.Timeframe, lo.Indicator, lo.Zone, hi.Zone)
			}
			if hi.toInterval().overlapsInterior(lo.toInterval()) {
				return fmt.Errorf("zone set %s/%s: zones %q and %q overlap beyond a shared boundary",
					lo.Timeframe, lo.Indicator, hi.Zone, lo.Zone)
			}
		}
	}
	return nil
}
