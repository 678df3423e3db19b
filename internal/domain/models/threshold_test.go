package models

import (
	"math"
	"testing"
)

func TestThresholdMatches(t *testing.T) {
	tests := []struct {
		name string
		row  ZoneThreshold
		v    float64
		want bool
	}{
		{"gt above", ZoneThreshold{Op: OpGT, Min: 1}, 1.5, true},
		{"gt at bound", ZoneThreshold{Op: OpGT, Min: 1}, 1.0, false},
		{"gte at bound", ZoneThreshold{Op: OpGTE, Min: 1}, 1.0, true},
		{"lt below", ZoneThreshold{Op: OpLT, Max: -1}, -1.5, true},
		{"lt at bound", ZoneThreshold{Op: OpLT, Max: -1}, -1.0, false},
		{"lte at bound", ZoneThreshold{Op: OpLTE, Max: -1}, -1.0, true},
		{"between inside", ZoneThreshold{Op: OpBetween, Min: 0, Max: 1}, 0.5, true},
		{"between lower bound inclusive", ZoneThreshold{Op: OpBetween, Min: 0, Max: 1}, 0.0, true},
		{"between upper bound inclusive", ZoneThreshold{Op: OpBetween, Min: 0, Max: 1}, 1.0, true},
		{"between outside", ZoneThreshold{Op: OpBetween, Min: 0, Max: 1}, 1.1, false},
		{"unknown op never matches", ZoneThreshold{Op: CompareOp("~=")}, 0.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.row.Matches(tt.v); got != tt.want {
				t.Errorf("Matches(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestZoneOrderValidate(t *testing.T) {
	if err := DefaultZoneOrder().Validate(); err != nil {
		t.Fatalf("default order should validate: %v", err)
	}
	if err := (ZoneOrder{}).Validate(); err == nil {
		t.Error("empty order should fail")
	}
	if err := (ZoneOrder{ZoneBull, ZoneBear}).Validate(); err == nil {
		t.Error("order without neutral should fail")
	}
	if err := (ZoneOrder{ZoneBull, ZoneNeutral, ZoneBull}).Validate(); err == nil {
		t.Error("duplicate zone should fail")
	}
}

func TestZoneOrderSide(t *testing.T) {
	o := DefaultZoneOrder()
	for _, z := range []Zone{ZoneIgr, ZoneGreed, ZoneBull, ZonePos} {
		if o.Side(z) != DirectionBuy {
			t.Errorf("%q should be on the buy side", z)
		}
	}
	for _, z := range []Zone{ZoneNeg, ZoneBear, ZoneFear, ZonePanic} {
		if o.Side(z) != DirectionSell {
			t.Errorf("%q should be on the sell side", z)
		}
	}
	if o.Side(ZoneNeutral) != DirectionNeutral {
		t.Error("neutral has no side")
	}
	if o.Side(Zone("nope")) != DirectionNeutral {
		t.Error("unknown zone has no side")
	}
}

func TestZoneOrderExtremity(t *testing.T) {
	o := DefaultZoneOrder()
	tests := []struct {
		z    Zone
		want float64
	}{
		{ZoneIgr, 1.0},
		{ZoneGreed, 0.75},
		{ZoneBull, 0.5},
		{ZonePos, 0.25},
		{ZoneNeutral, 0},
		{ZoneNeg, 0.25},
		{ZoneBear, 0.5},
		{ZoneFear, 0.75},
		{ZonePanic, 1.0},
		{Zone("nope"), 0},
	}
	for _, tt := range tests {
		if got := o.Extremity(tt.z); got != tt.want {
			t.Errorf("Extremity(%q) = %v, want %v", tt.z, got, tt.want)
		}
	}
}

func TestValidateZoneSetAcceptsPartition(t *testing.T) {
	rows := []ZoneThreshold{
		{Zone: ZoneIgr, Op: OpGT, Min: 5},
		{Zone: ZoneBull, Op: OpBetween, Min: 1, Max: 5},
		{Zone: ZonePos, Op: OpBetween, Min: 0.25, Max: 1},
		{Zone: ZoneNeg, Op: OpBetween, Min: -1, Max: -0.25},
		{Zone: ZoneBear, Op: OpBetween, Min: -5, Max: -1},
		{Zone: ZonePanic, Op: OpLT, Max: -5},
	}
	if err := ValidateZoneSet(rows, DefaultZoneOrder()); err != nil {
		t.Fatalf("partition-style set should validate: %v", err)
	}
}

func TestValidateZoneSetRejections(t *testing.T) {
	order := DefaultZoneOrder()
	tests := []struct {
		name string
		rows []ZoneThreshold
	}{
		{
			"zone not on ladder",
			[]ZoneThreshold{{Zone: Zone("mystery"), Op: OpGT, Min: 1}},
		},
		{
			"duplicate zone",
			[]ZoneThreshold{
				{Zone: ZoneBull, Op: OpGT, Min: 1},
				{Zone: ZoneBull, Op: OpGT, Min: 2},
			},
		},
		{
			"unknown operator",
			[]ZoneThreshold{{Zone: ZoneBull, Op: CompareOp("~="), Min: 1}},
		},
		{
			"nan bound",
			[]ZoneThreshold{{Zone: ZoneBull, Op: OpGT, Min: math.NaN()}},
		},
		{
			"inverted between",
			[]ZoneThreshold{{Zone: ZoneBull, Op: OpBetween, Min: 5, Max: 1}},
		},
		{
			"shadowed zone can never match",
			[]ZoneThreshold{
				{Zone: ZoneNeg, Op: OpLT, Max: 0},
				{Zone: ZonePanic, Op: OpLT, Max: -5}, // fully inside neg's range
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateZoneSet(tt.rows, order); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateZoneSetBoundarySharingAllowed(t *testing.T) {
	// Adjacent betweens sharing an endpoint overlap only at that point;
	// the ladder's first-match rule resolves it, so this is legal.
	rows := []ZoneThreshold{
		{Zone: ZoneBull, Op: OpBetween, Min: 1, Max: 5},
		{Zone: ZonePos, Op: OpBetween, Min: 0, Max: 1},
	}
	if err := ValidateZoneSet(rows, DefaultZoneOrder()); err != nil {
		t.Fatalf("boundary sharing should validate: %v", err)
	}
}

func TestValidateZoneSetRejectsInteriorOverlap(t *testing.T) {
	order := DefaultZoneOrder()
	tests := []struct {
		name string
		rows []ZoneThreshold
	}{
		{
			// pos and neg intersect on [0.2, 0.6]; neither shadows the
			// other, but every value in between matches both rows.
			"partially overlapping betweens",
			[]ZoneThreshold{
				{Zone: ZonePos, Op: OpBetween, Min: 0.1, Max: 0.6},
				{Zone: ZoneNeg, Op: OpBetween, Min: 0.2, Max: 0.8},
			},
		},
		{
			"half-lines overlapping",
			[]ZoneThreshold{
				{Zone: ZoneIgr, Op: OpGT, Min: 1},
				{Zone: ZoneBull, Op: OpGTE, Min: 0.5},
			},
		},
		{
			"between crossing a half-line",
			[]ZoneThreshold{
				{Zone: ZonePanic, Op: OpLT, Max: -2},
				{Zone: ZoneBear, Op: OpBetween, Min: -3, Max: -1},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateZoneSet(tt.rows, order); err == nil {
				t.Fatal("overlapping set should fail validation")
			}
		})
	}
}

func TestSignalTypeRankAndDirection(t *testing.T) {
	ordered := []SignalType{
		SignalStrongSell, SignalSell, SignalWeakSell,
		SignalNeutral,
		SignalWeakBuy, SignalBuy, SignalStrongBuy,
	}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Rank() >= ordered[i].Rank() {
			t.Errorf("%q should rank below %q", ordered[i-1], ordered[i])
		}
	}
	if SignalStrongBuy.Direction() != DirectionBuy || SignalWeakBuy.Direction() != DirectionBuy {
		t.Error("buy-side types should project to BUY")
	}
	if SignalStrongSell.Direction() != DirectionSell || SignalWeakSell.Direction() != DirectionSell {
		t.Error("sell-side types should project to SELL")
	}
	if SignalNeutral.Direction() != DirectionNeutral {
		t.Error("neutral projects to NEUTRAL")
	}
}
