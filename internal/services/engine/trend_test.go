package engine

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"FinSignal/internal/domain/models"
	"FinSignal/pkg/config"
)

func trendReading(price, s1, s2, s3, long float64) *models.IndicatorReading {
	return &models.IndicatorReading{
		InstrumentID: "AAPL",
		Timeframe:    "1h",
		Timestamp:    time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Values: map[string]float64{
			models.FieldPrice:    price,
			models.FieldMAShort1: s1,
			models.FieldMAShort2: s2,
			models.FieldMAShort3: s3,
			models.FieldMALong:   long,
		},
	}
}

func TestTrendBullishStack(t *testing.T) {
	ts := NewTrendStack(&config.Config{})
	// 10% spread over the long average saturates the default 5% norm.
	sig := ts.Evaluate(context.Background(), trendReading(110, 105, 103, 101, 100))

	if sig.Direction != models.DirectionBuy {
		t.Fatalf("expected BUY, got %s", sig.Direction)
	}
	if sig.SignalType != models.SignalBuy {
		t.Fatalf("expected BUY type, got %s", sig.SignalType)
	}
	if sig.Strength != 1.0 {
		t.Errorf("expected saturated strength 1.0, got %v", sig.Strength)
	}
	if sig.InstrumentID != "AAPL" || sig.Timeframe != "1h" {
		t.Error("signal should carry the reading identity")
	}
}

func TestTrendBearishStack(t *testing.T) {
	ts := NewTrendStack(&config.Config{})
	sig := ts.Evaluate(context.Background(), trendReading(90, 95, 97, 99, 100))

	if sig.Direction != models.DirectionSell {
		t.Fatalf("expected SELL, got %s", sig.Direction)
	}
	if sig.SignalType != models.SignalSell {
		t.Fatalf("expected SELL type, got %s", sig.SignalType)
	}
	if sig.Strength != 1.0 {
		t.Errorf("expected saturated strength 1.0, got %v", sig.Strength)
	}
}

func TestTrendStrengthScalesWithSpread(t *testing.T) {
	ts := NewTrendStack(&config.Config{})
	// 2.5% spread is half the default norm.
	sig := ts.Evaluate(context.Background(), trendReading(102.5, 102, 101.5, 101, 100))

	if math.Abs(sig.Strength-0.5) > 1e-9 {
		t.Errorf("expected strength 0.5, got %v", sig.Strength)
	}
	if sig.Confidence != sig.Strength {
		t.Error("leaf confidence should equal strength")
	}
}

func TestTrendCustomSpreadNorm(t *testing.T) {
	cfg := &config.Config{}
	cfg.Engine.Trend.SpreadNorm = 0.10
	ts := NewTrendStack(cfg)
	// Same 2.5% spread, now a quarter of the norm.
	sig := ts.Evaluate(context.Background(), trendReading(102.5, 102, 101.5, 101, 100))

	if math.Abs(sig.Strength-0.25) > 1e-9 {
		t.Errorf("expected strength 0.25, got %v", sig.Strength)
	}
}

func TestTrendBrokenChainNeutral(t *testing.T) {
	ts := NewTrendStack(&config.Config{})
	// Shorts inverted in the middle of the chain.
	sig := ts.Evaluate(context.Background(), trendReading(110, 103, 105, 101, 100))

	if sig.Direction != models.DirectionNeutral || sig.SignalType != models.SignalNeutral {
		t.Fatalf("expected NEUTRAL on broken chain, got %s/%s", sig.Direction, sig.SignalType)
	}
	if sig.Strength != 0 {
		t.Errorf("neutral strength should be 0, got %v", sig.Strength)
	}
}

func TestTrendLongAverageVeto(t *testing.T) {
	ts := NewTrendStack(&config.Config{})
	// Shorts stacked bullish but their mean sits below the long average.
	sig := ts.Evaluate(context.Background(), trendReading(110, 105, 103, 101, 120))

	if sig.Direction != models.DirectionNeutral {
		t.Fatalf("expected NEUTRAL when long average vetoes, got %s", sig.Direction)
	}
}

func TestTrendUnconfirmedDegrades(t *testing.T) {
	ts := NewTrendStack(&config.Config{})
	r := trendReading(110, 105, 103, 101, 100)

	sig := ts.EvaluateConfirmed(context.Background(), r, false)
	if sig.Direction != models.DirectionNeutral {
		t.Fatalf("expected NEUTRAL without confirmation, got %s", sig.Direction)
	}
	if !strings.Contains(sig.Rationale, "not confirmed") {
		t.Errorf("rationale should name the confirmation failure, got %q", sig.Rationale)
	}

	sig = ts.EvaluateConfirmed(context.Background(), r, true)
	if sig.Direction != models.DirectionBuy {
		t.Fatalf("expected BUY with confirmation, got %s", sig.Direction)
	}
}

func TestTrendMissingFields(t *testing.T) {
	ts := NewTrendStack(&config.Config{})
	r := &models.IndicatorReading{
		InstrumentID: "AAPL",
		Timeframe:    "1h",
		Values:       map[string]float64{models.FieldPrice: 100},
	}

	sig := ts.Evaluate(context.Background(), r)
	if sig.Direction != models.DirectionNeutral {
		t.Fatalf("expected NEUTRAL on missing fields, got %s", sig.Direction)
	}
	if !strings.Contains(sig.Rationale, models.FieldMALong) {
		t.Errorf("rationale should name the missing scalars, got %q", sig.Rationale)
	}
}

func TestTrendLocalDirection(t *testing.T) {
	ts := NewTrendStack(&config.Config{})

	if got := ts.LocalDirection(trendReading(110, 105, 103, 101, 100)); got != models.DirectionBuy {
		t.Errorf("expected BUY, got %s", got)
	}
	if got := ts.LocalDirection(trendReading(90, 95, 97, 99, 100)); got != models.DirectionSell {
		t.Errorf("expected SELL, got %s", got)
	}
	if got := ts.LocalDirection(trendReading(100, 100, 100, 100, 100)); got != models.DirectionNeutral {
		t.Errorf("expected NEUTRAL on flat averages, got %s", got)
	}
	if got := ts.LocalDirection(&models.IndicatorReading{}); got != models.DirectionNeutral {
		t.Errorf("expected NEUTRAL on empty reading, got %s", got)
	}
}
