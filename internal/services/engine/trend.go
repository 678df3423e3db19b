package engine

import (
	"context"
	"fmt"
	"math"

	"FinSignal/internal/domain/models"
	domsvc "FinSignal/internal/domain/service"
	"FinSignal/pkg/config"
)

// DefaultSpreadNorm is the relative price/long-average spread treated as a
// full-strength trend when no override is configured (5%).
const DefaultSpreadNorm = 0.05

// TrendStack evaluates the moving-average stack: the current price against
// three short averages and one long average.
type TrendStack struct {
	spreadNorm float64
}

func NewTrendStack(cfg *config.Config) *TrendStack {
	n := cfg.Engine.Trend.SpreadNorm
	if n <= 0 {
		n = DefaultSpreadNorm
	}
	return &TrendStack{spreadNorm: n}
}

var trendFields = []string{
	models.FieldPrice,
	models.FieldMAShort1,
	models.FieldMAShort2,
	models.FieldMAShort3,
	models.FieldMALong,
}

// LocalDirection checks the inequality chains on a single timeframe:
// bullish when price > s1 > s2 > s3 and mean(s1,s2,s3) > long, bearish on
// the mirrored chain, neutral otherwise or when fields are missing.
func (t *TrendStack) LocalDirection(r *models.IndicatorReading) models.Direction {
	price, ok := r.Value(models.FieldPrice)
	if !ok {
		return models.DirectionNeutral
	}
	s1, ok1 := r.Value(models.FieldMAShort1)
	s2, ok2 := r.Value(models.FieldMAShort2)
	s3, ok3 := r.Value(models.FieldMAShort3)
	long, ok4 := r.Value(models.FieldMALong)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return models.DirectionNeutral
	}
	shorts := mean(s1, s2, s3)
	switch {
	case price > s1 && s1 > s2 && s2 > s3 && shorts > long:
		return models.DirectionBuy
	case price < s1 && s1 < s2 && s2 < s3 && shorts < long:
		return models.DirectionSell
	default:
		return models.DirectionNeutral
	}
}

// Evaluate scores the stack without a higher-timeframe requirement.
func (t *TrendStack) Evaluate(ctx context.Context, r *models.IndicatorReading) models.Signal {
	return t.eval(r, true)
}

// EvaluateConfirmed additionally requires the caller-computed confirmation
// flag: a directional call degrades to NEUTRAL when the higher timeframe
// does not show the same local condition.
func (t *TrendStack) EvaluateConfirmed(ctx context.Context, r *models.IndicatorReading, confirmed bool) models.Signal {
	return t.eval(r, confirmed)
}

func (t *TrendStack) eval(r *models.IndicatorReading, confirmed bool) models.Signal {
	if missing := r.Missing(trendFields...); len(missing) > 0 {
		return missingFieldsSignal(r, IndicatorTrend, missing)
	}

	dir := t.LocalDirection(r)
	if dir == models.DirectionNeutral {
		return neutralSignal(r, IndicatorTrend, "averages not stacked in either direction")
	}
	if !confirmed {
		return neutralSignal(r, IndicatorTrend,
			fmt.Sprintf("local %s not confirmed by higher timeframe", dir))
	}

	price, _ := r.Value(models.FieldPrice)
	long, _ := r.Value(models.FieldMALong)
	strength := t.strengthOf(price, long)

	st := models.SignalBuy
	verb := "above"
	if dir == models.DirectionSell {
		st = models.SignalSell
		verb = "below"
	}
	rationale := fmt.Sprintf("price %s stacked short averages, spread %.2f%% of long average",
		verb, relSpread(price, long)*100)

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
			Indicator: IndicatorTrend,
			Direction: dir,
			Strength:  strength,
			Note:      rationale,
		}},
	}
}

// strengthOf normalizes the relative price/long-average spread against the
// configured constant and clamps to [0,1].
func (t *TrendStack) strengthOf(price, long float64) float64 {
	return clamp01(relSpread(price, long) / t.spreadNorm)
}

func relSpread(price, long float64) float64 {
	base := math.Abs(long)
	if base == 0 {
		base = math.Abs(price)
	}
	if base == 0 {
		return 0
	}
	return math.Abs(price-long) / base
}

var _ domsvc.TrendEvaluator = (*TrendStack)(nil)
