package engine

import (
	"fmt"
	"math"

	"FinSignal/internal/domain/models"
	domsvc "FinSignal/internal/domain/service"
	"FinSignal/pkg/config"
)

// DefaultWeakDisagreementRatio downgrades a 2-of-3 majority to WEAK when the
// dissenting strength reaches this share of the mean majority strength.
const DefaultWeakDisagreementRatio = 0.75

// Combiner merges per-indicator signals into one hybrid signal for a single
// timeframe using a fixed decision table (two indicators) or majority vote
// (three indicators).
type Combiner struct {
	weakRatio float64
}

func NewCombiner(cfg *config.Config) *Combiner {
	r := cfg.Engine.Combine.WeakDisagreementRatio
	if r <= 0 {
		r = DefaultWeakDisagreementRatio
	}
	return &Combiner{weakRatio: r}
}

// Combine merges the trend and timing signals. The direction pairs map to
// result types symmetrically for BUY and SELL:
//
//	BUY+BUY         STRONG_BUY  min(sum, 1.0)
//	BUY+NEUTRAL     BUY         trend × 0.7
//	NEUTRAL+BUY     BUY         timing × 0.7
//	BUY+SELL        WEAK_BUY    |trend − timing| × 0.3
//	NEUTRAL+NEUTRAL NEUTRAL     0.0
func (c *Combiner) Combine(trend, timing models.Signal) models.Signal {
	var st models.SignalType
	var strength float64

	switch {
	case trend.Direction == models.DirectionBuy && timing.Direction == models.DirectionBuy:
		st = models.SignalStrongBuy
		strength = math.Min(trend.Strength+timing.Strength, 1.0)
	case trend.Direction == models.DirectionSell && timing.Direction == models.DirectionSell:
		st = models.SignalStrongSell
		strength = math.Min(trend.Strength+timing.Strength, 1.0)
	case trend.Direction == models.DirectionBuy && timing.Direction == models.DirectionNeutral:
		st = models.SignalBuy
		strength = trend.Strength * 0.7
	case trend.Direction == models.DirectionSell && timing.Direction == models.DirectionNeutral:
		st = models.SignalSell
		strength = trend.Strength * 0.7
	case trend.Direction == models.DirectionNeutral && timing.Direction == models.DirectionBuy:
		st = models.SignalBuy
		strength = timing.Strength * 0.7
	case trend.Direction == models.DirectionNeutral && timing.Direction == models.DirectionSell:
		st = models.SignalSell
		strength = timing.Strength * 0.7
	case trend.Direction == models.DirectionBuy && timing.Direction == models.DirectionSell:
		st = models.SignalWeakBuy
		strength = math.Abs(trend.Strength-timing.Strength) * 0.3
	case trend.Direction == models.DirectionSell && timing.Direction == models.DirectionBuy:
		st = models.SignalWeakSell
		strength = math.Abs(trend.Strength-timing.Strength) * 0.3
	default:
		st = models.SignalNeutral
		strength = 0.0
	}

	return c.build(st, clamp01(strength),
		fmt.Sprintf("trend %s(%.2f) + timing %s(%.2f)",
			trend.Direction, trend.Strength, timing.Direction, timing.Strength),
		trend, timing)
}

// CombineThree merges trend, timing and momentum by majority vote. Unanimous
// agreement yields STRONG_* with the capped strength sum; a 2-of-3 majority
// yields BUY/SELL at (sum/3)×0.8, downgraded to WEAK_* when the dissent is
// strong relative to the majority; anything else is NEUTRAL.
func (c *Combiner) CombineThree(trend, timing, momentum models.Signal) models.Signal {
	parts := []models.Signal{trend, timing, momentum}

	var buy, sell int
	var sum float64
	for _, p := range parts {
		sum += p.Strength
		switch p.Direction {
		case models.DirectionBuy:
			buy++
		case models.DirectionSell:
			sell++
		}
	}

	var st models.SignalType
	var strength float64
	switch {
	case buy == 3:
		st = models.SignalStrongBuy
		strength = math.Min(sum, 1.0)
	case sell == 3:
		st = models.SignalStrongSell
		strength = math.Min(sum, 1.0)
	case buy == 2:
		st = models.SignalBuy
		if c.weakMajority(models.DirectionBuy, parts) {
			st = models.SignalWeakBuy
		}
		strength = (sum / 3) * 0.8
	case sell == 2:
		st = models.SignalSell
		if c.weakMajority(models.DirectionSell, parts) {
			st = models.SignalWeakSell
		}
		strength = (sum / 3) * 0.8
	default:
		st = models.SignalNeutral
		strength = 0.0
	}

	return c.build(st, clamp01(strength),
		fmt.Sprintf("trend %s(%.2f) + timing %s(%.2f) + momentum %s(%.2f): %d buy / %d sell",
			trend.Direction, trend.Strength, timing.Direction, timing.Strength,
			momentum.Direction, momentum.Strength, buy, sell),
		trend, timing, momentum)
}

// weakMajority reports whether the single dissenting signal is strong enough
// relative to the mean majority strength to downgrade the verdict.
func (c *Combiner) weakMajority(majority models.Direction, parts []models.Signal) bool {
	var majStrengths []float64
	var dissent float64
	for _, p := range parts {
		if p.Direction == majority {
			majStrengths = append(majStrengths, p.Strength)
		} else {
			dissent = p.Strength
		}
	}
	m := mean(majStrengths...)
	if m == 0 {
		return dissent > 0
	}
	return dissent >= c.weakRatio*m
}

func (c *Combiner) build(st models.SignalType, strength float64, detail string, parts ...models.Signal) models.Signal {
	dir := st.Direction()

	var agree int
	var sum float64
	names := []string{IndicatorTrend, IndicatorTiming, IndicatorMomentum}
	components := make([]models.Component, 0, len(parts))
	for i, p := range parts {
		sum += p.Strength
		if p.Direction == dir {
			agree++
		}
		components = append(components, componentOf(names[i], p))
	}
	// Confidence scales the mean component strength by how many components
	// back the final direction.
	confidence := clamp01(float64(agree) / float64(len(parts)) * (sum / float64(len(parts))))

	out := models.Signal{
		Direction:  dir,
		SignalType: st,
		Strength:   strength,
		Confidence: confidence,
		Rationale:  fmt.Sprintf("%s -> %s", detail, st),
		Components: components,
	}
	// Carry instrument identity from whichever input has it.
	for _, p := range parts {
		if p.InstrumentID != "" {
			out.InstrumentID = p.InstrumentID
			out.Timeframe = p.Timeframe
			out.Timestamp = p.Timestamp
			break
		}
	}
	return out
}

var _ domsvc.HybridCombiner = (*Combiner)(nil)
