package repository

import (
	"context"
	"fmt"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	"FinSignal/pkg/config"
)

// DefaultMarket is used when an instrument has no override and no default
// is configured.
const DefaultMarket = "US"

// builtinMarketThresholds covers the supported markets out of the box so a
// bare config still classifies. Values follow typical oscillator scales per
// market; config rows for the same market replace the whole template.
func builtinMarketThresholds() map[string][]models.ZoneThreshold {
	oscUS := func(indicator string) []models.ZoneThreshold {
		return []models.ZoneThreshold{
			{Market: "US", Indicator: indicator, Zone: models.ZoneIgr, Op: models.OpGT, Min: 2},
			{Market: "US", Indicator: indicator, Zone: models.ZoneBull, Op: models.OpBetween, Min: 0.5, Max: 2},
			{Market: "US", Indicator: indicator, Zone: models.ZonePos, Op: models.OpBetween, Min: 0.1, Max: 0.5},
			{Market: "US", Indicator: indicator, Zone: models.ZoneNeg, Op: models.OpBetween, Min: -0.5, Max: -0.1},
			{Market: "US", Indicator: indicator, Zone: models.ZoneBear, Op: models.OpBetween, Min: -2, Max: -0.5},
			{Market: "US", Indicator: indicator, Zone: models.ZonePanic, Op: models.OpLT, Max: -2},
		}
	}
	oscVN := func(indicator string) []models.ZoneThreshold {
		return []models.ZoneThreshold{
			{Market: "VN", Indicator: indicator, Zone: models.ZoneIgr, Op: models.OpGT, Min: 500},
			{Market: "VN", Indicator: indicator, Zone: models.ZoneBull, Op: models.OpBetween, Min: 100, Max: 500},
			{Market: "VN", Indicator: indicator, Zone: models.ZonePos, Op: models.OpBetween, Min: 20, Max: 100},
			{Market: "VN", Indicator: indicator, Zone: models.ZoneNeg, Op: models.OpBetween, Min: -100, Max: -20},
			{Market: "VN", Indicator: indicator, Zone: models.ZoneBear, Op: models.OpBetween, Min: -500, Max: -100},
			{Market: "VN", Indicator: indicator, Zone: models.ZonePanic, Op: models.OpLT, Max: -500},
		}
	}
	// bars classifies abs(histogram), so its zones sit on the bullish half
	// of the ladder only; magnitude below the first band is neutral.
	barsUS := []models.ZoneThreshold{
		{Market: "US", Indicator: models.IndicatorBars, Zone: models.ZoneIgr, Op: models.OpGT, Min: 2},
		{Market: "US", Indicator: models.IndicatorBars, Zone: models.ZoneGreed, Op: models.OpBetween, Min: 1, Max: 2},
		{Market: "US", Indicator: models.IndicatorBars, Zone: models.ZoneBull, Op: models.OpBetween, Min: 0.25, Max: 1},
		{Market: "US", Indicator: models.IndicatorBars, Zone: models.ZonePos, Op: models.OpBetween, Min: 0.05, Max: 0.25},
	}
	barsVN := []models.ZoneThreshold{
		{Market: "VN", Indicator: models.IndicatorBars, Zone: models.ZoneIgr, Op: models.OpGT, Min: 500},
		{Market: "VN", Indicator: models.IndicatorBars, Zone: models.ZoneGreed, Op: models.OpBetween, Min: 200, Max: 500},
		{Market: "VN", Indicator: models.IndicatorBars, Zone: models.ZoneBull, Op: models.OpBetween, Min: 50, Max: 200},
		{Market: "VN", Indicator: models.IndicatorBars, Zone: models.ZonePos, Op: models.OpBetween, Min: 10, Max: 50},
	}

	us := append(oscUS(models.FieldLine), oscUS(models.FieldSignal)...)
	us = append(us, oscUS(models.FieldHistogram)...)
	us = append(us, barsUS...)

	vn := append(oscVN(models.FieldLine), oscVN(models.FieldSignal)...)
	vn = append(vn, oscVN(models.FieldHistogram)...)
	vn = append(vn, barsVN...)

	return map[string][]models.ZoneThreshold{"US": us, "VN": vn}
}

// builtinsOnLadder drops builtin rows whose zone is missing from a custom
// ladder. Configured rows stay strict; only the shipped defaults degrade.
func builtinsOnLadder(order models.ZoneOrder) map[string][]models.ZoneThreshold {
	builtins := builtinMarketThresholds()
	out := make(map[string][]models.ZoneThreshold, len(builtins))
	for market, rows := range builtins {
		kept := make([]models.ZoneThreshold, 0, len(rows))
		for _, r := range rows {
			if order.Index(r.Zone) >= 0 {
				kept = append(kept, r)
			}
		}
		out[market] = kept
	}
	return out
}

// ConfigThresholdSource serves zone thresholds from static configuration.
// All groups are validated at construction, so an overlapping or
// unreachable zone setup fails startup instead of surprising the matcher.
type ConfigThresholdSource struct {
	markets     map[string][]models.ZoneThreshold
	instruments map[string][]models.ZoneThreshold
}

func NewConfigThresholdSource(cfg *config.Config, order models.ZoneOrder) (*ConfigThresholdSource, error) {
	s := &ConfigThresholdSource{
		markets:     builtinsOnLadder(order),
		instruments: make(map[string][]models.ZoneThreshold),
	}
	for market, rows := range cfg.Engine.Thresholds.Markets {
		s.markets[market] = convertRows(rows, "", market)
	}
	for instrument, rows := range cfg.Engine.Thresholds.Instruments {
		s.instruments[instrument] = convertRows(rows, instrument, "")
	}

	for market, rows := range s.markets {
		if err := validateOwnerRows("market "+market, rows, order); err != nil {
			return nil, err
		}
	}
	for instrument, rows := range s.instruments {
		if err := validateOwnerRows("instrument "+instrument, rows, order); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *ConfigThresholdSource) InstrumentThresholds(_ context.Context, instrumentID string, tf domrepo.Timeframe, indicator string) ([]models.ZoneThreshold, error) {
	return filterRows(s.instruments[instrumentID], tf, indicator), nil
}

func (s *ConfigThresholdSource) MarketThresholds(_ context.Context, market string, tf domrepo.Timeframe, indicator string) ([]models.ZoneThreshold, error) {
	return filterRows(s.markets[market], tf, indicator), nil
}

func convertRows(rows []config.ThresholdRow, instrumentID, market string) []models.ZoneThreshold {
	out := make([]models.ZoneThreshold, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.ZoneThreshold{
			InstrumentID: instrumentID,
			Market:       market,
			Timeframe:    r.TF,
			Indicator:    r.Indicator,
			Zone:         models.Zone(r.Zone),
			Op:           models.CompareOp(r.Op),
			Min:          r.Min,
			Max:          r.Max,
		})
	}
	return out
}

// filterRows keeps rows for the indicator whose timeframe matches exactly
// or is the wildcard (empty).
func filterRows(rows []models.ZoneThreshold, tf domrepo.Timeframe, indicator string) []models.ZoneThreshold {
	var out []models.ZoneThreshold
	for _, r := range rows {
		if r.Indicator != indicator {
			continue
		}
		if r.Timeframe == "" || r.Timeframe == string(tf) {
			out = append(out, r)
		}
	}
	return out
}

// validateOwnerRows checks every effective zone set an owner can produce:
// each concrete timeframe sees its own rows merged with the wildcard rows.
func validateOwnerRows(owner string, rows []models.ZoneThreshold, order models.ZoneOrder) error {
	byIndicator := make(map[string][]models.ZoneThreshold)
	for _, r := range rows {
		byIndicator[r.Indicator] = append(byIndicator[r.Indicator], r)
	}
	for indicator, group := range byIndicator {
		tfs := map[string]bool{}
		for _, r := range group {
			tfs[r.Timeframe] = true
		}
		for tfLabel := range tfs {
			if tfLabel == "" && len(tfs) > 1 {
				continue // wildcard rows are covered by every concrete set
			}
			effective := filterRows(group, domrepo.Timeframe(tfLabel), indicator)
			if err := models.ValidateZoneSet(effective, order); err != nil {
				return fmt.Errorf("thresholds for %s, indicator %q, tf %q: %w", owner, indicator, tfLabel, err)
			}
		}
	}
	return nil
}

// ConfigMarketResolver maps instruments onto market templates via explicit
// overrides with a configured default.
type ConfigMarketResolver struct {
	def       string
	overrides map[string]string
}

func NewConfigMarketResolver(cfg *config.Config) *ConfigMarketResolver {
	def := cfg.Engine.Markets.Default
	if def == "" {
		def = DefaultMarket
	}
	return &ConfigMarketResolver{def: def, overrides: cfg.Engine.Markets.Overrides}
}

func (r *ConfigMarketResolver) MarketOf(instrumentID string) string {
	if m, ok := r.overrides[instrumentID]; ok {
		return m
	}
	return r.def
}

var (
	_ domrepo.ThresholdSource = (*ConfigThresholdSource)(nil)
	_ domrepo.MarketResolver  = (*ConfigMarketResolver)(nil)
)
