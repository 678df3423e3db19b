package engine

import (
	"context"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	domsvc "FinSignal/internal/domain/service"
	"FinSignal/pkg/config"
	applogger "FinSignal/pkg/logger"
)

// ZoneMatcher classifies scalar indicator values into named zones. Rows are
// resolved per instrument first, then through the instrument's market
// template; when nothing resolves the neutral sentinel is returned, so
// downstream evaluators degrade instead of failing.
type ZoneMatcher struct {
	src     domrepo.ThresholdSource
	markets domrepo.MarketResolver
	order   models.ZoneOrder
	logger  *applogger.Logger
}

func NewZoneMatcher(cfg *config.Config, src domrepo.ThresholdSource, markets domrepo.MarketResolver, lgr *applogger.Logger) *ZoneMatcher {
	order := models.DefaultZoneOrder()
	if len(cfg.Engine.ZoneOrder) > 0 {
		order = make(models.ZoneOrder, 0, len(cfg.Engine.ZoneOrder))
		for _, z := range cfg.Engine.ZoneOrder {
			order = append(order, models.Zone(z))
		}
	}
	return &ZoneMatcher{src: src, markets: markets, order: order, logger: lgr}
}

// Match returns the first zone on the priority ladder whose threshold
// predicate accepts value. Most extreme zones sit first on the ladder, so
// the scan order is the documented tie-break.
func (m *ZoneMatcher) Match(ctx context.Context, instrumentID string, tf domrepo.Timeframe, indicator string, value float64) models.Zone {
	rows := m.load(ctx, instrumentID, tf, indicator)
	if len(rows) == 0 {
		return models.ZoneNeutral
	}
	for _, z := range m.order {
		for _, r := range rows {
			if r.Zone == z && r.Matches(value) {
				return z
			}
		}
	}
	return models.ZoneNeutral
}

func (m *ZoneMatcher) load(ctx context.Context, instrumentID string, tf domrepo.Timeframe, indicator string) []models.ZoneThreshold {
	rows, err := m.src.InstrumentThresholds(ctx, instrumentID, tf, indicator)
	if err != nil && m.logger != nil {
		m.logger.Warn("instrument threshold lookup failed",
			applogger.String("instrument", instrumentID),
			applogger.String("tf", string(tf)),
			applogger.String("indicator", indicator),
			applogger.Error(err))
	}
	if len(rows) > 0 {
		return rows
	}

	market := m.markets.MarketOf(instrumentID)
	rows, err = m.src.MarketThresholds(ctx, market, tf, indicator)
	if err != nil && m.logger != nil {
		m.logger.Warn("market threshold lookup failed",
			applogger.String("market", market),
			applogger.String("tf", string(tf)),
			applogger.String("indicator", indicator),
			applogger.Error(err))
	}
	return rows
}

// Side reports which side of neutral the zone sits on per the configured
// ladder.
func (m *ZoneMatcher) Side(z models.Zone) models.Direction { return m.order.Side(z) }

// Extremity reports the zone's normalized distance from neutral in (0,1].
func (m *ZoneMatcher) Extremity(z models.Zone) float64 { return m.order.Extremity(z) }

var _ domsvc.ZoneClassifier = (*ZoneMatcher)(nil)
