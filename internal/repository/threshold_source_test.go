package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	"FinSignal/pkg/config"
)

func TestConfigSourceBuiltinsValidate(t *testing.T) {
	src, err := NewConfigThresholdSource(&config.Config{}, models.DefaultZoneOrder())
	require.NoError(t, err, "shipped templates must pass their own validation")

	rows, err := src.MarketThresholds(context.Background(), "US", domrepo.TF1h, models.FieldLine)
	require.NoError(t, err)
	assert.NotEmpty(t, rows, "US template should classify the oscillator line")

	rows, err = src.MarketThresholds(context.Background(), "VN", domrepo.TF1h, models.IndicatorBars)
	require.NoError(t, err)
	assert.NotEmpty(t, rows, "VN template should classify histogram magnitude")

	rows, err = src.MarketThresholds(context.Background(), "JP", domrepo.TF1h, models.FieldLine)
	require.NoError(t, err)
	assert.Empty(t, rows, "unknown market resolves to nothing, matcher degrades to neutral")
}

func TestConfigSourceMarketOverrideReplacesTemplate(t *testing.T) {
	cfg := &config.Config{}
	cfg.Engine.Thresholds.Markets = map[string][]config.ThresholdRow{
		"US": {
			{Indicator: "line", Zone: "bull", Op: ">", Min: 10},
			{Indicator: "line", Zone: "bear", Op: "<", Max: -10},
		},
	}
	src, err := NewConfigThresholdSource(cfg, models.DefaultZoneOrder())
	require.NoError(t, err)

	rows, err := src.MarketThresholds(context.Background(), "US", domrepo.TF1h, models.FieldLine)
	require.NoError(t, err)
	require.Len(t, rows, 2, "configured market rows replace the whole template")
	assert.Equal(t, models.ZoneBull, rows[0].Zone)

	// The untouched VN template is still served.
	rows, err = src.MarketThresholds(context.Background(), "VN", domrepo.TF1h, models.FieldLine)
	require.NoError(t, err)
	assert.NotEmpty(t, rows)
}

func TestConfigSourceInstrumentRows(t *testing.T) {
	cfg := &config.Config{}
	cfg.Engine.Thresholds.Instruments = map[string][]config.ThresholdRow{
		"AAPL": {
			{TF: "1h", Indicator: "line", Zone: "bull", Op: "between", Min: 1, Max: 5},
			{TF: "4h", Indicator: "line", Zone: "bull", Op: "between", Min: 2, Max: 8},
			{Indicator: "histogram", Zone: "pos", Op: "between", Min: 0.1, Max: 1},
		},
	}
	src, err := NewConfigThresholdSource(cfg, models.DefaultZoneOrder())
	require.NoError(t, err)
	ctx := context.Background()

	rows, err := src.InstrumentThresholds(ctx, "AAPL", domrepo.TF1h, "line")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1.0, rows[0].Min, "1h row selected, not the 4h one")

	rows, err = src.InstrumentThresholds(ctx, "AAPL", domrepo.TF1d, "line")
	require.NoError(t, err)
	assert.Empty(t, rows, "no row for 1d, fallback to market happens in the matcher")

	rows, err = src.InstrumentThresholds(ctx, "AAPL", domrepo.TF1d, "histogram")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "timeframe-wildcard row applies everywhere")

	rows, err = src.InstrumentThresholds(ctx, "MSFT", domrepo.TF1h, "line")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestConfigSourceRejectsOverlapAtLoad(t *testing.T) {
	cfg := &config.Config{}
	cfg.Engine.Thresholds.Instruments = map[string][]config.ThresholdRow{
		"AAPL": {
			{Indicator: "line", Zone: "neg", Op: "<", Max: 0},
			{Indicator: "line", Zone: "panic", Op: "<", Max: -5},
		},
	}
	_, err := NewConfigThresholdSource(cfg, models.DefaultZoneOrder())
	require.Error(t, err, "a shadowed zone is a configuration error, not a runtime guess")
	assert.Contains(t, err.Error(), "panic")
}

func TestConfigSourceRejectsWildcardSpecificConflict(t *testing.T) {
	cfg := &config.Config{}
	cfg.Engine.Thresholds.Instruments = map[string][]config.ThresholdRow{
		"AAPL": {
			{Indicator: "line", Zone: "bull", Op: ">", Min: 1},
			{TF: "1h", Indicator: "line", Zone: "bull", Op: ">", Min: 2},
		},
	}
	_, err := NewConfigThresholdSource(cfg, models.DefaultZoneOrder())
	require.Error(t, err, "wildcard and specific rows collide on the same zone at 1h")
}

func TestConfigSourceCustomLadderDropsForeignBuiltins(t *testing.T) {
	order := models.ZoneOrder{models.ZoneBull, models.ZoneNeutral, models.ZoneBear}
	src, err := NewConfigThresholdSource(&config.Config{}, order)
	require.NoError(t, err)

	rows, err := src.MarketThresholds(context.Background(), "US", domrepo.TF1h, models.FieldLine)
	require.NoError(t, err)
	for _, r := range rows {
		assert.GreaterOrEqual(t, order.Index(r.Zone), 0, "only ladder zones survive")
	}
}

func TestMarketResolver(t *testing.T) {
	cfg := &config.Config{}
	cfg.Engine.Markets.Default = "US"
	cfg.Engine.Markets.Overrides = map[string]string{"VIC": "VN", "HPG": "VN"}
	r := NewConfigMarketResolver(cfg)

	assert.Equal(t, "VN", r.MarketOf("VIC"))
	assert.Equal(t, "US", r.MarketOf("AAPL"))

	empty := NewConfigMarketResolver(&config.Config{})
	assert.Equal(t, DefaultMarket, empty.MarketOf("anything"))
}

type countingSource struct {
	calls int
	rows  []models.ZoneThreshold
	err   error
}

func (s *countingSource) InstrumentThresholds(context.Context, string, domrepo.Timeframe, string) ([]models.ZoneThreshold, error) {
	s.calls++
	return s.rows, s.err
}

func (s *countingSource) MarketThresholds(context.Context, string, domrepo.Timeframe, string) ([]models.ZoneThreshold, error) {
	s.calls++
	return s.rows, s.err
}

func TestCachedThresholdSource(t *testing.T) {
	next := &countingSource{rows: []models.ZoneThreshold{{Zone: models.ZoneBull, Op: models.OpGT, Min: 1}}}
	src := NewCachedThresholdSource(next, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rows, err := src.InstrumentThresholds(ctx, "AAPL", domrepo.TF1h, "line")
		require.NoError(t, err)
		require.Len(t, rows, 1)
	}
	assert.Equal(t, 1, next.calls, "repeat lookups are served from cache")

	_, err := src.InstrumentThresholds(ctx, "AAPL", domrepo.TF4h, "line")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls, "distinct keys go to the source")
}

func TestCachedThresholdSourceDoesNotCacheErrors(t *testing.T) {
	next := &countingSource{err: errors.New("backend down")}
	src := NewCachedThresholdSource(next, 0)
	ctx := context.Background()

	_, err := src.MarketThresholds(ctx, "US", domrepo.TF1h, "line")
	require.Error(t, err)
	_, err = src.MarketThresholds(ctx, "US", domrepo.TF1h, "line")
	require.Error(t, err)
	assert.Equal(t, 2, next.calls, "errors are retried, not cached")
}
