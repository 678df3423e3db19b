package repository

import (
	"context"
	"database/sql"
	"fmt"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	pkgch "FinSignal/pkg/clickhouse"
	applogger "FinSignal/pkg/logger"
)

const thresholdsTable = "finsignal.zone_thresholds"

var thresholdSchemaStatements = []string{
	`CREATE DATABASE IF NOT EXISTS finsignal`,
	`CREATE TABLE IF NOT EXISTS ` + thresholdsTable + ` (
        instrument_id String,
        market        String,
        tf            String,
        indicator     String,
        zone          String,
        op            String,
        min_val       Float64,
        max_val       Float64
    ) ENGINE = ReplacingMergeTree()
    ORDER BY (instrument_id, market, tf, indicator, zone)`,
}

// CHThresholdSource serves zone thresholds from ClickHouse so operators can
// retune zones without redeploying. Every fetched group is validated before
// it reaches the matcher; an ambiguous set is an error, not a guess.
type CHThresholdSource struct {
	ch    *pkgch.Client
	db    *sql.DB
	order models.ZoneOrder
	l     *applogger.Logger
}

func NewCHThresholdSource(ch *pkgch.Client, order models.ZoneOrder) *CHThresholdSource {
	return &CHThresholdSource{ch: ch, db: ch.DB(), order: order}
}

// SetLogger injects a structured logger.
func (s *CHThresholdSource) SetLogger(l *applogger.Logger) { s.l = l }

// Init creates the thresholds table when absent.
func (s *CHThresholdSource) Init(ctx context.Context) error {
	if err := s.ch.InitSchema(ctx, thresholdSchemaStatements); err != nil {
		return fmt.Errorf("threshold source init: %w", err)
	}
	return nil
}

func (s *CHThresholdSource) InstrumentThresholds(ctx context.Context, instrumentID string, tf domrepo.Timeframe, indicator string) ([]models.ZoneThreshold, error) {
	const q = `
        SELECT instrument_id, market, tf, indicator, zone, op, min_val, max_val
        FROM ` + thresholdsTable + ` FINAL
        WHERE instrument_id = ? AND indicator = ? AND (tf = ? OR tf = '')
    `
	return s.query(ctx, q, fmt.Sprintf("instrument %s", instrumentID), instrumentID, indicator, string(tf))
}

func (s *CHThresholdSource) MarketThresholds(ctx context.Context, market string, tf domrepo.Timeframe, indicator string) ([]models.ZoneThreshold, error) {
	const q = `
        SELECT instrument_id, market, tf, indicator, zone, op, min_val, max_val
        FROM ` + thresholdsTable + ` FINAL
        WHERE market = ? AND instrument_id = '' AND indicator = ? AND (tf = ? OR tf = '')
    `
	return s.query(ctx, q, fmt.Sprintf("market %s", market), market, indicator, string(tf))
}

func (s *CHThresholdSource) query(ctx context.Context, q, owner string, args ...interface{}) ([]models.ZoneThreshold, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse thresholds query error",
				applogger.String("owner", owner),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("thresholds query: %w", err)
	}
	defer rows.Close()

	var out []models.ZoneThreshold
	for rows.Next() {
		var (
			t        models.ZoneThreshold
			zone, op string
		)
		if err := rows.Scan(&t.InstrumentID, &t.Market, &t.Timeframe, &t.Indicator, &zone, &op, &t.Min, &t.Max); err != nil {
			return nil, fmt.Errorf("scan threshold: %w", err)
		}
		t.Zone = models.Zone(zone)
		t.Op = models.CompareOp(op)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	if len(out) > 0 {
		if err := models.ValidateZoneSet(out, s.order); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse thresholds invalid",
					applogger.String("owner", owner),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("thresholds for %s: %w", owner, err)
		}
	}
	return out, nil
}

var _ domrepo.ThresholdSource = (*CHThresholdSource)(nil)
