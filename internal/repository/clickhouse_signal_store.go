package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	pkgch "FinSignal/pkg/clickhouse"
	applogger "FinSignal/pkg/logger"
)

const (
	signalsTable    = "finsignal.signals"
	aggregatesTable = "finsignal.signal_aggregates"
)

// schemaStatements are idempotent and run on startup.
var schemaStatements = []string{
	`CREATE DATABASE IF NOT EXISTS finsignal`,
	`CREATE TABLE IF NOT EXISTS ` + signalsTable + ` (
        id            String,
        ts            DateTime64(3),
        instrument_id String,
        tf            String,
        direction     String,
        signal_type   String,
        strength      Float64,
        confidence    Float64,
        rationale     String,
        components    String
    ) ENGINE = MergeTree()
    PARTITION BY toYYYYMM(ts)
    ORDER BY (instrument_id, ts)`,
	`CREATE TABLE IF NOT EXISTS ` + aggregatesTable + ` (
        ts              DateTime64(3),
        instrument_id   String,
        direction       String,
        confidence      Float64,
        agreement_ratio Float64,
        per_timeframe   String
    ) ENGINE = MergeTree()
    PARTITION BY toYYYYMM(ts)
    ORDER BY (instrument_id, ts)`,
}

// CHSignalStore implements SignalStorage backed by ClickHouse.
type CHSignalStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

func NewCHSignalStore(ch *pkgch.Client) *CHSignalStore {
	return &CHSignalStore{ch: ch, db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHSignalStore) SetLogger(l *applogger.Logger) { s.l = l }

// Init creates the database and tables when absent.
func (s *CHSignalStore) Init(ctx context.Context) error {
	if err := s.ch.InitSchema(ctx, schemaStatements); err != nil {
		return fmt.Errorf("signal store init: %w", err)
	}
	return nil
}

func (s *CHSignalStore) Record(ctx context.Context, sig *models.Signal) error {
	start := time.Now()
	components, err := json.Marshal(sig.Components)
	if err != nil {
		return fmt.Errorf("marshal components: %w", err)
	}

	const q = `
        INSERT INTO ` + signalsTable + `
        (id, ts, instrument_id, tf, direction, signal_type, strength, confidence, rationale, components)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	if _, err := s.db.ExecContext(ctx, q,
		sig.ID, sig.Timestamp, sig.InstrumentID, sig.Timeframe,
		string(sig.Direction), string(sig.SignalType),
		sig.Strength, sig.Confidence, sig.Rationale, string(components),
	); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse record signal error",
				applogger.String("instrument", sig.InstrumentID),
				applogger.String("tf", sig.Timeframe),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("record signal: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse record signal ok",
			applogger.String("instrument", sig.InstrumentID),
			applogger.String("tf", sig.Timeframe),
			applogger.String("signal_type", string(sig.SignalType)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHSignalStore) RecordAggregate(ctx context.Context, a *models.AggregatedSignal) error {
	start := time.Now()
	perTF, err := json.Marshal(a.PerTimeframe)
	if err != nil {
		return fmt.Errorf("marshal per-timeframe: %w", err)
	}

	const q = `
        INSERT INTO ` + aggregatesTable + `
        (ts, instrument_id, direction, confidence, agreement_ratio, per_timeframe)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	if _, err := s.db.ExecContext(ctx, q,
		a.Timestamp, a.InstrumentID, string(a.OverallDirection),
		a.OverallConfidence, a.AgreementRatio, string(perTF),
	); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse record aggregate error",
				applogger.String("instrument", a.InstrumentID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("record aggregate: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse record aggregate ok",
			applogger.String("instrument", a.InstrumentID),
			applogger.String("direction", string(a.OverallDirection)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHSignalStore) Recent(ctx context.Context, instrumentID string, from, to time.Time, limit int) ([]*models.Signal, error) {
	start := time.Now()
	const q = `
        SELECT id, ts, instrument_id, tf, direction, signal_type, strength, confidence, rationale, components
        FROM ` + signalsTable + `
        WHERE instrument_id = ? AND ts >= ? AND ts <= ?
        ORDER BY ts DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, instrumentID, from, to, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse recent signals query error",
				applogger.String("instrument", instrumentID),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("recent signals: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Signal, 0, limit)
	for rows.Next() {
		var (
			sig        models.Signal
			direction  string
			signalType string
			components string
		)
		if err := rows.Scan(&sig.ID, &sig.Timestamp, &sig.InstrumentID, &sig.Timeframe,
			&direction, &signalType, &sig.Strength, &sig.Confidence,
			&sig.Rationale, &components); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse recent signals scan error",
					applogger.String("instrument", instrumentID),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Direction = models.Direction(direction)
		sig.SignalType = models.SignalType(signalType)
		if components != "" {
			// Component breakdown is informational; a decode failure does
			// not invalidate the row.
			_ = json.Unmarshal([]byte(components), &sig.Components)
		}
		out = append(out, &sig)
	}
	if err := rows.Err(); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse recent signals rows error",
				applogger.String("instrument", instrumentID),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse recent signals ok",
			applogger.String("instrument", instrumentID),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHSignalStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *CHSignalStore) Close() error {
	return s.ch.Close()
}

var _ domrepo.SignalStorage = (*CHSignalStore)(nil)
