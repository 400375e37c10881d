package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	pkgch "FinCast/pkg/clickhouse"
	applogger "FinCast/pkg/logger"
)

var (
	_ domrepo.ResultStore      = (*CHResultStore)(nil)
	_ domrepo.PerformanceStore = (*CHResultStore)(nil)
	_ domrepo.AnomalyStore     = (*CHResultStore)(nil)
)

// insertChunkSize bounds rows per multi-row INSERT.
const insertChunkSize = 2000

// CHSchema returns the DDL for forecast output tables in database.
func CHSchema(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.forecast_results (
			id UUID,
			config_id Int64,
			user_id Int64,
			target_date Date,
			forecast_value Decimal(18, 4),
			confidence_low Nullable(Decimal(18, 4)),
			confidence_high Nullable(Decimal(18, 4)),
			mape Nullable(Float64),
			created_at DateTime64(3, 'UTC')
		) ENGINE = MergeTree ORDER BY (user_id, config_id, target_date, created_at)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.forecast_performance (
			id UUID,
			config_id Int64,
			user_id Int64,
			mape Float64,
			horizon_days Int32,
			lookback_days Int32,
			created_at DateTime64(3, 'UTC')
		) ENGINE = MergeTree ORDER BY (user_id, config_id, created_at)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.forecast_anomalies (
			id UUID,
			user_id Int64,
			config_id Nullable(Int64),
			event_date Date,
			anomaly_value Float64,
			zscore Float64,
			params_json String,
			created_at DateTime64(3, 'UTC')
		) ENGINE = MergeTree ORDER BY (user_id, event_date, created_at)`, database),
	}
}

// CHResultStore appends forecast output rows to ClickHouse.
type CHResultStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHResultStore(ch *pkgch.Client, database string) *CHResultStore {
	return &CHResultStore{db: ch.DB(), database: database, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHResultStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHResultStore) SaveAll(ctx context.Context, results []models.ForecastResult) ([]models.ForecastResult, error) {
	if len(results) == 0 {
		return []models.ForecastResult{}, nil
	}
	start := time.Now()
	now := time.Now().UTC()
	out := make([]models.ForecastResult, len(results))
	for i, r := range results {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		out[i] = r
	}

	table := s.database + ".forecast_results"
	const cols = "(id, config_id, user_id, target_date, forecast_value, confidence_low, confidence_high, mape, created_at)"
	err := insertChunked(ctx, s.db, table, cols, 9, len(out), func(i int) []interface{} {
		r := out[i]
		return []interface{}{r.ID, r.ConfigID, r.UserID, r.TargetDate, r.ForecastValue, r.ConfidenceLow, r.ConfidenceHigh, r.MAPE, r.CreatedAt}
	})
	if err != nil {
		s.l.Error("clickhouse save_results error",
			applogger.String("table", table),
			applogger.Int("rows", len(out)),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("save results: %w", err)
	}
	s.l.Debug("clickhouse save_results ok",
		applogger.String("table", table),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHResultStore) SavePerformance(ctx context.Context, p models.ForecastPerformance) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	q := fmt.Sprintf("INSERT INTO %s.forecast_performance (id, config_id, user_id, mape, horizon_days, lookback_days, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)", s.database)
	if _, err := s.db.ExecContext(ctx, q, p.ID, p.ConfigID, p.UserID, p.MAPE, int32(p.HorizonDays), int32(p.LookbackDays), p.CreatedAt); err != nil {
		s.l.Error("clickhouse save_performance error",
			applogger.Int64("config_id", p.ConfigID),
			applogger.Error(err),
		)
		return fmt.Errorf("save performance: %w", err)
	}
	return nil
}

func (s *CHResultStore) SaveAnomalies(ctx context.Context, anomalies []models.ForecastAnomaly) ([]models.ForecastAnomaly, error) {
	if len(anomalies) == 0 {
		return []models.ForecastAnomaly{}, nil
	}
	now := time.Now().UTC()
	out := make([]models.ForecastAnomaly, len(anomalies))
	for i, a := range anomalies {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		out[i] = a
	}
	table := s.database + ".forecast_anomalies"
	const cols = "(id, user_id, config_id, event_date, anomaly_value, zscore, params_json, created_at)"
	err := insertChunked(ctx, s.db, table, cols, 8, len(out), func(i int) []interface{} {
		a := out[i]
		return []interface{}{a.ID, a.UserID, a.ConfigID, a.EventDate, a.AnomalyValue, a.ZScore, a.ParamsJSON, a.CreatedAt}
	})
	if err != nil {
		s.l.Error("clickhouse save_anomalies error",
			applogger.String("table", table),
			applogger.Int("rows", len(out)),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("save anomalies: %w", err)
	}
	return out, nil
}

// insertChunked writes n rows as multi-row VALUES statements of at most
// insertChunkSize rows each. row(i) returns the ncols arguments of row i.
func insertChunked(ctx context.Context, db *sql.DB, table, cols string, ncols, n int, row func(i int) []interface{}) error {
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", ncols), ", ") + ")"
	for start := 0; start < n; start += insertChunkSize {
		end := start + insertChunkSize
		if end > n {
			end = n
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*ncols)
		for i := start; i < end; i++ {
			values = append(values, placeholder)
			args = append(args, row(i)...)
		}
		q := fmt.Sprintf("INSERT INTO %s %s VALUES %s", table, cols, strings.Join(values, ","))
		if _, err := db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}
