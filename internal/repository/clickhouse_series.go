package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	pkgch "FinCast/pkg/clickhouse"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/util"
)

var _ domrepo.SeriesSource = (*CHSeriesSource)(nil)

// CHSeriesSource aggregates ledger rows stored in ClickHouse into daily totals.
type CHSeriesSource struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHSeriesSource(ch *pkgch.Client, table string) *CHSeriesSource {
	return &CHSeriesSource{db: ch.DB(), table: table, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHSeriesSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSeriesSource) DailyTotals(ctx context.Context, userID int64, from, to time.Time, filter models.SeriesFilter) ([]models.DailyTotal, error) {
	start := time.Now()
	q, args := dailyTotalsQuery(s.table, "toDate(date)", "toFloat64(sum(amount))", userID, from, to, filter)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse daily_totals query error",
			applogger.String("table", s.table),
			applogger.Int64("user_id", userID),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	defer rows.Close()

	out, err := scanDailyTotals(rows)
	if err != nil {
		s.l.Error("clickhouse daily_totals scan error",
			applogger.String("table", s.table),
			applogger.Int64("user_id", userID),
			applogger.Error(err),
		)
		return nil, err
	}
	s.l.Debug("clickhouse daily_totals ok",
		applogger.String("table", s.table),
		applogger.Int64("user_id", userID),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// dailyTotalsQuery builds the grouped daily query shared by the SQL sources.
// dayExpr and sumExpr are dialect specific.
func dailyTotalsQuery(table, dayExpr, sumExpr string, userID int64, from, to time.Time, filter models.SeriesFilter) (string, []interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s AS d, %s AS total FROM %s WHERE user_id = ? AND %s >= ? AND %s <= ?",
		dayExpr, sumExpr, table, dayExpr, dayExpr)
	args := []interface{}{userID, util.DayStart(from), util.DayStart(to)}
	if filter.Category != "" {
		b.WriteString(" AND category = ?")
		args = append(args, filter.Category)
	}
	if filter.TransactionType != "" {
		b.WriteString(" AND transaction_type = ?")
		args = append(args, filter.TransactionType)
	}
	b.WriteString(" GROUP BY d ORDER BY d ASC")
	return b.String(), args
}

func scanDailyTotals(rows *sql.Rows) ([]models.DailyTotal, error) {
	out := make([]models.DailyTotal, 0, 256)
	for rows.Next() {
		var p models.DailyTotal
		if err := rows.Scan(&p.Date, &p.Total); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		p.Date = util.DayStart(p.Date)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
