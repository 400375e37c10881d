package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	applogger "FinCast/pkg/logger"
)

var (
	_ domrepo.SeriesSource  = (*MySQLSeriesSource)(nil)
	_ domrepo.UserDirectory = (*MySQLSeriesSource)(nil)
)

// MySQLSeriesSource reads ledger rows and users from the transactional database.
type MySQLSeriesSource struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// OpenMySQL opens a pool for dsn. parseTime must be enabled so DATE columns scan into time.Time.
func OpenMySQL(dsn string, maxOpen int) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql open: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen / 2)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql ping: %w", err)
	}
	return db, nil
}

func NewMySQLSeriesSource(db *sql.DB, table string) *MySQLSeriesSource {
	return &MySQLSeriesSource{db: db, table: table, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *MySQLSeriesSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *MySQLSeriesSource) DailyTotals(ctx context.Context, userID int64, from, to time.Time, filter models.SeriesFilter) ([]models.DailyTotal, error) {
	q, args := dailyTotalsQuery(s.table, "DATE(date)", "CAST(SUM(amount) AS DOUBLE)", userID, from, to, filter)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("mysql daily_totals query error",
			applogger.String("table", s.table),
			applogger.Int64("user_id", userID),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	defer rows.Close()
	return scanDailyTotals(rows)
}

func (s *MySQLSeriesSource) FindUser(ctx context.Context, userID int64) (models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, "SELECT id, email FROM users WHERE id = ?", userID).Scan(&u.ID, &u.Email)
	if err == sql.ErrNoRows {
		return models.User{}, fmt.Errorf("user %d: %w", userID, models.ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// Close closes the pool.
func (s *MySQLSeriesSource) Close() error { return s.db.Close() }
