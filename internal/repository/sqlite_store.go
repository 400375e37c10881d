package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite" // register sqlite driver

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/pkg/util"
)

var (
	_ domrepo.SeriesSource     = (*SQLiteStore)(nil)
	_ domrepo.UserDirectory    = (*SQLiteStore)(nil)
	_ domrepo.ConfigStore      = (*SQLiteStore)(nil)
	_ domrepo.ResultStore      = (*SQLiteStore)(nil)
	_ domrepo.PerformanceStore = (*SQLiteStore)(nil)
	_ domrepo.AnomalyStore     = (*SQLiteStore)(nil)
	_ domrepo.JobStore         = (*SQLiteStore)(nil)
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id    INTEGER PRIMARY KEY,
	email TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS transactions (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id          INTEGER NOT NULL,
	date             TEXT NOT NULL,
	amount           REAL NOT NULL,
	category         TEXT NOT NULL DEFAULT '',
	transaction_type TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, date);

CREATE TABLE IF NOT EXISTS forecast_configs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id          INTEGER NOT NULL,
	algorithm        TEXT NOT NULL,
	window_size      INTEGER,
	smoothing_factor REAL,
	season_length    INTEGER,
	category         TEXT,
	transaction_type TEXT,
	created_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_configs_user ON forecast_configs(user_id);

CREATE TABLE IF NOT EXISTS forecast_results (
	id              TEXT PRIMARY KEY,
	config_id       INTEGER NOT NULL,
	user_id         INTEGER NOT NULL,
	target_date     TEXT NOT NULL,
	forecast_value  TEXT NOT NULL,
	confidence_low  TEXT,
	confidence_high TEXT,
	mape            REAL,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS forecast_performance (
	id            TEXT PRIMARY KEY,
	config_id     INTEGER NOT NULL,
	user_id       INTEGER NOT NULL,
	mape          REAL NOT NULL,
	horizon_days  INTEGER NOT NULL,
	lookback_days INTEGER NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS forecast_anomalies (
	id            TEXT PRIMARY KEY,
	user_id       INTEGER NOT NULL,
	config_id     INTEGER,
	event_date    TEXT NOT NULL,
	anomaly_value REAL NOT NULL,
	zscore        REAL NOT NULL,
	params_json   TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS forecast_jobs (
	id            TEXT PRIMARY KEY,
	user_id       INTEGER NOT NULL,
	kind          TEXT NOT NULL,
	status        TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);
`

// SQLiteStore keeps users, ledger rows, configs, jobs and forecast output in a
// single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at dbPath and applies the schema.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening store db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }
func fmtDay(t time.Time) string  { return util.DayStart(t).Format(time.DateOnly) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseDay(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}

// UpsertUser inserts or replaces a user.
func (s *SQLiteStore) UpsertUser(ctx context.Context, u models.User) error {
	_, err := s.db.ExecContext(ctx, "INSERT OR REPLACE INTO users (id, email) VALUES (?, ?)", u.ID, u.Email)
	return err
}

// InsertTransactions appends ledger rows in one transaction.
func (s *SQLiteStore) InsertTransactions(ctx context.Context, txs []models.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO transactions (user_id, date, amount, category, transaction_type) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, t := range txs {
		if _, err := stmt.ExecContext(ctx, t.UserID, fmtDay(t.Date), t.Amount, t.Category, t.TransactionType); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) FindUser(ctx context.Context, userID int64) (models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, "SELECT id, email FROM users WHERE id = ?", userID).Scan(&u.ID, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %d: %w", userID, models.ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) DailyTotals(ctx context.Context, userID int64, from, to time.Time, filter models.SeriesFilter) ([]models.DailyTotal, error) {
	q := "SELECT date, SUM(amount) FROM transactions WHERE user_id = ? AND date >= ? AND date <= ?"
	args := []interface{}{userID, fmtDay(from), fmtDay(to)}
	if filter.Category != "" {
		q += " AND category = ?"
		args = append(args, filter.Category)
	}
	if filter.TransactionType != "" {
		q += " AND transaction_type = ?"
		args = append(args, filter.TransactionType)
	}
	q += " GROUP BY date ORDER BY date ASC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]models.DailyTotal, 0, 128)
	for rows.Next() {
		var d string
		var total float64
		if err := rows.Scan(&d, &total); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		date, err := parseDay(d)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", d, err)
		}
		out = append(out, models.DailyTotal{Date: date, Total: total})
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Save(ctx context.Context, cfg models.ForecastConfig) (models.ForecastConfig, error) {
	return s.insertConfig(ctx, cfg, "")
}

// insertConfig inserts cfg, appending conflict to the statement. A zero ID is
// assigned by the table.
func (s *SQLiteStore) insertConfig(ctx context.Context, cfg models.ForecastConfig, conflict string) (models.ForecastConfig, error) {
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now().UTC()
	}
	var id interface{}
	if cfg.ID != 0 {
		id = cfg.ID
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO forecast_configs
		(id, user_id, algorithm, window_size, smoothing_factor, season_length, category, transaction_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`+conflict,
		id, cfg.UserID, string(cfg.Algorithm), cfg.WindowSize, cfg.SmoothingFactor, cfg.SeasonLength,
		cfg.Category, cfg.TransactionType, fmtTime(cfg.CreatedAt),
	)
	if err != nil {
		return models.ForecastConfig{}, fmt.Errorf("save config: %w", err)
	}
	if cfg.ID == 0 {
		newID, err := res.LastInsertId()
		if err != nil {
			return models.ForecastConfig{}, fmt.Errorf("config id: %w", err)
		}
		cfg.ID = newID
	}
	return cfg, nil
}

const configColumns = "id, user_id, algorithm, window_size, smoothing_factor, season_length, category, transaction_type, created_at"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConfig(r rowScanner) (models.ForecastConfig, error) {
	var (
		c         models.ForecastConfig
		algorithm string
		window    sql.NullInt64
		alpha     sql.NullFloat64
		season    sql.NullInt64
		category  sql.NullString
		txType    sql.NullString
		createdAt string
	)
	if err := r.Scan(&c.ID, &c.UserID, &algorithm, &window, &alpha, &season, &category, &txType, &createdAt); err != nil {
		return models.ForecastConfig{}, err
	}
	c.Algorithm = models.Algorithm(algorithm)
	if window.Valid {
		v := int(window.Int64)
		c.WindowSize = &v
	}
	if alpha.Valid {
		v := alpha.Float64
		c.SmoothingFactor = &v
	}
	if season.Valid {
		v := int(season.Int64)
		c.SeasonLength = &v
	}
	if category.Valid {
		v := category.String
		c.Category = &v
	}
	if txType.Valid {
		v := txType.String
		c.TransactionType = &v
	}
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

func (s *SQLiteStore) Find(ctx context.Context, id int64) (models.ForecastConfig, error) {
	c, err := scanConfig(s.db.QueryRowContext(ctx, "SELECT "+configColumns+" FROM forecast_configs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ForecastConfig{}, fmt.Errorf("config %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.ForecastConfig{}, fmt.Errorf("find config: %w", err)
	}
	return c, nil
}

// GetOrCreate returns the stored config with cfg.ID, inserting cfg first when
// that ID is free. Concurrent callers with the same ID all get the one row.
func (s *SQLiteStore) GetOrCreate(ctx context.Context, cfg models.ForecastConfig) (models.ForecastConfig, error) {
	if cfg.ID == 0 {
		return s.Save(ctx, cfg)
	}
	if _, err := s.insertConfig(ctx, cfg, " ON CONFLICT(id) DO NOTHING"); err != nil {
		return models.ForecastConfig{}, err
	}
	return s.Find(ctx, cfg.ID)
}

func (s *SQLiteStore) ListByUser(ctx context.Context, userID int64) ([]models.ForecastConfig, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+configColumns+" FROM forecast_configs WHERE user_id = ? ORDER BY id ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]models.ForecastConfig, 0)
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullDecimal(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func (s *SQLiteStore) SaveAll(ctx context.Context, results []models.ForecastResult) ([]models.ForecastResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	out := make([]models.ForecastResult, len(results))
	for i, r := range results {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO forecast_results
			(id, config_id, user_id, target_date, forecast_value, confidence_low, confidence_high, mape, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.ConfigID, r.UserID, fmtDay(r.TargetDate), r.ForecastValue.String(),
			nullDecimal(r.ConfidenceLow), nullDecimal(r.ConfidenceHigh), r.MAPE, fmtTime(r.CreatedAt),
		)
		if err != nil {
			return nil, fmt.Errorf("save result: %w", err)
		}
		out[i] = r
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// ResultsForConfig returns stored rows for a config ordered by target date.
func (s *SQLiteStore) ResultsForConfig(ctx context.Context, configID int64) ([]models.ForecastResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, config_id, user_id, target_date, forecast_value, mape, created_at
		FROM forecast_results WHERE config_id = ? ORDER BY target_date ASC, created_at ASC`, configID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.ForecastResult
	for rows.Next() {
		var (
			r                        models.ForecastResult
			target, value, createdAt string
			mape                     sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.ConfigID, &r.UserID, &target, &value, &mape, &createdAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if r.TargetDate, err = parseDay(target); err != nil {
			return nil, err
		}
		if r.ForecastValue, err = decimal.NewFromString(value); err != nil {
			return nil, err
		}
		if mape.Valid {
			v := mape.Float64
			r.MAPE = &v
		}
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SavePerformance(ctx context.Context, p models.ForecastPerformance) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO forecast_performance
		(id, config_id, user_id, mape, horizon_days, lookback_days, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ConfigID, p.UserID, p.MAPE, p.HorizonDays, p.LookbackDays, fmtTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("save performance: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveAnomalies(ctx context.Context, anomalies []models.ForecastAnomaly) ([]models.ForecastAnomaly, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	out := make([]models.ForecastAnomaly, len(anomalies))
	for i, a := range anomalies {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO forecast_anomalies
			(id, user_id, config_id, event_date, anomaly_value, zscore, params_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.UserID, a.ConfigID, fmtDay(a.EventDate), a.AnomalyValue, a.ZScore, a.ParamsJSON, fmtTime(a.CreatedAt))
		if err != nil {
			return nil, fmt.Errorf("save anomaly: %w", err)
		}
		out[i] = a
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) CreateJob(ctx context.Context, job models.ForecastJob) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO forecast_jobs
		(id, user_id, kind, status, error_message, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.UserID, string(job.Kind), string(job.Status), job.ErrorMessage, fmtTime(job.CreatedAt), fmtTime(now))
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, id string, status models.JobStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE forecast_jobs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?",
		string(status), errMsg, fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (models.ForecastJob, error) {
	var (
		j                    models.ForecastJob
		kind, status         string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, "SELECT id, user_id, kind, status, error_message, created_at, updated_at FROM forecast_jobs WHERE id = ?", id).
		Scan(&j.ID, &j.UserID, &kind, &status, &j.ErrorMessage, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ForecastJob{}, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.ForecastJob{}, fmt.Errorf("get job: %w", err)
	}
	j.Kind = models.JobKind(kind)
	j.Status = models.JobStatus(status)
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return j, nil
}
