package models

import "time"

// ForecastAnomaly is a flagged day from an anomaly scan.
type ForecastAnomaly struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"user_id"`
	ConfigID     *int64    `json:"config_id,omitempty"`
	EventDate    time.Time `json:"event_date"`
	AnomalyValue float64   `json:"anomaly_value"`
	ZScore       float64   `json:"zscore"`
	ParamsJSON   string    `json:"params_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// ForecastPerformance records the MAPE of one backtest.
type ForecastPerformance struct {
	ID           string    `json:"id"`
	ConfigID     int64     `json:"config_id"`
	UserID       int64     `json:"user_id"`
	MAPE         float64   `json:"mape"`
	HorizonDays  int       `json:"horizon_days"`
	LookbackDays int       `json:"lookback_days"`
	CreatedAt    time.Time `json:"created_at"`
}

// JobStatus is the lifecycle state of a ForecastJob.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// JobKind names the operation a job runs.
type JobKind string

const (
	JobKindGenerate JobKind = "generate"
	JobKindBatch    JobKind = "batch"
	JobKindBacktest JobKind = "backtest"
)

// ForecastJob tracks an asynchronously queued forecast operation.
type ForecastJob struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"user_id"`
	Kind         JobKind   `json:"kind"`
	Status       JobStatus `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ForecastEvent is published after results are persisted.
type ForecastEvent struct {
	Kind     string           `json:"kind"`
	UserID   int64            `json:"user_id"`
	ConfigID int64            `json:"config_id"`
	Results  []ForecastResult `json:"results"`
	SentAt   time.Time        `json:"sent_at"`
}
