package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Algorithm selects the projection used for a ForecastConfig.
type Algorithm string

const (
	AlgorithmSMA                   Algorithm = "SMA"
	AlgorithmEWMA                  Algorithm = "EWMA"
	AlgorithmLinearRegression      Algorithm = "LINEAR_REGRESSION"
	AlgorithmSeasonalDecomposition Algorithm = "SEASONAL_DECOMPOSITION"
)

// Parameter defaults applied when a config leaves them unset.
const (
	DefaultWindowSize      = 7
	DefaultSmoothingFactor = 0.3
	DefaultSeasonLength    = 7
)

// UnassignedConfigID keys batch entries whose config never received an identity.
const UnassignedConfigID int64 = -1

// ParseAlgorithm normalizes a selector string.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToUpper(strings.TrimSpace(s)))
	switch a {
	case AlgorithmSMA, AlgorithmEWMA, AlgorithmLinearRegression, AlgorithmSeasonalDecomposition:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown algorithm %q", ErrInvalidParameter, s)
}

// ForecastConfig describes which algorithm to run and with which parameters.
// Only the parameters relevant to Algorithm are read.
type ForecastConfig struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Algorithm       Algorithm `json:"algorithm" validate:"required,oneof=SMA EWMA LINEAR_REGRESSION SEASONAL_DECOMPOSITION"`
	WindowSize      *int      `json:"window_size,omitempty" validate:"omitempty,gte=1"`
	SmoothingFactor *float64  `json:"smoothing_factor,omitempty" validate:"omitempty,gt=0,lt=1"`
	SeasonLength    *int      `json:"season_length,omitempty" validate:"omitempty,gt=1"`
	Category        *string   `json:"category,omitempty"`
	TransactionType *string   `json:"transaction_type,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Window returns the SMA window or its default.
func (c ForecastConfig) Window() int {
	if c.WindowSize != nil {
		return *c.WindowSize
	}
	return DefaultWindowSize
}

// Alpha returns the EWMA smoothing factor or its default.
func (c ForecastConfig) Alpha() float64 {
	if c.SmoothingFactor != nil {
		return *c.SmoothingFactor
	}
	return DefaultSmoothingFactor
}

// Season returns the seasonal cycle length or its default.
func (c ForecastConfig) Season() int {
	if c.SeasonLength != nil {
		return *c.SeasonLength
	}
	return DefaultSeasonLength
}

// Filter returns the series filter derived from the config.
func (c ForecastConfig) Filter() SeriesFilter {
	var f SeriesFilter
	if c.Category != nil {
		f.Category = *c.Category
	}
	if c.TransactionType != nil {
		f.TransactionType = *c.TransactionType
	}
	return f
}

// KeyID returns the identity used for batch keys.
func (c ForecastConfig) KeyID() int64 {
	if c.ID == 0 {
		return UnassignedConfigID
	}
	return c.ID
}

// ForecastResult is one forecast row for a target date. Rows are append-only.
type ForecastResult struct {
	ID             string           `json:"id"`
	ConfigID       int64            `json:"config_id"`
	UserID         int64            `json:"user_id"`
	TargetDate     time.Time        `json:"target_date"`
	ForecastValue  decimal.Decimal  `json:"forecast_value"`
	ConfidenceLow  *decimal.Decimal `json:"confidence_low,omitempty"`
	ConfidenceHigh *decimal.Decimal `json:"confidence_high,omitempty"`
	MAPE           *float64         `json:"mape,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// BatchResult maps config identity to its results and remembers submission order.
type BatchResult struct {
	Keys    []int64                    `json:"keys"`
	Entries map[int64][]ForecastResult `json:"entries"`
}

// NewBatchResult allocates an empty result for n configs.
func NewBatchResult(n int) *BatchResult {
	return &BatchResult{
		Keys:    make([]int64, 0, n),
		Entries: make(map[int64][]ForecastResult, n),
	}
}

// Put stores results under key. A repeated key keeps its first position.
func (b *BatchResult) Put(key int64, results []ForecastResult) {
	if _, ok := b.Entries[key]; !ok {
		b.Keys = append(b.Keys, key)
	}
	b.Entries[key] = results
}

// Get returns the results stored under key.
func (b *BatchResult) Get(key int64) ([]ForecastResult, bool) {
	r, ok := b.Entries[key]
	return r, ok
}

// Len reports the number of distinct keys.
func (b *BatchResult) Len() int { return len(b.Keys) }

// AccuracyMetrics summarizes a backtest.
type AccuracyMetrics struct {
	ConfigID     int64    `json:"config_id"`
	MAPE         *float64 `json:"mape"`
	HorizonDays  int      `json:"horizon_days"`
	LookbackDays int      `json:"lookback_days"`
}
