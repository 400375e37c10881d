package models

// Requests for forecast HTTP endpoints. Zero-valued numeric parameters mean "use the algorithm default".

type ConfigRequest struct {
	ConfigID        int64   `query:"configId" json:"config_id" validate:"gte=0"`
	Algorithm       string  `query:"algorithm" json:"algorithm" default:"LINEAR_REGRESSION" validate:"oneof=SMA EWMA LINEAR_REGRESSION SEASONAL_DECOMPOSITION"`
	WindowSize      int     `query:"windowSize" json:"window_size" validate:"gte=0,lte=365"`
	SmoothingFactor float64 `query:"smoothingFactor" json:"smoothing_factor" validate:"gte=0,lt=1"`
	SeasonLength    int     `query:"seasonLength" json:"season_length" validate:"gte=0,lte=365"`
	Category        string  `query:"category" json:"category"`
	TransactionType string  `query:"transactionType" json:"transaction_type"`
}

// ToConfig converts the request into a ForecastConfig owned by userID.
func (r ConfigRequest) ToConfig(userID int64) ForecastConfig {
	cfg := ForecastConfig{
		ID:        r.ConfigID,
		UserID:    userID,
		Algorithm: Algorithm(r.Algorithm),
	}
	if r.WindowSize > 0 {
		w := r.WindowSize
		cfg.WindowSize = &w
	}
	if r.SmoothingFactor > 0 {
		a := r.SmoothingFactor
		cfg.SmoothingFactor = &a
	}
	if r.SeasonLength > 0 {
		s := r.SeasonLength
		cfg.SeasonLength = &s
	}
	if r.Category != "" {
		c := r.Category
		cfg.Category = &c
	}
	if r.TransactionType != "" {
		t := r.TransactionType
		cfg.TransactionType = &t
	}
	return cfg
}

type GenerateRequest struct {
	UserID int64 `param:"userId" validate:"gte=1"`
	ConfigRequest
	StartDate   string `query:"startDate" json:"start_date"`
	HorizonDays int    `query:"horizonDays" json:"horizon_days" default:"7" validate:"gte=1,lte=365"`
}

type BatchRequest struct {
	UserID      int64           `param:"userId" validate:"gte=1"`
	Configs     []ConfigRequest `json:"configs" validate:"required,min=1,max=50,dive"`
	StartDate   string          `json:"start_date"`
	HorizonDays int             `json:"horizon_days" default:"7" validate:"gte=1,lte=365"`
}

type AccuracyRequest struct {
	UserID          int64   `param:"userId" validate:"gte=1"`
	ConfigID        int64   `query:"configId" json:"config_id" validate:"gte=0"`
	Algorithm       string  `query:"algorithm" json:"algorithm" default:"SMA" validate:"oneof=SMA EWMA LINEAR_REGRESSION SEASONAL_DECOMPOSITION"`
	WindowSize      int     `query:"windowSize" json:"window_size" default:"7" validate:"gte=1,lte=365"`
	SmoothingFactor float64 `query:"smoothingFactor" json:"smoothing_factor" validate:"gte=0,lt=1"`
	SeasonLength    int     `query:"seasonLength" json:"season_length" validate:"gte=0,lte=365"`
	StartDate       string  `query:"startDate" json:"start_date"`
	HorizonDays     int     `query:"horizonDays" json:"horizon_days" default:"7" validate:"gte=1,lte=365"`
	LookbackDays    int     `query:"lookbackDays" json:"lookback_days" default:"60" validate:"gte=1,lte=3650"`
}

// Config returns the config described by the accuracy request.
func (r AccuracyRequest) Config() ForecastConfig {
	return ConfigRequest{
		ConfigID:        r.ConfigID,
		Algorithm:       r.Algorithm,
		WindowSize:      r.WindowSize,
		SmoothingFactor: r.SmoothingFactor,
		SeasonLength:    r.SeasonLength,
	}.ToConfig(r.UserID)
}

type AnomalyRequest struct {
	UserID       int64   `param:"userId" validate:"gte=1"`
	LookbackDays int     `query:"lookbackDays" json:"lookback_days" default:"180" validate:"gte=2,lte=3650"`
	Threshold    float64 `query:"threshold" json:"threshold" default:"3" validate:"gt=0,lte=10"`
}

type JobRequest struct {
	UserID       int64           `param:"userId" validate:"gte=1"`
	Kind         string          `json:"kind" default:"batch" validate:"oneof=generate batch backtest"`
	Configs      []ConfigRequest `json:"configs" validate:"required,min=1,max=50,dive"`
	StartDate    string          `json:"start_date"`
	HorizonDays  int             `json:"horizon_days" default:"7" validate:"gte=1,lte=365"`
	LookbackDays int             `json:"lookback_days" default:"60" validate:"gte=1,lte=3650"`
}

type JobStatusRequest struct {
	JobID string `param:"jobId" validate:"required,uuid"`
}
