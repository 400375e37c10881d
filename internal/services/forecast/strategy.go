package forecast

import (
	"fmt"
	"sort"

	"FinCast/internal/domain/models"
)

// Projection turns a history into a horizon-length forecast for one config.
type Projection func(values []float64, cfg models.ForecastConfig, horizon int) ([]float64, error)

var strategies = map[models.Algorithm]Projection{
	models.AlgorithmSMA: func(values []float64, cfg models.ForecastConfig, horizon int) ([]float64, error) {
		smoothed, err := SimpleMovingAverage(values, cfg.Window())
		if err != nil {
			return nil, err
		}
		return ProjectFromHistory(smoothed, horizon), nil
	},
	models.AlgorithmEWMA: func(values []float64, cfg models.ForecastConfig, horizon int) ([]float64, error) {
		smoothed, err := ExponentialWeightedMovingAverage(values, cfg.Alpha())
		if err != nil {
			return nil, err
		}
		return ProjectFromHistory(smoothed, horizon), nil
	},
	models.AlgorithmLinearRegression: func(values []float64, _ models.ForecastConfig, horizon int) ([]float64, error) {
		return LinearRegressionForecast(values, horizon)
	},
	models.AlgorithmSeasonalDecomposition: func(values []float64, cfg models.ForecastConfig, horizon int) ([]float64, error) {
		return SeasonalDecomposition(values, cfg.Season(), horizon)
	},
}

// Lookup returns the projection registered for an algorithm.
func Lookup(a models.Algorithm) (Projection, error) {
	p, ok := strategies[a]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", models.ErrInvalidParameter, a)
	}
	return p, nil
}

// Project dispatches to the algorithm named by cfg.
func Project(values []float64, cfg models.ForecastConfig, horizon int) ([]float64, error) {
	p, err := Lookup(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	return p(values, cfg, horizon)
}

// Algorithms lists the registered selectors in sorted order.
func Algorithms() []models.Algorithm {
	out := make([]models.Algorithm, 0, len(strategies))
	for a := range strategies {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
