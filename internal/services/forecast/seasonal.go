package forecast

import (
	"fmt"

	"FinCast/internal/domain/models"
)

// fallbackWindowCap bounds the moving-average window used when a series is too
// short for seasonal decomposition.
const fallbackWindowCap = 7

// SeasonalDecomposition adds a per-phase seasonal mean to a linear trend.
// Phase means are taken over the raw series without de-trending first.
// Series shorter than two full seasons, or seasonLength <= 1, fall back to a
// flat moving-average projection. It always returns exactly horizon values.
func SeasonalDecomposition(values []float64, seasonLength, horizon int) ([]float64, error) {
	if horizon < 0 {
		return nil, fmt.Errorf("%w: horizon must be >= 0, got %d", models.ErrInvalidParameter, horizon)
	}
	n := len(values)
	if seasonLength <= 1 || n < 2*seasonLength {
		return movingAverageFallback(values, horizon), nil
	}

	seasonal := make([]float64, seasonLength)
	counts := make([]int, seasonLength)
	for i, v := range values {
		seasonal[i%seasonLength] += v
		counts[i%seasonLength]++
	}
	for p := range seasonal {
		if counts[p] > 0 {
			seasonal[p] /= float64(counts[p])
		}
	}

	trend, err := LinearRegressionForecast(values, horizon)
	if err != nil {
		return nil, err
	}
	out := make([]float64, horizon)
	for i := range out {
		out[i] = trend[i] + seasonal[(n+i)%seasonLength]
	}
	return out, nil
}

func movingAverageFallback(values []float64, horizon int) []float64 {
	switch len(values) {
	case 0:
		return make([]float64, max(horizon, 0))
	case 1:
		return ProjectFromHistory(values, horizon)
	}
	window := min(fallbackWindowCap, max(2, len(values)))
	smoothed, err := SimpleMovingAverage(values, window)
	if err != nil {
		// unreachable: 2 <= window <= len(values)
		return ProjectFromHistory(values, horizon)
	}
	return ProjectFromHistory(smoothed, horizon)
}
