// Package forecast holds the pure time-series algorithms behind the forecast use cases.
// Every function is deterministic and safe for concurrent use.
package forecast

import (
	"fmt"

	"FinCast/internal/domain/models"
)

// SimpleMovingAverage returns the trailing mean of each full window.
// Output length is len(values)-window+1.
func SimpleMovingAverage(values []float64, window int) ([]float64, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: window must be >= 1, got %d", models.ErrInvalidParameter, window)
	}
	if len(values) < window {
		return nil, fmt.Errorf("%w: %d values shorter than window %d", models.ErrInvalidParameter, len(values), window)
	}
	out := make([]float64, 0, len(values)-window+1)
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out, nil
}

// ExponentialWeightedMovingAverage smooths values recursively with factor alpha in (0,1).
func ExponentialWeightedMovingAverage(values []float64, alpha float64) ([]float64, error) {
	if alpha <= 0 || alpha >= 1 {
		return nil, fmt.Errorf("%w: alpha must be in (0,1), got %g", models.ErrInvalidParameter, alpha)
	}
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out, nil
	}
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out, nil
}

// ProjectFromHistory holds the last smoothed value flat across the horizon.
func ProjectFromHistory(smoothed []float64, horizon int) []float64 {
	if len(smoothed) == 0 || horizon <= 0 {
		return []float64{}
	}
	last := smoothed[len(smoothed)-1]
	out := make([]float64, horizon)
	for i := range out {
		out[i] = last
	}
	return out
}
