package forecast

import (
	"fmt"

	"FinCast/internal/domain/models"
)

const minDenominator = 1e-9

// LinearRegressionForecast fits ordinary least squares over x=1..n and
// extrapolates horizon points at x=n+1..n+horizon.
func LinearRegressionForecast(values []float64, horizon int) ([]float64, error) {
	if horizon < 0 {
		return nil, fmt.Errorf("%w: horizon must be >= 0, got %d", models.ErrInvalidParameter, horizon)
	}
	n := len(values)
	if n == 0 {
		return []float64{}, nil
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range values {
		x := float64(i + 1)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	fn := float64(n)
	denom := fn*sumX2 - sumX*sumX
	if denom == 0 {
		denom = minDenominator
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn

	out := make([]float64, horizon)
	for i := range out {
		out[i] = intercept + slope*float64(n+1+i)
	}
	return out, nil
}
