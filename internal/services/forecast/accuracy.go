package forecast

import "math"

// MAPE is the mean absolute percentage error, in percent, over the overlap of
// actual and predicted. Near-zero actuals are clamped to 1e-9 in the denominator.
func MAPE(actual, predicted []float64) float64 {
	n := min(len(actual), len(predicted))
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += math.Abs(actual[i]-predicted[i]) / math.Max(1e-9, math.Abs(actual[i]))
	}
	return sum / float64(n) * 100
}
