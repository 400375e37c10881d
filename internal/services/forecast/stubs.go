package forecast

// ArimaForecast is a placeholder for an ARIMA(p,d,q) model. The orders are
// accepted but ignored and the call delegates to LinearRegressionForecast.
func ArimaForecast(values []float64, p, d, q, horizon int) ([]float64, error) {
	_, _, _ = p, d, q
	return LinearRegressionForecast(values, horizon)
}

// ProphetLikeDecomposition is a placeholder for a Prophet-style additive model.
// It delegates to SeasonalDecomposition.
func ProphetLikeDecomposition(values []float64, seasonLength, horizon int) ([]float64, error) {
	return SeasonalDecomposition(values, seasonLength, horizon)
}
