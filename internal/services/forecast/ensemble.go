package forecast

// EnsembleForecast averages member forecasts index by index. The first member
// sets the length; at each index only members long enough to have a value
// there contribute.
func EnsembleForecast(members [][]float64) []float64 {
	if len(members) == 0 {
		return []float64{}
	}
	out := make([]float64, len(members[0]))
	for i := range out {
		sum, count := 0.0, 0
		for _, m := range members {
			if i < len(m) {
				sum += m[i]
				count++
			}
		}
		out[i] = sum / float64(count)
	}
	return out
}
