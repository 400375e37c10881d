package forecast

import "math"

const flatStdEpsilon = 1e-9

// Baseline returns the sample mean and standard deviation of values.
// A near-zero deviation is reported as 1 so constant series never divide by zero.
func Baseline(values []float64) (mean, std float64) {
	n := len(values)
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(max(1, n-1))
	std = math.Sqrt(variance)
	if std <= flatStdEpsilon {
		std = 1
	}
	return mean, std
}

// DetectAnomalies returns ascending indices whose distance from the global mean
// exceeds thresholdSigma standard deviations.
func DetectAnomalies(values []float64, thresholdSigma float64) []int {
	out := []int{}
	if len(values) == 0 {
		return out
	}
	mean, std := Baseline(values)
	threshold := math.Max(flatStdEpsilon, thresholdSigma) * std
	for i, v := range values {
		if math.Abs(v-mean) > threshold {
			out = append(out, i)
		}
	}
	return out
}

// ZScores returns (v-mean)/std for every value using the DetectAnomalies baseline.
func ZScores(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	mean, std := Baseline(values)
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}
