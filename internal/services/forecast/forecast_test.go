package forecast

import (
	"errors"
	"math"
	"testing"

	"FinCast/internal/domain/models"
)

func almostEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func TestSimpleMovingAverage(t *testing.T) {
	got, err := SimpleMovingAverage([]float64{1, 2, 3, 4, 5}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []float64{2, 3, 4}; !almostEqual(got, want) {
		t.Fatalf("SMA = %v, want %v", got, want)
	}
}

func TestSimpleMovingAverageLengthAndFirstValue(t *testing.T) {
	values := []float64{4, 8, 15, 16, 23, 42, 7, 1}
	for w := 1; w <= len(values); w++ {
		got, err := SimpleMovingAverage(values, w)
		if err != nil {
			t.Fatalf("window %d: unexpected error: %v", w, err)
		}
		if len(got) != len(values)-w+1 {
			t.Errorf("window %d: len = %d, want %d", w, len(got), len(values)-w+1)
		}
		sum := 0.0
		for _, v := range values[:w] {
			sum += v
		}
		if math.Abs(got[0]-sum/float64(w)) > 1e-9 {
			t.Errorf("window %d: first = %v, want %v", w, got[0], sum/float64(w))
		}
	}
}

func TestSimpleMovingAverageRejectsBadWindow(t *testing.T) {
	cases := []struct {
		name   string
		values []float64
		window int
	}{
		{"zero window", []float64{1, 2}, 0},
		{"negative window", []float64{1, 2}, -3},
		{"window longer than series", []float64{1, 2}, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := SimpleMovingAverage(tc.values, tc.window); !errors.Is(err, models.ErrInvalidParameter) {
				t.Fatalf("err = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestExponentialWeightedMovingAverage(t *testing.T) {
	got, err := ExponentialWeightedMovingAverage([]float64{10, 20, 30, 40}, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []float64{10, 15, 22.5, 31.25}; !almostEqual(got, want) {
		t.Fatalf("EWMA = %v, want %v", got, want)
	}
}

func TestExponentialWeightedMovingAverageAlphaBounds(t *testing.T) {
	for _, alpha := range []float64{0, 1, -0.1, 1.5} {
		if _, err := ExponentialWeightedMovingAverage([]float64{1, 2}, alpha); !errors.Is(err, models.ErrInvalidParameter) {
			t.Errorf("alpha %v: err = %v, want ErrInvalidParameter", alpha, err)
		}
	}
	got, err := ExponentialWeightedMovingAverage([]float64{3, 1, 4, 1, 5}, 0.2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 || got[0] != 3 {
		t.Fatalf("EWMA = %v, want len 5 starting at 3", got)
	}
}

func TestLinearRegressionForecast(t *testing.T) {
	got, err := LinearRegressionForecast([]float64{1, 2, 3, 4, 5}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []float64{6, 7, 8}; !almostEqual(got, want) {
		t.Fatalf("forecast = %v, want %v", got, want)
	}
	if !(got[0] < got[1] && got[1] < got[2]) {
		t.Fatalf("forecast not strictly increasing: %v", got)
	}
}

func TestLinearRegressionIncreasingArithmeticSeries(t *testing.T) {
	got, err := LinearRegressionForecast([]float64{3, 5, 7, 9, 11, 13}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("forecast[%d]=%v <= forecast[%d]=%v", i, got[i], i-1, got[i-1])
		}
	}
}

func TestLinearRegressionSinglePointIsFlat(t *testing.T) {
	got, err := LinearRegressionForecast([]float64{42}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []float64{42, 42, 42}; !almostEqual(got, want) {
		t.Fatalf("forecast = %v, want %v", got, want)
	}
}

func TestSeasonalDecomposition(t *testing.T) {
	got, err := SeasonalDecomposition([]float64{10, 20, 10, 20}, 2, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// trend 20,22 plus phase means 10,20
	if want := []float64{30, 42}; !almostEqual(got, want) {
		t.Fatalf("seasonal = %v, want %v", got, want)
	}
}

func TestSeasonalDecompositionShortSeriesFallsBack(t *testing.T) {
	cases := []struct {
		name   string
		values []float64
		season int
		want   []float64
	}{
		{"empty", nil, 7, []float64{0, 0, 0, 0, 0}},
		{"single point", []float64{9}, 7, []float64{9, 9, 9, 9, 9}},
		{"three points", []float64{1, 2, 3}, 7, []float64{2, 2, 2, 2, 2}},
		{"season of one", []float64{1, 2, 3, 4, 5, 6, 7, 8}, 1, []float64{5, 5, 5, 5, 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SeasonalDecomposition(tc.values, tc.season, 5)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !almostEqual(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEnsembleForecast(t *testing.T) {
	seq := []float64{1.5, 2.5, 3.5}
	if got := EnsembleForecast([][]float64{seq, seq, seq}); !almostEqual(got, seq) {
		t.Fatalf("identical members = %v, want %v", got, seq)
	}
	if got := EnsembleForecast([][]float64{{1, 2, 3}, {3}}); !almostEqual(got, []float64{2, 2, 3}) {
		t.Fatalf("ragged members = %v, want [2 2 3]", got)
	}
	if got := EnsembleForecast([][]float64{{3}, {1, 2, 3}}); !almostEqual(got, []float64{2}) {
		t.Fatalf("short first member = %v, want [2]", got)
	}
	if got := EnsembleForecast(nil); len(got) != 0 {
		t.Fatalf("empty ensemble = %v, want []", got)
	}
}

func TestDetectAnomalies(t *testing.T) {
	if got := DetectAnomalies([]float64{5, 5, 5, 5}, 2); len(got) != 0 {
		t.Fatalf("constant series anomalies = %v, want none", got)
	}
	if got := DetectAnomalies(nil, 2); len(got) != 0 {
		t.Fatalf("empty series anomalies = %v, want none", got)
	}
	got := DetectAnomalies([]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 50}, 2)
	if len(got) != 1 || got[0] != 9 {
		t.Fatalf("anomalies = %v, want [9]", got)
	}
}

func TestZScoresConstantSeries(t *testing.T) {
	for i, z := range ZScores([]float64{7, 7, 7}) {
		if z != 0 {
			t.Fatalf("z[%d] = %v, want 0", i, z)
		}
	}
}

func TestStubsDelegate(t *testing.T) {
	values := []float64{2, 4, 6, 8, 10, 12, 14, 16}
	arima, _ := ArimaForecast(values, 1, 1, 1, 4)
	lr, _ := LinearRegressionForecast(values, 4)
	if !almostEqual(arima, lr) {
		t.Errorf("arima = %v, want %v", arima, lr)
	}
	prophet, _ := ProphetLikeDecomposition(values, 4, 4)
	seasonal, _ := SeasonalDecomposition(values, 4, 4)
	if !almostEqual(prophet, seasonal) {
		t.Errorf("prophet = %v, want %v", prophet, seasonal)
	}
}

func TestProjectDispatch(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	w := 2
	got, err := Project(values, models.ForecastConfig{Algorithm: models.AlgorithmSMA, WindowSize: &w}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []float64{7.5, 7.5, 7.5}; !almostEqual(got, want) {
		t.Fatalf("SMA projection = %v, want %v", got, want)
	}

	if _, err := Project(values, models.ForecastConfig{Algorithm: "HOLT_WINTERS"}, 3); !errors.Is(err, models.ErrInvalidParameter) {
		t.Fatalf("unknown algorithm err = %v, want ErrInvalidParameter", err)
	}

	for _, a := range Algorithms() {
		out, err := Project(values, models.ForecastConfig{Algorithm: a}, 4)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", a, err)
		}
		if len(out) != 4 {
			t.Errorf("%s: len = %d, want 4", a, len(out))
		}
	}
}
