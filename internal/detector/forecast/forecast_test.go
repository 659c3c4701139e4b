package forecast

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// failingModel always returns an error.
type failingModel struct{ err error }

func (failingModel) Name() string { return "failing" }
func (failingModel) MinWindow() int { return 1 }
func (m failingModel) Forecast([]float64) (float64, error) { return 0, m.err }

// panickingModel panics on every call.
type panickingModel struct{}

func (panickingModel) Name() string { return "panicking" }
func (panickingModel) MinWindow() int { return 1 }
func (panickingModel) Forecast([]float64) (float64, error) { panic("singular matrix") }

// constModel returns a fixed value.
type constModel struct{ v float64 }

func (constModel) Name() string { return "const" }
func (constModel) MinWindow() int { return 1 }
func (m constModel) Forecast([]float64) (float64, error) { return m.v, nil }

// ar1Series generates x_t = mu + phi*(x_{t-1} - mu) + N(0, sigma).
func ar1Series(n int, mu, phi, sigma float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	prev := 0.0
	for i := range out {
		prev = phi*prev + sigma*rng.NormFloat64()
		out[i] = mu + prev
	}
	return out
}

func TestForecaster_FallbackOnError(t *testing.T) {
	var failures int
	f := NewForecaster(failingModel{err: ErrNotConverged}, func(model string, err error) {
		failures++
		if model != "failing" {
			t.Errorf("failure model = %q, want failing", model)
		}
		if !errors.Is(err, ErrNotConverged) {
			t.Errorf("failure err = %v, want ErrNotConverged", err)
		}
	})

	got := f.Predict([]float64{10, 12, 9, 11})

	if got.Valid {
		t.Error("Valid = true, want false")
	}
	if got.Value != 10.5 {
		t.Errorf("Value = %v, want 10.5 (window mean)", got.Value)
	}
	if failures != 1 {
		t.Errorf("failures = %d, want 1", failures)
	}
}

func TestForecaster_FallbackOnPanic(t *testing.T) {
	f := NewForecaster(panickingModel{}, nil)

	got := f.Predict([]float64{1, 2, 3})

	if got.Valid {
		t.Error("Valid = true, want false")
	}
	if got.Value != 2 {
		t.Errorf("Value = %v, want 2", got.Value)
	}
}

func TestForecaster_FallbackOnNonFinite(t *testing.T) {
	tests := []struct {
		name string
		v    float64
	}{
		{name: "NaN", v: math.NaN()},
		{name: "+Inf", v: math.Inf(1)},
		{name: "-Inf", v: math.Inf(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewForecaster(constModel{v: tt.v}, nil)
			got := f.Predict([]float64{4, 6})
			if got.Valid || got.Value != 5 {
				t.Errorf("Predict() = %+v, want mean 5 invalid", got)
			}
		})
	}
}

func TestForecaster_ShortWindowFallsBack(t *testing.T) {
	f := NewForecaster(NewARIMA(Order{P: 2, D: 0, Q: 2}, 0), nil)
	got := f.Predict([]float64{1, 2, 3})
	if got.Valid {
		t.Error("Valid = true for window shorter than MinWindow")
	}
	if got.Value != 2 {
		t.Errorf("Value = %v, want 2", got.Value)
	}
}

func TestForecaster_ValidModel(t *testing.T) {
	f := NewForecaster(constModel{v: 42}, nil)
	got := f.Predict([]float64{1, 2})
	if !got.Valid || got.Value != 42 || got.Model != "const" {
		t.Errorf("Predict() = %+v, want {42 true const}", got)
	}
}

func TestARIMA_ConstantWindowIsDegenerate(t *testing.T) {
	m := NewARIMA(Order{P: 2, D: 0, Q: 2}, 0)
	window := make([]float64, 20)
	for i := range window {
		window[i] = 10
	}

	_, err := m.Forecast(window)
	if !errors.Is(err, ErrDegenerateWindow) {
		t.Fatalf("Forecast() err = %v, want ErrDegenerateWindow", err)
	}

	got := NewForecaster(m, nil).Predict(window)
	if got.Valid || got.Value != 10 {
		t.Errorf("Predict() = %+v, want mean 10 invalid", got)
	}
}

func TestARIMA_AR1Forecast(t *testing.T) {
	const (
		mu  = 50.0
		phi = 0.7
	)
	window := ar1Series(400, mu, phi, 1.0, 7)
	m := NewARIMA(Order{P: 1, D: 0, Q: 0}, 0)

	got, err := m.Forecast(window)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	want := mu + phi*(window[len(window)-1]-mu)
	if math.Abs(got-want) > 0.6 {
		t.Errorf("Forecast() = %.3f, want about %.3f", got, want)
	}
}

func TestARIMA_DifferencedDrift(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	window := make([]float64, 120)
	x := 100.0
	for i := range window {
		x += 2 + 0.1*rng.NormFloat64()
		window[i] = x
	}

	m := NewARIMA(Order{P: 1, D: 1, Q: 0}, 0)
	got, err := m.Forecast(window)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	want := window[len(window)-1] + 2
	if math.Abs(got-want) > 0.5 {
		t.Errorf("Forecast() = %.3f, want about %.3f", got, want)
	}
}

func TestARIMA_DefaultOrderIsFinite(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	window := make([]float64, 100)
	for i := range window {
		window[i] = 50 + 10*math.Sin(float64(i)*2*math.Pi/72) + rng.NormFloat64()
	}

	f := NewForecaster(NewARIMA(Order{P: 2, D: 0, Q: 2}, 0), nil)
	got := f.Predict(window)

	if math.IsNaN(got.Value) || math.IsInf(got.Value, 0) {
		t.Fatalf("Predict() = %v, want finite", got.Value)
	}
	if got.Value < 20 || got.Value > 80 {
		t.Errorf("Predict() = %.3f, outside plausible range", got.Value)
	}
}

func TestARIMA_MinWindow(t *testing.T) {
	tests := []struct {
		order Order
		want  int
	}{
		{Order{P: 2, D: 0, Q: 2}, 8},
		{Order{P: 1, D: 1, Q: 0}, 5},
		{Order{P: 0, D: 0, Q: 0}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.order.String(), func(t *testing.T) {
			if got := NewARIMA(tt.order, 0).MinWindow(); got != tt.want {
				t.Errorf("MinWindow() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStationary(t *testing.T) {
	tests := []struct {
		name string
		phi  []float64
		want bool
	}{
		{name: "empty", phi: nil, want: true},
		{name: "ar1 inside", phi: []float64{0.5}, want: true},
		{name: "ar1 unit root", phi: []float64{1}, want: false},
		{name: "ar2 inside", phi: []float64{0.5, 0.3}, want: true},
		{name: "ar2 explosive", phi: []float64{0.9, 0.5}, want: false},
		{name: "ar2 complex inside", phi: []float64{1.0, -0.5}, want: true},
		{name: "nan", phi: []float64{math.NaN(), 0}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stationary(tt.phi); got != tt.want {
				t.Errorf("stationary(%v) = %v, want %v", tt.phi, got, tt.want)
			}
		})
	}
}

func TestInvertible(t *testing.T) {
	if !invertible([]float64{0.4, 0.2}) {
		t.Error("invertible([0.4 0.2]) = false, want true")
	}
	if invertible([]float64{-1.5}) {
		t.Error("invertible([-1.5]) = true, want false")
	}
}

func TestEWMA_Forecast(t *testing.T) {
	m := NewEWMA(0.5)
	got, err := m.Forecast([]float64{10, 20})
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if got != 15 {
		t.Errorf("Forecast() = %v, want 15", got)
	}
	if m.Samples != 0 {
		t.Error("Forecast() mutated the configured tracker")
	}
}

func TestEWMA_InvalidAlphaDefaults(t *testing.T) {
	if got := NewEWMA(0).Alpha; got != 0.3 {
		t.Errorf("Alpha = %v, want 0.3", got)
	}
	if got := NewEWMA(1.5).Alpha; got != 0.3 {
		t.Errorf("Alpha = %v, want 0.3", got)
	}
}

func TestHoltWinters_SeasonalForecast(t *testing.T) {
	const season = 4
	pattern := []float64{10, 20, 30, 20}
	window := make([]float64, 0, 6*season)
	for i := 0; i < 6; i++ {
		window = append(window, pattern...)
	}

	m := NewHoltWinters(0.3, 0.1, 0.3, season)
	got, err := m.Forecast(window)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if math.Abs(got-10) > 0.5 {
		t.Errorf("Forecast() = %.3f, want about 10 (next point in season)", got)
	}
}

func TestHoltWinters_NotInitialized(t *testing.T) {
	m := NewHoltWinters(0.3, 0.1, 0.3, 24)
	_, err := m.Forecast([]float64{1, 2, 3})
	if !errors.Is(err, ErrDegenerateWindow) {
		t.Errorf("err = %v, want ErrDegenerateWindow", err)
	}
}

func TestLinear_Forecast(t *testing.T) {
	got, err := Linear{}.Forecast([]float64{1, 3, 5, 7})
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if math.Abs(got-9) > 1e-9 {
		t.Errorf("Forecast() = %v, want 9", got)
	}
}

func TestLinearRegression(t *testing.T) {
	r := LinearRegression([]float64{0, 1, 2}, []float64{1, 3, 5})
	if r == nil {
		t.Fatal("LinearRegression() = nil")
	}
	if r.Slope != 2 || r.Intercept != 1 || math.Abs(r.RSquared-1) > 1e-12 {
		t.Errorf("LinearRegression() = %+v", r)
	}
	if LinearRegression([]float64{1}, []float64{1}) != nil {
		t.Error("LinearRegression() with one point should be nil")
	}
}

func TestMean_Forecast(t *testing.T) {
	got, _ := Mean{}.Forecast([]float64{10, 12, 9, 11})
	if got != 10.5 {
		t.Errorf("Forecast() = %v, want 10.5", got)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      func(c *ModelConfig)
		wantName string
		wantErr  bool
	}{
		{name: "default arima", cfg: func(*ModelConfig) {}, wantName: ModelARIMA},
		{name: "ewma", cfg: func(c *ModelConfig) { c.Name = "ewma" }, wantName: ModelEWMA},
		{name: "holtwinters", cfg: func(c *ModelConfig) { c.Name = "HoltWinters" }, wantName: ModelHoltWinters},
		{name: "linear", cfg: func(c *ModelConfig) { c.Name = "linear" }, wantName: ModelLinear},
		{name: "mean", cfg: func(c *ModelConfig) { c.Name = "mean" }, wantName: ModelMean},
		{name: "unknown", cfg: func(c *ModelConfig) { c.Name = "prophet" }, wantErr: true},
		{name: "bad order", cfg: func(c *ModelConfig) { c.Order = []int{2, 0} }, wantErr: true},
		{name: "negative order", cfg: func(c *ModelConfig) { c.Order = []int{2, -1, 2} }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultModelConfig()
			tt.cfg(&cfg)
			m, err := New(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && m.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", m.Name(), tt.wantName)
			}
		})
	}
}
