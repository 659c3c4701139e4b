package forecast

// RegressionResult contains the output of a linear regression.
type RegressionResult struct {
	Slope     float64 // Change per step
	Intercept float64 // Value at x=0
	RSquared  float64 // Coefficient of determination (0-1)
}

// LinearRegression performs least-squares regression of values on xs.
// Returns nil if fewer than 2 points are provided or lengths differ.
func LinearRegression(xs, values []float64) *RegressionResult {
	n := len(xs)
	if n < 2 || len(values) != n {
		return nil
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += values[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var ssXY, ssXX, ssYY float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := values[i] - meanY
		ssXY += dx * dy
		ssXX += dx * dx
		ssYY += dy * dy
	}

	if ssXX == 0 {
		return &RegressionResult{Intercept: meanY}
	}

	slope := ssXY / ssXX
	var rSquared float64
	if ssYY > 0 {
		rSquared = (ssXY * ssXY) / (ssXX * ssYY)
	}
	return &RegressionResult{
		Slope:     slope,
		Intercept: meanY - slope*meanX,
		RSquared:  rSquared,
	}
}

// Linear extrapolates the least-squares line through the window.
type Linear struct{}

func (Linear) Name() string { return ModelLinear }

func (Linear) MinWindow() int { return 2 }

// Forecast fits value against sample index and evaluates the line at the next index.
func (Linear) Forecast(window []float64) (float64, error) {
	xs := make([]float64, len(window))
	for i := range xs {
		xs[i] = float64(i)
	}
	r := LinearRegression(xs, window)
	if r == nil {
		return 0, ErrDegenerateWindow
	}
	return r.Slope*float64(len(window)) + r.Intercept, nil
}
