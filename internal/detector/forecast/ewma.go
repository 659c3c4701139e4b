package forecast

// EWMA forecasts the exponentially weighted moving average of the window.
type EWMA struct {
	Alpha   float64 // Smoothing factor (0 < alpha <= 1)
	Mean    float64 // Current smoothed mean
	Samples int     // Number of samples processed
}

// NewEWMA creates a new EWMA tracker with the given smoothing factor.
func NewEWMA(alpha float64) *EWMA {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}
	return &EWMA{Alpha: alpha}
}

// Update folds a new value into the smoothed mean.
func (e *EWMA) Update(value float64) {
	e.Samples++
	if e.Samples == 1 {
		e.Mean = value
		return
	}
	e.Mean += e.Alpha * (value - e.Mean)
}

func (e *EWMA) Name() string { return ModelEWMA }

func (e *EWMA) MinWindow() int { return 2 }

// Forecast replays the window through a fresh tracker with the same alpha
// and returns the smoothed level as the next value.
func (e *EWMA) Forecast(window []float64) (float64, error) {
	t := &EWMA{Alpha: e.Alpha}
	for _, v := range window {
		t.Update(v)
	}
	return t.Mean, nil
}
