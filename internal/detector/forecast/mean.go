package forecast

import "gonum.org/v1/gonum/stat"

// Mean predicts the window mean. It never fails, so forecasts it produces
// are always marked valid.
type Mean struct{}

func (Mean) Name() string { return ModelMean }

func (Mean) MinWindow() int { return 1 }

func (Mean) Forecast(window []float64) (float64, error) {
	return stat.Mean(window, nil), nil
}
