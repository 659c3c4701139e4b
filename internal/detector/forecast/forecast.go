// Package forecast produces one-step-ahead predictions from a sensor window.
//
// A Model does the numerical work and may fail; a Forecaster wraps a Model
// and turns every failure into the window mean with Valid=false, so callers
// always receive a usable prediction.
package forecast

import (
	"errors"
	"fmt"
	"math"

	"github.com/HerbHall/streamwatch/pkg/analytics"
	"gonum.org/v1/gonum/stat"
)

// Errors reported by models. They never leave a Forecaster.
var (
	ErrDegenerateWindow = errors.New("degenerate window")
	ErrNotConverged     = errors.New("model fit did not converge")
	ErrNonFinite        = errors.New("non-finite forecast")
	ErrUnknownModel     = errors.New("unknown forecast model")
)

// Model fits a window and returns the next value.
type Model interface {
	// Name identifies the model in forecasts, logs, and configuration.
	Name() string
	// MinWindow is the smallest window the model can fit.
	MinWindow() int
	// Forecast predicts the value following window (ordered oldest first).
	Forecast(window []float64) (float64, error)
}

// Predictor is the capability the stream controller depends on.
type Predictor interface {
	Predict(window []float64) analytics.Forecast
	MinWindow() int
}

// FailureFunc observes model failures recovered by a Forecaster.
type FailureFunc func(model string, err error)

// Forecaster wraps a Model with the mean fallback.
type Forecaster struct {
	model     Model
	onFailure FailureFunc
}

// Compile-time interface guard.
var _ Predictor = (*Forecaster)(nil)

// NewForecaster wraps m. onFailure may be nil.
func NewForecaster(m Model, onFailure FailureFunc) *Forecaster {
	return &Forecaster{model: m, onFailure: onFailure}
}

// MinWindow returns the wrapped model's minimum window.
func (f *Forecaster) MinWindow() int {
	return f.model.MinWindow()
}

// Predict returns the model forecast, or the window mean with Valid=false
// when the model errors, panics, or returns a non-finite value.
func (f *Forecaster) Predict(window []float64) (out analytics.Forecast) {
	name := f.model.Name()
	defer func() {
		if r := recover(); r != nil {
			f.fail(name, fmt.Errorf("model panicked: %v", r))
			out = fallback(window, name)
		}
	}()

	if len(window) < f.model.MinWindow() {
		f.fail(name, fmt.Errorf("%w: %d values, need %d", ErrDegenerateWindow, len(window), f.model.MinWindow()))
		return fallback(window, name)
	}

	v, err := f.model.Forecast(window)
	if err == nil && !isFinite(v) {
		err = ErrNonFinite
	}
	if err != nil {
		f.fail(name, err)
		return fallback(window, name)
	}
	return analytics.Forecast{Value: v, Valid: true, Model: name}
}

func (f *Forecaster) fail(name string, err error) {
	if f.onFailure != nil {
		f.onFailure(name, err)
	}
}

// fallback returns the arithmetic mean of the window. An empty window yields 0.
func fallback(window []float64, name string) analytics.Forecast {
	var mean float64
	if len(window) > 0 {
		mean = stat.Mean(window, nil)
	}
	return analytics.Forecast{Value: mean, Valid: false, Model: name}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
