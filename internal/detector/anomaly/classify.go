// Package anomaly classifies a reading against its forecast using a
// threshold derived from the variability of the current window.
package anomaly

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Severity levels for anomalous decisions.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// DefaultMultiplier is the default threshold multiplier k.
const DefaultMultiplier = 3.0

// Result contains the outcome of a residual check.
type Result struct {
	Residual  float64 // actual - predicted
	StdDev    float64 // sample standard deviation of the window
	Threshold float64 // k * StdDev
	IsAnomaly bool
	Severity  string // empty when not anomalous
}

// Classify compares the residual actual-predicted against k times the
// window's sample standard deviation (Bessel-corrected, n-1 denominator).
//
// A constant window has a zero threshold, so any non-zero residual is
// anomalous. Windows with fewer than two values are treated as constant.
//
// Severity mapping:
//   - warning: |residual| > threshold and |residual| < threshold+std
//   - critical: |residual| >= threshold+std (always critical when std is 0)
func Classify(actual, predicted float64, window []float64, k float64) Result {
	residual := actual - predicted

	var std float64
	if len(window) > 1 {
		std = stat.StdDev(window, nil)
	}
	threshold := k * std
	abs := math.Abs(residual)

	r := Result{
		Residual:  residual,
		StdDev:    std,
		Threshold: threshold,
	}
	if !(abs > threshold) {
		return r
	}

	r.IsAnomaly = true
	r.Severity = SeverityWarning
	if abs >= threshold+std {
		r.Severity = SeverityCritical
	}
	return r
}
