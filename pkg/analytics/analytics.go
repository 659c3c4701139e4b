// Package analytics provides the public types exchanged by the streamwatch
// detection pipeline: raw readings in, forecasts and decisions out.
package analytics

import (
	"errors"
	"time"
)

// ErrMalformedReading marks a reading that cannot be processed: a missing
// sensor id, or a value that is absent, unparseable, NaN or infinite.
var ErrMalformedReading = errors.New("malformed reading")

// Reading is a single observation from one sensor.
type Reading struct {
	Timestamp time.Time `json:"timestamp"`
	SensorID  string    `json:"sensor"`
	Value     float64   `json:"value"`
}

// Forecast is a one-step-ahead point prediction for a sensor.
type Forecast struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"` // false when the window mean fallback was used
	Model string  `json:"model"`
}

// Decision is the immutable outcome of classifying one reading.
type Decision struct {
	Timestamp time.Time `json:"timestamp"`
	SensorID  string    `json:"sensor"`
	Actual    float64   `json:"actual"`
	Predicted float64   `json:"predicted"`
	Residual  float64   `json:"residual"` // Actual - Predicted
	IsAnomaly bool      `json:"anomaly"`
	Threshold float64   `json:"threshold"`
	Severity  string    `json:"severity,omitempty"` // "warning", "critical"; empty when normal
	ModelFit  bool      `json:"model_fit"`          // mirrors Forecast.Valid
}

// SensorState is the controller's view of a single sensor stream.
type SensorState struct {
	SensorID  string    `json:"sensor"`
	Phase     string    `json:"phase"` // "cold", "warm"
	Samples   int       `json:"samples"`
	Decisions int       `json:"decisions"` // recorded by the sink
	Anomalies int       `json:"anomalies"` // recorded anomalous decisions
	Fallbacks int       `json:"fallbacks"`
	Dropped   int       `json:"dropped"` // decisions the sink failed to record
	LastSeen  time.Time `json:"last_seen"`
	LastValue float64   `json:"last_value"`
}

// TopicAnomalyDetected is published on the event bus with a Decision
// payload for every anomalous reading.
const TopicAnomalyDetected = "detector.anomaly.detected"

// TimeLayout is the timestamp format used in CSV data and the decision log.
const TimeLayout = "2006-01-02 15:04:05.999999999"
