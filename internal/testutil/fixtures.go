// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"time"

	"github.com/HerbHall/streamwatch/pkg/analytics"
)

// Epoch is the base timestamp for fixture streams.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// NewReading returns a Reading with sensible defaults, suitable for test fixtures.
func NewReading(opts ...func(*analytics.Reading)) analytics.Reading {
	r := analytics.Reading{
		Timestamp: Epoch,
		SensorID:  "sensor_1",
		Value:     50,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// WithSensor sets the reading's sensor id.
func WithSensor(id string) func(*analytics.Reading) {
	return func(r *analytics.Reading) { r.SensorID = id }
}

// WithValue sets the reading's value.
func WithValue(v float64) func(*analytics.Reading) {
	return func(r *analytics.Reading) { r.Value = v }
}

// WithTimestamp sets the reading's timestamp.
func WithTimestamp(t time.Time) func(*analytics.Reading) {
	return func(r *analytics.Reading) { r.Timestamp = t }
}

// Series returns one reading per value for a single sensor, spaced a
// minute apart starting at Epoch.
func Series(sensor string, values ...float64) []analytics.Reading {
	out := make([]analytics.Reading, len(values))
	for i, v := range values {
		out[i] = analytics.Reading{
			Timestamp: Epoch.Add(time.Duration(i) * time.Minute),
			SensorID:  sensor,
			Value:     v,
		}
	}
	return out
}

// NewDecision returns an anomalous Decision for sensor_1.
func NewDecision(opts ...func(*analytics.Decision)) analytics.Decision {
	d := analytics.Decision{
		Timestamp: Epoch,
		SensorID:  "sensor_1",
		Actual:    13,
		Predicted: 10,
		Residual:  3,
		IsAnomaly: true,
		Threshold: 2,
		Severity:  "warning",
		ModelFit:  true,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// WithDecisionSensor sets the decision's sensor id.
func WithDecisionSensor(id string) func(*analytics.Decision) {
	return func(d *analytics.Decision) { d.SensorID = id }
}

// Normal marks the decision as not anomalous.
func Normal() func(*analytics.Decision) {
	return func(d *analytics.Decision) {
		d.IsAnomaly = false
		d.Severity = ""
		d.Actual = d.Predicted
		d.Residual = 0
	}
}
