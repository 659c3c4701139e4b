package stream

import "github.com/prometheus/client_golang/prometheus"

var (
	readingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamwatch_readings_total",
			Help: "Readings received, by result (accepted, malformed, out_of_order).",
		},
		[]string{"result"},
	)
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamwatch_decisions_total",
			Help: "Decisions emitted, by outcome (normal, anomaly).",
		},
		[]string{"outcome"},
	)
	fallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "streamwatch_forecast_fallbacks_total",
			Help: "Forecasts that used the window mean instead of the model.",
		},
	)
	sinkErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "streamwatch_sink_errors_total",
			Help: "Decisions that could not be recorded.",
		},
	)
	forecastDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streamwatch_forecast_duration_seconds",
			Help:    "Time spent fitting and forecasting one window.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)
	warmSensors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamwatch_sensors_warm",
			Help: "Sensors whose window has filled.",
		},
	)
)

func init() {
	prometheus.MustRegister(readingsTotal, decisionsTotal, fallbacksTotal,
		sinkErrorsTotal, forecastDuration, warmSensors)
}
