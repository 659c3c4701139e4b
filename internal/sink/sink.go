// Package sink records classification decisions and fans anomaly alerts
// out to notifiers.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/HerbHall/streamwatch/pkg/analytics"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("sink closed")

var alertsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "streamwatch_alerts_total",
		Help: "Anomaly alerts delivered per notifier, by result.",
	},
	[]string{"notifier", "result"},
)

func init() {
	prometheus.MustRegister(alertsTotal)
}

// Recorder durably appends decisions. A Record error means the decision
// was not persisted.
type Recorder interface {
	Record(ctx context.Context, d analytics.Decision) error
	Close() error
}

// Notifier delivers an alert for an anomalous decision.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, d analytics.Decision) error
}

// Sink serializes decision output so the log holds one total order across
// all sensors.
type Sink struct {
	mu        sync.Mutex
	recorders []Recorder
	notifiers []Notifier
	logger    *zap.Logger
	closed    bool
}

// New creates a Sink writing to recorders and alerting through notifiers.
func New(logger *zap.Logger, recorders []Recorder, notifiers []Notifier) *Sink {
	return &Sink{
		recorders: recorders,
		notifiers: notifiers,
		logger:    logger,
	}
}

// Emit appends d to every recorder. All recorders are attempted; their
// errors are joined.
func (s *Sink) Emit(ctx context.Context, d analytics.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	var errs []error
	for _, r := range s.recorders {
		if err := r.Record(ctx, d); err != nil {
			errs = append(errs, fmt.Errorf("record %s decision: %w", d.SensorID, err))
		}
	}
	return errors.Join(errs...)
}

// Alert notifies every notifier about an anomalous decision. Delivery is
// best effort: failures are logged and counted, never returned.
func (s *Sink) Alert(ctx context.Context, d analytics.Decision) {
	if !d.IsAnomaly {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifiers {
		if err := n.Notify(ctx, d); err != nil {
			alertsTotal.WithLabelValues(n.Name(), "error").Inc()
			s.logger.Warn("alert delivery failed",
				zap.String("notifier", n.Name()),
				zap.String("sensor", d.SensorID),
				zap.Error(err),
			)
			continue
		}
		alertsTotal.WithLabelValues(n.Name(), "ok").Inc()
	}
}

// Close closes every recorder. Later calls are no-ops.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, r := range s.recorders {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
