// Package stream drives readings through the detection pipeline: window
// update, forecast, classification and decision output, one sensor at a
// time in arrival order.
package stream

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/HerbHall/streamwatch/internal/detector/anomaly"
	"github.com/HerbHall/streamwatch/internal/detector/forecast"
	"github.com/HerbHall/streamwatch/internal/detector/window"
	"github.com/HerbHall/streamwatch/pkg/analytics"
	"go.uber.org/zap"
)

// Reading rejections returned by Process.
var (
	ErrMalformedReading = analytics.ErrMalformedReading
	ErrOutOfOrder       = errors.New("reading timestamp precedes the sensor's previous reading")
)

// Sensor phases.
const (
	PhaseCold = "cold"
	PhaseWarm = "warm"
)

// Sink receives decisions. Emit failures are governed by the
// on_sink_error policy; Alert is best effort.
type Sink interface {
	Emit(ctx context.Context, d analytics.Decision) error
	Alert(ctx context.Context, d analytics.Decision)
	Close() error
}

// sensorState tracks one sensor. proc serializes Process calls for the
// sensor; mu guards the fields read by Sensors.
type sensorState struct {
	proc sync.Mutex

	mu        sync.Mutex
	id        string
	warm      bool
	seen      bool
	last      time.Time
	lastValue float64
	samples   int
	decisions int
	anomalies int
	fallbacks int
	dropped   int
}

// Controller owns the per-sensor windows and states of one stream.
// Independent controllers share nothing.
type Controller struct {
	cfg       Config
	windows   *window.Store
	predictor forecast.Predictor
	sink      Sink
	logger    *zap.Logger

	mu     sync.RWMutex
	states map[string]*sensorState
}

// New creates a Controller. cfg is validated against the predictor's
// minimum window.
func New(cfg Config, predictor forecast.Predictor, sink Sink, logger *zap.Logger) (*Controller, error) {
	if err := cfg.Validate(predictor.MinWindow()); err != nil {
		return nil, err
	}
	if cfg.OnSinkError == "" {
		cfg.OnSinkError = OnSinkErrorHalt
	}
	return &Controller{
		cfg:       cfg,
		windows:   window.NewStore(cfg.WindowSize),
		predictor: predictor,
		sink:      sink,
		logger:    logger,
		states:    make(map[string]*sensorState),
	}, nil
}

// Process runs one reading through the pipeline. It returns nil while the
// sensor is still warming up. Rejected readings (ErrMalformedReading,
// ErrOutOfOrder) leave the window untouched. A non-nil decision with a
// non-nil error means the decision was made but the sink failed to record
// it.
func (c *Controller) Process(ctx context.Context, r analytics.Reading) (*analytics.Decision, error) {
	if r.SensorID == "" {
		readingsTotal.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("%w: empty sensor id", ErrMalformedReading)
	}
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		readingsTotal.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("%w: sensor %s: non-finite value %v", ErrMalformedReading, r.SensorID, r.Value)
	}

	st := c.getOrCreate(r.SensorID)
	st.proc.Lock()
	defer st.proc.Unlock()

	st.mu.Lock()
	if st.seen && r.Timestamp.Before(st.last) {
		prev := st.last
		st.mu.Unlock()
		readingsTotal.WithLabelValues("out_of_order").Inc()
		return nil, fmt.Errorf("%w: sensor %s: %s < %s", ErrOutOfOrder, r.SensorID,
			r.Timestamp.Format(time.RFC3339Nano), prev.Format(time.RFC3339Nano))
	}
	st.mu.Unlock()
	readingsTotal.WithLabelValues("accepted").Inc()

	view := c.windows.Push(r.SensorID, r.Value)

	st.mu.Lock()
	st.seen = true
	st.last = r.Timestamp
	st.lastValue = r.Value
	st.samples++
	becameWarm := !st.warm && view.Full()
	if becameWarm {
		st.warm = true
	}
	warm := st.warm
	st.mu.Unlock()

	if becameWarm {
		warmSensors.Inc()
		c.logger.Info("sensor warm",
			zap.String("sensor", r.SensorID),
			zap.Int("window_size", c.cfg.WindowSize),
		)
	}
	if !warm {
		return nil, nil
	}

	values := view.Values()
	start := time.Now()
	fc := c.predictor.Predict(values)
	forecastDuration.Observe(time.Since(start).Seconds())

	res := anomaly.Classify(r.Value, fc.Value, values, c.cfg.ThresholdMultiplier)
	d := analytics.Decision{
		Timestamp: r.Timestamp,
		SensorID:  r.SensorID,
		Actual:    r.Value,
		Predicted: fc.Value,
		Residual:  res.Residual,
		IsAnomaly: res.IsAnomaly,
		Threshold: res.Threshold,
		Severity:  res.Severity,
		ModelFit:  fc.Valid,
	}

	if !fc.Valid {
		fallbacksTotal.Inc()
	}
	outcome := "normal"
	if d.IsAnomaly {
		outcome = "anomaly"
	}
	decisionsTotal.WithLabelValues(outcome).Inc()

	emitErr := c.sink.Emit(ctx, d)

	// Decisions and anomalies count only what the sink recorded.
	st.mu.Lock()
	if !fc.Valid {
		st.fallbacks++
	}
	if emitErr != nil {
		st.dropped++
	} else {
		st.decisions++
		if d.IsAnomaly {
			st.anomalies++
		}
	}
	st.mu.Unlock()

	if emitErr != nil {
		sinkErrorsTotal.Inc()
		return &d, fmt.Errorf("emit decision: %w", emitErr)
	}
	if d.IsAnomaly {
		c.logger.Info("anomaly detected",
			zap.String("sensor", d.SensorID),
			zap.Time("timestamp", d.Timestamp),
			zap.Float64("actual", d.Actual),
			zap.Float64("predicted", d.Predicted),
			zap.Float64("threshold", d.Threshold),
			zap.String("severity", d.Severity),
			zap.Bool("model_fit", d.ModelFit),
		)
		c.sink.Alert(ctx, d)
	}
	return &d, nil
}

// Sensors returns a snapshot of every sensor seen so far, sorted by id.
func (c *Controller) Sensors() []analytics.SensorState {
	c.mu.RLock()
	states := make([]*sensorState, 0, len(c.states))
	for _, st := range c.states {
		states = append(states, st)
	}
	c.mu.RUnlock()

	out := make([]analytics.SensorState, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		phase := PhaseCold
		if st.warm {
			phase = PhaseWarm
		}
		out = append(out, analytics.SensorState{
			SensorID:  st.id,
			Phase:     phase,
			Samples:   st.samples,
			Decisions: st.decisions,
			Anomalies: st.anomalies,
			Fallbacks: st.fallbacks,
			Dropped:   st.dropped,
			LastSeen:  st.last,
			LastValue: st.lastValue,
		})
		st.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out
}

// Window returns a copy of a sensor's current window, oldest first.
func (c *Controller) Window(sensorID string) ([]float64, bool) {
	v, ok := c.windows.Snapshot(sensorID)
	if !ok {
		return nil, false
	}
	return v.Values(), true
}

func (c *Controller) getOrCreate(sensorID string) *sensorState {
	c.mu.RLock()
	st, ok := c.states[sensorID]
	c.mu.RUnlock()
	if ok {
		return st
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Double-check after acquiring write lock
	if st, ok = c.states[sensorID]; ok {
		return st
	}
	st = &sensorState{id: sensorID}
	c.states[sensorID] = st
	return st
}
