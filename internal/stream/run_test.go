package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/HerbHall/streamwatch/internal/config"
	"github.com/HerbHall/streamwatch/internal/source"
	"github.com/HerbHall/streamwatch/internal/testutil"
	"github.com/HerbHall/streamwatch/pkg/analytics"
	"github.com/spf13/viper"
)

// interleaved returns n rows of readings for each sensor, row by row.
func interleaved(n int, sensors ...string) []analytics.Reading {
	out := make([]analytics.Reading, 0, n*len(sensors))
	for i := 0; i < n; i++ {
		for j, s := range sensors {
			out = append(out, analytics.Reading{
				Timestamp: t0.Add(time.Duration(i) * time.Minute),
				SensorID:  s,
				Value:     float64(i*10 + j),
			})
		}
	}
	return out
}

func TestRun_SequentialTotalOrder(t *testing.T) {
	sink := &memSink{}
	c := newController(t, testConfig(3), meanPredictor(), sink)

	in := interleaved(5, "a", "b", "c")
	if err := c.Run(context.Background(), source.NewSliceSource(in)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Rows 3..5 produce decisions for every sensor, in input order.
	want := in[6:]
	if len(sink.emitted) != len(want) {
		t.Fatalf("emitted %d, want %d", len(sink.emitted), len(want))
	}
	for i, d := range sink.emitted {
		if d.SensorID != want[i].SensorID || d.Actual != want[i].Value {
			t.Errorf("decision %d = %s/%v, want %s/%v", i, d.SensorID, d.Actual, want[i].SensorID, want[i].Value)
		}
	}
	if sink.closed != 1 {
		t.Errorf("sink closed %d times, want 1", sink.closed)
	}
}

func TestRun_ShardedPreservesPerSensorOrder(t *testing.T) {
	sink := &memSink{}
	cfg := testConfig(3)
	cfg.Workers = 4
	c := newController(t, cfg, meanPredictor(), sink)

	sensors := make([]string, 10)
	for i := range sensors {
		sensors[i] = fmt.Sprintf("sensor_%d", i)
	}
	if err := c.Run(context.Background(), source.NewSliceSource(interleaved(20, sensors...))); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if want := 10 * (20 - 2); len(sink.emitted) != want {
		t.Fatalf("emitted %d, want %d", len(sink.emitted), want)
	}
	last := map[string]time.Time{}
	for _, d := range sink.emitted {
		if prev, ok := last[d.SensorID]; ok && d.Timestamp.Before(prev) {
			t.Fatalf("sensor %s emitted out of order: %v after %v", d.SensorID, d.Timestamp, prev)
		}
		last[d.SensorID] = d.Timestamp
	}
	if sink.closed != 1 {
		t.Errorf("sink closed %d times, want 1", sink.closed)
	}
}

func TestRun_SinkErrorPolicy(t *testing.T) {
	failThird := func(d analytics.Decision) bool { return d.Actual == 3 }

	tests := []struct {
		policy      string
		wantErr     bool
		wantEmitted int
	}{
		{OnSinkErrorHalt, true, 2},
		{OnSinkErrorSkip, false, 4},
	}
	// Either way the failed decision is reported as dropped, not recorded.
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			sink := &memSink{failOn: failThird}
			cfg := testConfig(1)
			cfg.OnSinkError = tt.policy
			c := newController(t, cfg, meanPredictor(), sink)

			err := c.Run(context.Background(), source.NewSliceSource(testutil.Series("s1", 1, 2, 3, 4, 5)))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(sink.emitted) != tt.wantEmitted {
				t.Errorf("emitted %d, want %d", len(sink.emitted), tt.wantEmitted)
			}
			st := c.Sensors()[0]
			if st.Decisions != tt.wantEmitted || st.Dropped != 1 {
				t.Errorf("Decisions = %d, Dropped = %d, want %d and 1", st.Decisions, st.Dropped, tt.wantEmitted)
			}
			if sink.closed != 1 {
				t.Errorf("sink closed %d times, want 1", sink.closed)
			}
		})
	}
}

func TestRun_SkipsRejectedReadings(t *testing.T) {
	sink := &memSink{}
	c := newController(t, testConfig(2), meanPredictor(), sink)

	in := []analytics.Reading{
		{Timestamp: t0, SensorID: "s1", Value: 1},
		{Timestamp: t0.Add(2 * time.Minute), SensorID: "s1", Value: 2},
		{Timestamp: t0.Add(time.Minute), SensorID: "s1", Value: 100}, // out of order
		{Timestamp: t0.Add(3 * time.Minute), SensorID: "", Value: 3}, // malformed
		{Timestamp: t0.Add(3 * time.Minute), SensorID: "s1", Value: 3},
	}
	if err := c.Run(context.Background(), source.NewSliceSource(in)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.emitted) != 2 {
		t.Fatalf("emitted %d, want 2", len(sink.emitted))
	}
	for _, d := range sink.emitted {
		if d.Actual == 100 {
			t.Error("out-of-order reading reached the sink")
		}
	}
}

// erringSource yields a malformed reading, then fails.
type erringSource struct{ n int }

func (e *erringSource) Next(context.Context) (analytics.Reading, error) {
	e.n++
	if e.n == 1 {
		return analytics.Reading{}, fmt.Errorf("%w: bad cell", analytics.ErrMalformedReading)
	}
	return analytics.Reading{}, errors.New("connection reset")
}

func TestRun_SourceError(t *testing.T) {
	sink := &memSink{}
	c := newController(t, testConfig(2), meanPredictor(), sink)

	err := c.Run(context.Background(), &erringSource{})
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("Run err = %v, want source error", err)
	}
	if sink.closed != 1 {
		t.Error("sink not closed after source error")
	}
}

// endlessSource produces readings until its context is cancelled.
type endlessSource struct{ i int }

func (e *endlessSource) Next(ctx context.Context) (analytics.Reading, error) {
	if err := ctx.Err(); err != nil {
		return analytics.Reading{}, err
	}
	e.i++
	return analytics.Reading{Timestamp: t0.Add(time.Duration(e.i) * time.Second), SensorID: "s1", Value: float64(e.i % 7)}, nil
}

func TestRun_CancelShutsDownCleanly(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			sink := &memSink{}
			cfg := testConfig(2)
			cfg.Workers = workers
			cfg.SampleRateDelay = time.Millisecond
			c := newController(t, cfg, meanPredictor(), sink)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()

			if err := c.Run(ctx, &endlessSource{}); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if sink.closed != 1 {
				t.Errorf("sink closed %d times, want 1", sink.closed)
			}
		})
	}
}

func TestRun_Pacing(t *testing.T) {
	cfg := testConfig(2)
	cfg.SampleRateDelay = 10 * time.Millisecond
	c := newController(t, cfg, meanPredictor(), &memSink{})

	start := time.Now()
	if err := c.Run(context.Background(), source.NewSliceSource(testutil.Series("s1", 1, 2, 3, 4, 5))); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("5 paced readings took %v, want at least 40ms", elapsed)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero window", func(c *Config) { c.WindowSize = 0 }, true},
		{"below model minimum", func(c *Config) { c.WindowSize = 5 }, true},
		{"zero multiplier", func(c *Config) { c.ThresholdMultiplier = 0 }, true},
		{"negative delay", func(c *Config) { c.SampleRateDelay = -time.Second }, true},
		{"bad policy", func(c *Config) { c.OnSinkError = "retry" }, true},
		{"skip policy", func(c *Config) { c.OnSinkError = OnSinkErrorSkip }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate(8)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigFrom(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("detector.window_size", 50)
	v.Set("detector.model", "ewma")
	v.Set("detector.sample_rate_delay", "25ms")

	cfg, err := ConfigFrom(config.New(v).Sub("detector"))
	if err != nil {
		t.Fatalf("ConfigFrom: %v", err)
	}
	if cfg.WindowSize != 50 {
		t.Errorf("WindowSize = %d, want 50", cfg.WindowSize)
	}
	if cfg.Model.Name != "ewma" {
		t.Errorf("Model.Name = %q, want ewma", cfg.Model.Name)
	}
	if cfg.SampleRateDelay != 25*time.Millisecond {
		t.Errorf("SampleRateDelay = %v, want 25ms", cfg.SampleRateDelay)
	}
	if len(cfg.Model.Order) != 3 || cfg.Model.Order[0] != 2 {
		t.Errorf("Model.Order = %v, want [2 0 2]", cfg.Model.Order)
	}
	if cfg.ThresholdMultiplier != 3 {
		t.Errorf("ThresholdMultiplier = %v, want 3", cfg.ThresholdMultiplier)
	}
}
