package stream

import (
	"fmt"
	"time"

	"github.com/HerbHall/streamwatch/internal/detector/anomaly"
	"github.com/HerbHall/streamwatch/internal/detector/forecast"
	"github.com/HerbHall/streamwatch/pkg/plugin"
)

// Sink error policies.
const (
	OnSinkErrorHalt = "halt" // stop the stream and return the error
	OnSinkErrorSkip = "skip" // log, count, continue with the next reading
)

// Config holds the "detector" configuration section.
type Config struct {
	WindowSize          int           `mapstructure:"window_size"`
	ThresholdMultiplier float64       `mapstructure:"threshold_multiplier"`
	SampleRateDelay     time.Duration `mapstructure:"sample_rate_delay"` // Pause between readings; 0 disables pacing
	Workers             int           `mapstructure:"workers"`           // >1 shards sensors across goroutines
	OnSinkError         string        `mapstructure:"on_sink_error"`

	Model forecast.ModelConfig `mapstructure:",squash"`
}

// DefaultConfig returns W=100, k=3, ARIMA(2,0,2), one worker, no pacing.
func DefaultConfig() Config {
	return Config{
		WindowSize:          100,
		ThresholdMultiplier: anomaly.DefaultMultiplier,
		Workers:             1,
		OnSinkError:         OnSinkErrorHalt,
		Model:               forecast.DefaultModelConfig(),
	}
}

// ConfigFrom decodes the detector section over DefaultConfig. cfg may be nil.
func ConfigFrom(cfg plugin.Config) (Config, error) {
	c := DefaultConfig()
	if cfg == nil {
		return c, nil
	}
	if err := cfg.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode detector config: %w", err)
	}
	return c, nil
}

// Validate checks the configuration against the model's data requirement.
func (c Config) Validate(minWindow int) error {
	if c.WindowSize < 1 {
		return fmt.Errorf("window_size must be positive, got %d", c.WindowSize)
	}
	if c.WindowSize < minWindow {
		return fmt.Errorf("window_size %d is below the model minimum of %d", c.WindowSize, minWindow)
	}
	if !(c.ThresholdMultiplier > 0) {
		return fmt.Errorf("threshold_multiplier must be positive, got %v", c.ThresholdMultiplier)
	}
	if c.SampleRateDelay < 0 {
		return fmt.Errorf("sample_rate_delay must not be negative, got %s", c.SampleRateDelay)
	}
	switch c.OnSinkError {
	case OnSinkErrorHalt, OnSinkErrorSkip, "":
	default:
		return fmt.Errorf("on_sink_error must be %q or %q, got %q", OnSinkErrorHalt, OnSinkErrorSkip, c.OnSinkError)
	}
	return nil
}
