// Package config loads streamwatch settings and exposes them through the
// plugin.Config interface.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HerbHall/streamwatch/pkg/plugin"
	"github.com/spf13/viper"
)

// Compile-time interface guard.
var _ plugin.Config = (*ViperConfig)(nil)

// ViperConfig wraps a Viper instance to implement plugin.Config.
type ViperConfig struct {
	v *viper.Viper
}

// New creates a Config backed by the given Viper instance.
// Returns the concrete type; callers assign to plugin.Config where needed.
func New(v *viper.Viper) *ViperConfig {
	if v == nil {
		v = viper.New()
	}
	return &ViperConfig{v: v}
}

func (c *ViperConfig) Unmarshal(target any) error {
	return c.v.Unmarshal(target)
}

func (c *ViperConfig) Get(key string) any {
	return c.v.Get(key)
}

func (c *ViperConfig) GetString(key string) string {
	return c.v.GetString(key)
}

func (c *ViperConfig) GetInt(key string) int {
	return c.v.GetInt(key)
}

func (c *ViperConfig) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

func (c *ViperConfig) GetBool(key string) bool {
	return c.v.GetBool(key)
}

func (c *ViperConfig) GetDuration(key string) time.Duration {
	return c.v.GetDuration(key)
}

func (c *ViperConfig) IsSet(key string) bool {
	return c.v.IsSet(key)
}

// Sub returns the section under key. viper.Sub only sees one config
// source, so the section is cut from the merged AllSettings instead.
func (c *ViperConfig) Sub(key string) plugin.Config {
	sub := viper.New()
	var node any = c.v.AllSettings()
	for _, part := range strings.Split(strings.ToLower(key), ".") {
		m, ok := node.(map[string]any)
		if !ok {
			node = nil
			break
		}
		node = m[part]
	}
	if m, ok := node.(map[string]any); ok {
		for k, val := range m {
			sub.Set(k, val)
		}
	}
	return New(sub)
}

// Viper returns the underlying Viper instance for direct access.
func (c *ViperConfig) Viper() *viper.Viper {
	return c.v
}

// Load reads configuration from file and environment variables.
// An explicit configPath must exist; otherwise streamwatch.yaml is searched
// for in the usual places and a missing file means defaults only.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("streamwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/streamwatch")
	}

	// Environment variable support: SW_DETECTOR_WINDOW_SIZE=50
	v.SetEnvPrefix("SW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}

// SetDefaults registers every known key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("detector.window_size", 100)
	v.SetDefault("detector.threshold_multiplier", 3.0)
	v.SetDefault("detector.model", "arima")
	v.SetDefault("detector.model_order", []int{2, 0, 2})
	v.SetDefault("detector.max_iterations", 2000)
	v.SetDefault("detector.ewma_alpha", 0.3)
	v.SetDefault("detector.hw_alpha", 0.3)
	v.SetDefault("detector.hw_beta", 0.1)
	v.SetDefault("detector.hw_gamma", 0.3)
	v.SetDefault("detector.hw_season_len", 24)
	v.SetDefault("detector.sample_rate_delay", "0s")
	v.SetDefault("detector.workers", 1)
	v.SetDefault("detector.on_sink_error", "halt")

	v.SetDefault("source.kind", "csv")
	v.SetDefault("source.path", "./data/sensor_data.csv")

	v.SetDefault("sink.csv_path", "./data/decisions.csv")
	v.SetDefault("sink.csv_append", false)
	v.SetDefault("sink.sqlite_path", "")

	v.SetDefault("alerts.console", true)
	v.SetDefault("alerts.webhook_url", "")
	v.SetDefault("alerts.webhook_timeout", "10s")
	v.SetDefault("alerts.mqtt", false)

	v.SetDefault("mqtt.broker_url", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "streamwatch")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", "streamwatch")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.buffer", 1024)

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
}
