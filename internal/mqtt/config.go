package mqtt

import (
	"time"

	"github.com/HerbHall/streamwatch/pkg/plugin"
)

// Config holds MQTT broker and topic settings shared by the reading source
// and the alert publisher.
type Config struct {
	BrokerURL   string        `mapstructure:"broker_url"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"` //nolint:gosec // G101: config field name, not a credential
	ClientID    string        `mapstructure:"client_id"`
	TopicPrefix string        `mapstructure:"topic_prefix"`
	QoS         byte          `mapstructure:"qos"`
	Retain      bool          `mapstructure:"retain"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Buffer      int           `mapstructure:"buffer"` // Queued readings before the broker callback blocks

	// Home Assistant MQTT auto-discovery settings.
	HADiscovery       bool   `mapstructure:"ha_discovery"`        // Announce one anomaly binary_sensor per sensor
	HADiscoveryPrefix string `mapstructure:"ha_discovery_prefix"` // HA discovery topic prefix (default: "homeassistant")
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BrokerURL:         "tcp://localhost:1883",
		ClientID:          "streamwatch",
		TopicPrefix:       "streamwatch",
		QoS:               1,
		Timeout:           10 * time.Second,
		Buffer:            1024,
		HADiscoveryPrefix: "homeassistant",
	}
}

// ConfigFrom overlays the "mqtt" config section on DefaultConfig. cfg may
// be nil.
func ConfigFrom(cfg plugin.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if u := cfg.GetString("broker_url"); u != "" {
		c.BrokerURL = u
	}
	if u := cfg.GetString("username"); u != "" {
		c.Username = u
	}
	if p := cfg.GetString("password"); p != "" {
		c.Password = p
	}
	if id := cfg.GetString("client_id"); id != "" {
		c.ClientID = id
	}
	if t := cfg.GetString("topic_prefix"); t != "" {
		c.TopicPrefix = t
	}
	if cfg.IsSet("qos") {
		c.QoS = byte(cfg.GetInt("qos"))
	}
	if cfg.IsSet("retain") {
		c.Retain = cfg.GetBool("retain")
	}
	if d := cfg.GetDuration("timeout"); d > 0 {
		c.Timeout = d
	}
	if b := cfg.GetInt("buffer"); b > 0 {
		c.Buffer = b
	}
	if cfg.IsSet("ha_discovery") {
		c.HADiscovery = cfg.GetBool("ha_discovery")
	}
	if p := cfg.GetString("ha_discovery_prefix"); p != "" {
		c.HADiscoveryPrefix = p
	}
	return c
}

// ReadingsTopic is the subscription filter for incoming readings.
func (c Config) ReadingsTopic() string {
	return c.TopicPrefix + "/readings/#"
}

// AlertTopic is where anomalies for sensorID are published.
func (c Config) AlertTopic(sensorID string) string {
	return c.TopicPrefix + "/alerts/" + sensorID
}
