package mqtt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// nonAlphanumeric matches any character that is not alphanumeric or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// DiscoveryConfig holds a single HA MQTT discovery payload.
type DiscoveryConfig struct {
	Topic   string // Full MQTT topic (homeassistant/...)
	Payload []byte // JSON-encoded config
}

// HADevice is the "device" block in HA discovery payloads.
type HADevice struct {
	Identifiers []string `json:"identifiers"`
	Name        string   `json:"name"`
	Model       string   `json:"model,omitempty"`
}

// BinarySensorConfig is the HA discovery payload for binary_sensor.
type BinarySensorConfig struct {
	Name        string   `json:"name"`
	ObjectID    string   `json:"object_id"`
	UniqueID    string   `json:"unique_id"`
	StateTopic  string   `json:"state_topic"`
	DeviceClass string   `json:"device_class,omitempty"`
	PayloadOn   string   `json:"payload_on"`
	PayloadOff  string   `json:"payload_off"`
	Device      HADevice `json:"device"`
	Icon        string   `json:"icon,omitempty"`
}

// SafeObjectID sanitizes a string for use as an HA object_id.
// Replaces any non-alphanumeric character (except underscore) with underscore,
// lowercases, and trims leading/trailing underscores.
func SafeObjectID(s string) string {
	s = strings.ToLower(s)
	s = nonAlphanumeric.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unknown"
	}
	return s
}

// StateTopic is the retained ON/OFF state topic for a sensor's anomaly entity.
func StateTopic(topicPrefix, sensorID string) string {
	return topicPrefix + "/state/" + sensorID + "/anomaly"
}

// BuildSensorDiscoveryConfig announces a sensor's anomaly flag to Home
// Assistant as a "problem" binary_sensor.
func BuildSensorDiscoveryConfig(sensorID, topicPrefix, haPrefix string) DiscoveryConfig {
	safeID := SafeObjectID(sensorID)

	cfg := BinarySensorConfig{
		Name:        sensorID + " Anomaly",
		ObjectID:    "streamwatch_" + safeID + "_anomaly",
		UniqueID:    "streamwatch_" + safeID + "_anomaly",
		StateTopic:  StateTopic(topicPrefix, sensorID),
		DeviceClass: "problem",
		PayloadOn:   "ON",
		PayloadOff:  "OFF",
		Icon:        "mdi:chart-bell-curve",
		Device: HADevice{
			Identifiers: []string{"streamwatch_" + safeID},
			Name:        sensorID,
			Model:       "streamwatch sensor",
		},
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return DiscoveryConfig{}
	}
	return DiscoveryConfig{
		Topic:   fmt.Sprintf("%s/binary_sensor/streamwatch_%s/anomaly/config", haPrefix, safeID),
		Payload: payload,
	}
}
