package ws

import (
	"time"

	"github.com/HerbHall/streamwatch/pkg/analytics"
)

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	MessageAnomaly MessageType = "anomaly.detected"
	MessageHello   MessageType = "stream.hello"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      MessageType `json:"type"`
	SensorID  string      `json:"sensor,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data,omitempty"`
}

// HelloData is sent once to each client right after the upgrade.
type HelloData struct {
	Sensors []analytics.SensorState `json:"sensors"`
}

// AnomalyMessage wraps a decision for broadcast.
func AnomalyMessage(d analytics.Decision) Message {
	return Message{
		Type:      MessageAnomaly,
		SensorID:  d.SensorID,
		Timestamp: d.Timestamp,
		Data:      d,
	}
}
