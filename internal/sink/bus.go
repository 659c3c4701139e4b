package sink

import (
	"context"
	"time"

	"github.com/HerbHall/streamwatch/pkg/analytics"
	"github.com/HerbHall/streamwatch/pkg/plugin"
)

// BusNotifier republishes anomalies on the event bus so in-process
// subscribers such as the WebSocket hub can react.
type BusNotifier struct {
	bus plugin.EventBus
}

// NewBusNotifier creates a notifier publishing to bus.
func NewBusNotifier(bus plugin.EventBus) *BusNotifier {
	return &BusNotifier{bus: bus}
}

func (b *BusNotifier) Name() string { return "bus" }

// Notify implements Notifier. Handlers run asynchronously so a slow
// subscriber cannot stall the stream.
func (b *BusNotifier) Notify(ctx context.Context, d analytics.Decision) error {
	b.bus.PublishAsync(context.WithoutCancel(ctx), plugin.Event{
		Topic:     analytics.TopicAnomalyDetected,
		Source:    "sink",
		Timestamp: time.Now(),
		Payload:   d,
	})
	return nil
}
