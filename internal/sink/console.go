package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/HerbHall/streamwatch/pkg/analytics"
)

// ConsoleNotifier prints one alert line per anomaly.
type ConsoleNotifier struct {
	w io.Writer
}

// NewConsoleNotifier writes alerts to w (usually os.Stdout).
func NewConsoleNotifier(w io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{w: w}
}

func (c *ConsoleNotifier) Name() string { return "console" }

// Notify implements Notifier.
func (c *ConsoleNotifier) Notify(_ context.Context, d analytics.Decision) error {
	_, err := fmt.Fprintf(c.w, "[ALERT] %s - %s anomaly detected: %.2f (pred %.2f)\n",
		d.Timestamp.Format(analytics.TimeLayout), d.SensorID, d.Actual, d.Predicted)
	return err
}
