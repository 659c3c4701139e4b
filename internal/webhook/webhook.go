// Package webhook delivers anomaly alerts as HTTP POST requests.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/HerbHall/streamwatch/pkg/analytics"
	"github.com/HerbHall/streamwatch/pkg/plugin"
	"go.uber.org/zap"
)

// Config holds the webhook notifier configuration.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Notifier posts one JSON document per anomaly to a configured URL.
type Notifier struct {
	logger *zap.Logger
	cfg    Config
	client *http.Client
}

// New creates a Notifier from the "alerts" config section
// (webhook_url, webhook_timeout). cfg may be nil.
func New(logger *zap.Logger, cfg plugin.Config) *Notifier {
	c := Config{Timeout: 10 * time.Second}
	if cfg != nil {
		if u := cfg.GetString("webhook_url"); u != "" {
			c.URL = u
		}
		if d := cfg.GetDuration("webhook_timeout"); d > 0 {
			c.Timeout = d
		}
	}
	return NewWithConfig(logger, c)
}

// NewWithConfig creates a Notifier from an explicit Config.
func NewWithConfig(logger *zap.Logger, cfg Config) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.URL == "" {
		logger.Warn("webhook URL not configured; alerts will be dropped",
			zap.String("component", "webhook"),
		)
	}
	return &Notifier{
		logger: logger,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Enabled reports whether a URL is configured.
func (n *Notifier) Enabled() bool {
	return n.cfg.URL != ""
}

func (n *Notifier) Name() string { return "webhook" }

// Payload is the JSON body sent to the webhook URL.
type Payload struct {
	Event     string             `json:"event"`
	Source    string             `json:"source"`
	Timestamp string             `json:"timestamp"`
	Data      analytics.Decision `json:"data"`
}

// Notify posts d to the webhook URL. A 4xx/5xx response is an error.
func (n *Notifier) Notify(ctx context.Context, d analytics.Decision) error {
	if n.cfg.URL == "" {
		return nil
	}

	body, err := json.Marshal(Payload{
		Event:     analytics.TopicAnomalyDetected,
		Source:    "streamwatch",
		Timestamp: d.Timestamp.UTC().Format(time.RFC3339),
		Data:      d,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "StreamWatch-Webhook/0.1")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}

	n.logger.Debug("webhook delivered",
		zap.String("sensor", d.SensorID),
		zap.Int("status_code", resp.StatusCode),
	)
	return nil
}
