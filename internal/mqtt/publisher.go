package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/HerbHall/streamwatch/pkg/analytics"
	"github.com/HerbHall/streamwatch/pkg/plugin"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ plugin.HealthChecker = (*Publisher)(nil)

// Publisher sends anomaly decisions to <prefix>/alerts/<sensor>. With HA
// discovery enabled, each sensor is announced once as a problem
// binary_sensor before its first alert.
type Publisher struct {
	cfg    Config
	logger *zap.Logger

	mu        sync.RWMutex
	client    pahomqtt.Client
	announced map[string]bool
}

// NewPublisher creates an unconnected publisher; call Start to connect.
func NewPublisher(cfg Config, logger *zap.Logger) *Publisher {
	return &Publisher{
		cfg:       cfg,
		logger:    logger,
		announced: make(map[string]bool),
	}
}

// Start connects to the broker.
func (p *Publisher) Start() error {
	client, err := Connect(p.cfg, "-alerts", p.logger)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.client = client
	p.mu.Unlock()
	return nil
}

// Stop disconnects from the broker.
func (p *Publisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
		p.logger.Info("mqtt publisher disconnected")
	}
}

func (p *Publisher) Name() string { return "mqtt" }

// Health implements plugin.HealthChecker.
func (p *Publisher) Health(_ context.Context) plugin.HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.client == nil || !p.client.IsConnected() {
		return plugin.HealthStatus{
			Status:  "degraded",
			Message: "not connected to MQTT broker",
		}
	}
	return plugin.HealthStatus{
		Status:  "healthy",
		Message: "connected to " + p.cfg.BrokerURL,
	}
}

// Notify implements sink.Notifier.
func (p *Publisher) Notify(_ context.Context, d analytics.Decision) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("mqtt publisher not connected")
	}

	if p.cfg.HADiscovery && !p.announced[d.SensorID] {
		cfg := BuildSensorDiscoveryConfig(d.SensorID, p.cfg.TopicPrefix, p.cfg.HADiscoveryPrefix)
		if err := p.publish(cfg.Topic, cfg.Payload, true); err != nil {
			return fmt.Errorf("ha discovery for %s: %w", d.SensorID, err)
		}
		p.announced[d.SensorID] = true
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal mqtt payload: %w", err)
	}
	topic := p.cfg.AlertTopic(d.SensorID)
	if err := p.publish(topic, payload, p.cfg.Retain); err != nil {
		return err
	}
	if p.cfg.HADiscovery {
		if err := p.publish(StateTopic(p.cfg.TopicPrefix, d.SensorID), []byte("ON"), true); err != nil {
			return err
		}
	}

	p.logger.Debug("mqtt alert published", zap.String("mqtt_topic", topic))
	return nil
}

// publish must be called with p.mu held.
func (p *Publisher) publish(topic string, payload []byte, retain bool) error {
	token := p.client.Publish(topic, p.cfg.QoS, retain, payload)
	if !token.WaitTimeout(p.cfg.Timeout) {
		return fmt.Errorf("mqtt publish %s: timed out", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, token.Error())
	}
	return nil
}
