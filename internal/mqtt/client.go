// Package mqtt connects streamwatch to an MQTT broker: readings can be
// consumed from it and anomaly alerts published to it.
package mqtt

import (
	"errors"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// ErrNoBroker is returned when no broker URL is configured.
var ErrNoBroker = errors.New("mqtt broker URL not configured")

// Connect dials the broker with auto-reconnect enabled. suffix is appended
// to the client id so the source and publisher can share one config.
func Connect(cfg Config, suffix string, logger *zap.Logger) (pahomqtt.Client, error) {
	if cfg.BrokerURL == "" {
		return nil, ErrNoBroker
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID + suffix).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			logger.Warn("mqtt connection lost; reconnecting", zap.Error(err))
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password) //nolint:gosec // G101: config field
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()

	switch {
	case !token.WaitTimeout(cfg.Timeout):
		return nil, fmt.Errorf("mqtt connect to %s: timed out after %s", cfg.BrokerURL, cfg.Timeout)
	case token.Error() != nil:
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.BrokerURL, token.Error())
	}

	logger.Info("mqtt connected to broker",
		zap.String("broker_url", cfg.BrokerURL),
		zap.String("client_id", cfg.ClientID+suffix),
	)
	return client, nil
}
