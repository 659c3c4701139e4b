package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/HerbHall/streamwatch/pkg/analytics"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// ReadingMessage is the JSON payload expected on <prefix>/readings/<sensor>.
// A missing sensor falls back to the last topic level; a missing timestamp
// is the receive time.
type ReadingMessage struct {
	Timestamp *time.Time `json:"timestamp,omitempty"`
	SensorID  string     `json:"sensor,omitempty"`
	Value     *float64   `json:"value"`
}

type item struct {
	reading analytics.Reading
	err     error
}

// Source turns broker messages into a reading stream. Messages are handed
// over in the order paho delivers them; when the buffer is full the broker
// callback blocks.
type Source struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	client pahomqtt.Client

	items     chan item
	done      chan struct{}
	closeOnce sync.Once
}

// NewSource creates an unconnected source; call Start to subscribe.
func NewSource(cfg Config, logger *zap.Logger) *Source {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultConfig().Buffer
	}
	return &Source{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		items:  make(chan item, cfg.Buffer),
		done:   make(chan struct{}),
	}
}

// Start connects and subscribes to the readings topic.
func (s *Source) Start() error {
	client, err := Connect(s.cfg, "-source", s.logger)
	if err != nil {
		return err
	}

	topic := s.cfg.ReadingsTopic()
	token := client.Subscribe(topic, s.cfg.QoS, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		s.handle(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(s.cfg.Timeout) {
		client.Disconnect(250)
		return fmt.Errorf("mqtt subscribe %s: timed out", topic)
	}
	if token.Error() != nil {
		client.Disconnect(250)
		return fmt.Errorf("mqtt subscribe %s: %w", topic, token.Error())
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	s.logger.Info("mqtt source subscribed", zap.String("topic", topic))
	return nil
}

// Next implements source.Source. After Close, queued readings are still
// returned before io.EOF.
func (s *Source) Next(ctx context.Context) (analytics.Reading, error) {
	select {
	case it := <-s.items:
		return it.reading, it.err
	case <-ctx.Done():
		return analytics.Reading{}, ctx.Err()
	case <-s.done:
		select {
		case it := <-s.items:
			return it.reading, it.err
		default:
			return analytics.Reading{}, io.EOF
		}
	}
}

// Close unsubscribes, disconnects and ends the stream.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.client != nil && s.client.IsConnected() {
			s.client.Unsubscribe(s.cfg.ReadingsTopic()).WaitTimeout(s.cfg.Timeout)
			s.client.Disconnect(250)
			s.logger.Info("mqtt source disconnected")
		}
	})
	return nil
}

func (s *Source) handle(topic string, payload []byte) {
	r, err := decodeReading(topic, payload, s.now)
	if err != nil {
		s.logger.Debug("malformed mqtt reading",
			zap.String("topic", topic),
			zap.Error(err),
		)
	}
	select {
	case s.items <- item{reading: r, err: err}:
	case <-s.done:
	}
}

func decodeReading(topic string, payload []byte, now func() time.Time) (analytics.Reading, error) {
	var msg ReadingMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return analytics.Reading{}, fmt.Errorf("%w: topic %s: %v", analytics.ErrMalformedReading, topic, err)
	}

	r := analytics.Reading{SensorID: msg.SensorID}
	if r.SensorID == "" {
		r.SensorID = topic[strings.LastIndex(topic, "/")+1:]
	}
	if msg.Timestamp != nil {
		r.Timestamp = *msg.Timestamp
	} else {
		r.Timestamp = now()
	}

	if msg.Value == nil {
		return r, fmt.Errorf("%w: topic %s: missing value", analytics.ErrMalformedReading, topic)
	}
	r.Value = *msg.Value
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return r, fmt.Errorf("%w: topic %s: non-finite value", analytics.ErrMalformedReading, topic)
	}
	if r.SensorID == "" {
		return r, fmt.Errorf("%w: topic %s: no sensor id", analytics.ErrMalformedReading, topic)
	}
	return r, nil
}
