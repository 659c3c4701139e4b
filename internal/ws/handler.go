package ws

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/HerbHall/streamwatch/pkg/analytics"
	"github.com/HerbHall/streamwatch/pkg/plugin"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// SensorLister reports the sensors the detector has seen.
type SensorLister interface {
	Sensors() []analytics.SensorState
}

// Handler streams anomaly decisions to WebSocket clients.
type Handler struct {
	hub         *Hub
	sensors     SensorLister
	unsubscribe func()
	logger      *zap.Logger
}

var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

var _ plugin.HealthChecker = (*Handler)(nil)

// NewHandler creates a handler and subscribes it to anomaly events on bus.
// sensors may be nil.
func NewHandler(bus plugin.Subscriber, sensors SensorLister, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:     NewHub(logger),
		sensors: sensors,
		logger:  logger,
	}
	if bus != nil {
		h.unsubscribe = bus.Subscribe(analytics.TopicAnomalyDetected, h.onAnomaly)
		logger.Info("subscribed to anomaly events for WebSocket broadcasting")
	}
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/alerts", h.handleAlerts)
}

// Hub exposes the underlying hub.
func (h *Handler) Hub() *Hub { return h.hub }

// Health implements plugin.HealthChecker.
func (h *Handler) Health(_ context.Context) plugin.HealthStatus {
	return plugin.HealthStatus{
		Status:  "healthy",
		Details: map[string]string{"clients": strconv.Itoa(h.hub.ClientCount())},
	}
}

// Close drops the bus subscription and disconnects all clients.
func (h *Handler) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.hub.Close()
}

func (h *Handler) onAnomaly(_ context.Context, event plugin.Event) {
	d, ok := event.Payload.(analytics.Decision)
	if !ok {
		return
	}
	h.hub.Broadcast(AnomalyMessage(d))
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		remote: r.RemoteAddr,
		send:   make(chan Message, sendBuffer),
		logger: h.logger,
	}

	hello := HelloData{Sensors: []analytics.SensorState{}}
	if h.sensors != nil {
		hello.Sensors = h.sensors.Sensors()
	}
	client.send <- Message{Type: MessageHello, Timestamp: time.Now().UTC(), Data: hello}

	h.hub.Register(client)

	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	client.readPump(ctx)

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}
