package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/HerbHall/streamwatch/internal/sink"
	"github.com/HerbHall/streamwatch/pkg/analytics"
	"go.uber.org/zap"
)

// MaxDecisionLimit caps the limit query parameter of the decisions endpoint.
const MaxDecisionLimit = 1000

// SensorSource exposes live detector state.
type SensorSource interface {
	Sensors() []analytics.SensorState
	Window(sensorID string) ([]float64, bool)
}

// DecisionSource reads the persisted decision log.
type DecisionSource interface {
	List(ctx context.Context, q sink.DecisionQuery) ([]analytics.Decision, error)
}

// API serves read-only detector endpoints under /api/v1.
type API struct {
	sensors   SensorSource
	decisions DecisionSource
	logger    *zap.Logger
}

// NewAPI creates the API. decisions may be nil when no decision database
// is configured.
func NewAPI(sensors SensorSource, decisions DecisionSource, logger *zap.Logger) *API {
	return &API{sensors: sensors, decisions: decisions, logger: logger}
}

// RegisterRoutes mounts the API routes.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/sensors", a.handleSensors)
	mux.HandleFunc("GET /api/v1/sensors/{id}", a.handleSensor)
	mux.HandleFunc("GET /api/v1/decisions", a.handleDecisions)
}

func (a *API) handleSensors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.sensors.Sensors())
}

// SensorDetail is the response for GET /api/v1/sensors/{id}.
type SensorDetail struct {
	analytics.SensorState
	Window []float64 `json:"window"`
}

func (a *API) handleSensor(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	window, ok := a.sensors.Window(id)
	if !ok {
		NotFound(w, "unknown sensor "+strconv.Quote(id), r.URL.Path)
		return
	}
	detail := SensorDetail{Window: window}
	for _, s := range a.sensors.Sensors() {
		if s.SensorID == id {
			detail.SensorState = s
			break
		}
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *API) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if a.decisions == nil {
		Unavailable(w, "decision database is not configured", r.URL.Path)
		return
	}

	q := sink.DecisionQuery{SensorID: r.URL.Query().Get("sensor")}
	if v := r.URL.Query().Get("anomalies"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			BadRequest(w, "anomalies must be a boolean", r.URL.Path)
			return
		}
		q.AnomaliesOnly = b
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxDecisionLimit {
			BadRequest(w, "limit must be between 1 and "+strconv.Itoa(MaxDecisionLimit), r.URL.Path)
			return
		}
		q.Limit = n
	}

	decisions, err := a.decisions.List(r.Context(), q)
	if err != nil {
		a.logger.Error("list decisions failed", zap.Error(err))
		InternalError(w, "failed to list decisions", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, decisions)
}
