package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/HerbHall/streamwatch/internal/sink"
	"github.com/HerbHall/streamwatch/internal/testutil"
	"github.com/HerbHall/streamwatch/pkg/analytics"
	"github.com/HerbHall/streamwatch/pkg/plugin"
	"go.uber.org/zap"
)

type stubSensors struct {
	states  []analytics.SensorState
	windows map[string][]float64
}

func (s *stubSensors) Sensors() []analytics.SensorState { return s.states }

func (s *stubSensors) Window(id string) ([]float64, bool) {
	w, ok := s.windows[id]
	return w, ok
}

type stubDecisions struct {
	got sink.DecisionQuery
	out []analytics.Decision
	err error
}

func (s *stubDecisions) List(_ context.Context, q sink.DecisionQuery) ([]analytics.Decision, error) {
	s.got = q
	return s.out, s.err
}

func newTestServer(ready ReadinessChecker, decisions DecisionSource) *Server {
	sensors := &stubSensors{
		states: []analytics.SensorState{
			{SensorID: "sensor_1", Phase: "warm", Samples: 3},
			{SensorID: "sensor_2", Phase: "cold", Samples: 1},
		},
		windows: map[string][]float64{
			"sensor_1": {1, 2, 3},
			"sensor_2": {7},
		},
	}
	return New("127.0.0.1:0", zap.NewNop(), ready, NewAPI(sensors, decisions, zap.NewNop()))
}

func serve(s *Server, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, http.NoBody))
	return w
}

func TestHandleHealthz(t *testing.T) {
	w := serve(newTestServer(nil, nil), "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	_ = json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "alive" {
		t.Errorf("status = %q, want alive", body["status"])
	}
}

func TestHandleReadyz(t *testing.T) {
	tests := []struct {
		name     string
		ready    ReadinessChecker
		wantCode int
	}{
		{name: "nil checker", ready: nil, wantCode: http.StatusOK},
		{name: "ready", ready: func(context.Context) error { return nil }, wantCode: http.StatusOK},
		{name: "not ready", ready: func(context.Context) error { return errors.New("database locked") }, wantCode: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(newTestServer(tt.ready, nil), "/readyz")
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestHandleHealth(t *testing.T) {
	w := serve(newTestServer(nil, nil), "/api/v1/health")
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Service != "streamwatch" || resp.Sensors != 2 || resp.Version["version"] == "" {
		t.Errorf("health = %+v", resp)
	}
}

type fakeChecker plugin.HealthStatus

func (f fakeChecker) Health(context.Context) plugin.HealthStatus { return plugin.HealthStatus(f) }

func TestHandleHealth_Components(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		wantStatus string
	}{
		{name: "healthy", status: "healthy", wantStatus: "ok"},
		{name: "degraded", status: "degraded", wantStatus: "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(nil, nil)
			srv.AddHealthChecker("mqtt", fakeChecker{Status: tt.status})

			w := serve(srv, "/api/v1/health")
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.Components["mqtt"].Status != tt.status {
				t.Errorf("Components[mqtt] = %+v", resp.Components["mqtt"])
			}
		})
	}
}

func TestHandleMetrics(t *testing.T) {
	srv := newTestServer(nil, nil)
	serve(srv, "/healthz")
	w := serve(srv, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "streamwatch_http_requests_total") {
		t.Error("metrics output missing streamwatch_http_requests_total")
	}
}

func TestHandleSensors(t *testing.T) {
	w := serve(newTestServer(nil, nil), "/api/v1/sensors")
	var states []analytics.SensorState
	if err := json.NewDecoder(w.Body).Decode(&states); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(states) != 2 || states[0].SensorID != "sensor_1" {
		t.Errorf("sensors = %+v", states)
	}
}

func TestHandleSensor(t *testing.T) {
	srv := newTestServer(nil, nil)

	w := serve(srv, "/api/v1/sensors/sensor_1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var detail SensorDetail
	if err := json.NewDecoder(w.Body).Decode(&detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.Phase != "warm" || len(detail.Window) != 3 {
		t.Errorf("detail = %+v", detail)
	}

	if w := serve(srv, "/api/v1/sensors/nope"); w.Code != http.StatusNotFound {
		t.Errorf("unknown sensor status = %d, want 404", w.Code)
	}
}

func TestHandleDecisions(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantQuery sink.DecisionQuery
	}{
		{name: "defaults", target: "/api/v1/decisions", wantCode: http.StatusOK},
		{
			name:      "filtered",
			target:    "/api/v1/decisions?sensor=sensor_2&anomalies=true&limit=5",
			wantCode:  http.StatusOK,
			wantQuery: sink.DecisionQuery{SensorID: "sensor_2", AnomaliesOnly: true, Limit: 5},
		},
		{name: "bad anomalies", target: "/api/v1/decisions?anomalies=maybe", wantCode: http.StatusBadRequest},
		{name: "zero limit", target: "/api/v1/decisions?limit=0", wantCode: http.StatusBadRequest},
		{name: "huge limit", target: "/api/v1/decisions?limit=100000", wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := &stubDecisions{out: []analytics.Decision{testutil.NewDecision()}}
			w := serve(newTestServer(nil, ds), tt.target)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
					t.Errorf("Content-Type = %q, want problem+json", ct)
				}
				return
			}
			if ds.got != tt.wantQuery {
				t.Errorf("query = %+v, want %+v", ds.got, tt.wantQuery)
			}
			var out []analytics.Decision
			_ = json.NewDecoder(w.Body).Decode(&out)
			if len(out) != 1 || !out[0].IsAnomaly {
				t.Errorf("decisions = %+v", out)
			}
		})
	}
}

func TestHandleDecisions_Errors(t *testing.T) {
	if w := serve(newTestServer(nil, nil), "/api/v1/decisions"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("no database status = %d, want 503", w.Code)
	}
	ds := &stubDecisions{err: errors.New("disk I/O error")}
	if w := serve(newTestServer(nil, ds), "/api/v1/decisions"); w.Code != http.StatusInternalServerError {
		t.Errorf("list error status = %d, want 500", w.Code)
	}
}

func TestMiddlewareChain_Integration(t *testing.T) {
	w := serve(newTestServer(nil, nil), "/api/v1/sensors")
	for _, h := range []string{"X-Request-ID", "X-StreamWatch-Version", "X-Content-Type-Options"} {
		if w.Header().Get(h) == "" {
			t.Errorf("header %s not set", h)
		}
	}
}

func TestConfigAddr(t *testing.T) {
	tests := []struct {
		cfg  Config
		want string
	}{
		{Config{Host: "127.0.0.1", Port: 8080}, "127.0.0.1:8080"},
		{Config{Host: "::1", Port: 9090}, "[::1]:9090"},
		{Config{Port: 80}, ":80"},
	}
	for _, tt := range tests {
		if got := tt.cfg.Addr(); got != tt.want {
			t.Errorf("Addr() = %q, want %q", got, tt.want)
		}
	}
}
