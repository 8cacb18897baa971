package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tradecore/internal/broker"
	"tradecore/internal/events"
	"tradecore/internal/fusion"
	"tradecore/internal/logging"
	"tradecore/internal/metrics"
	"tradecore/internal/orchestrator"
	"tradecore/internal/risk"
)

func newTestServer(t *testing.T) (*Server, *orchestrator.Orchestrator, *risk.Governor) {
	t.Helper()
	logger := logging.Nop()
	governor := risk.NewGovernor(risk.Config{DailyLossLimit: -0.05, MaxDrawdownPct: 10.0}, logger)
	governor.StartSession(100000)
	m := metrics.NewAggregator()

	orch := orchestrator.New(orchestrator.Config{
		BasePeriodMinutes: 5,
		TimeframeMinutes:  []int{60},
		LookbackBars:      100,
		Fusion:            fusion.DefaultConfig(),
		BreakerCooldown:   time.Hour,
	}, governor, m, events.NewEventBus(), logger)
	if err := orch.AddSymbol(broker.SymbolInfo{
		Symbol: "EURUSD", ContractSize: 100000, VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01,
	}); err != nil {
		t.Fatalf("AddSymbol: %v", err)
	}

	s := NewServer(ServerConfig{Port: 0}, orch, governor, m, nil, nil, logger)
	return s, orch, governor
}

func doRequest(t *testing.T, s *Server, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response %q: %v", w.Body.String(), err)
	}
	return w, body
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	w, body := doRequest(t, s, http.MethodGet, "/api/health")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing data envelope: %v", body)
	}
	if data["status"] != "ok" {
		t.Errorf("Expected status 'ok', got '%v'", data["status"])
	}
	if data["database"] != "disabled" {
		t.Errorf("Expected database 'disabled', got '%v'", data["database"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	s, orch, _ := newTestServer(t)
	orch.TripBreaker("session loss limit")

	w, body := doRequest(t, s, http.MethodGet, "/api/status")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	data := body["data"].(map[string]interface{})
	breaker, ok := data["breaker"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing breaker state: %v", data)
	}
	if breaker["engaged"] != true {
		t.Errorf("Expected breaker engaged, got %v", breaker["engaged"])
	}
	if breaker["reason"] != "session loss limit" {
		t.Errorf("Unexpected breaker reason: %v", breaker["reason"])
	}
}

func TestRiskEndpoint(t *testing.T) {
	s, _, governor := newTestServer(t)
	governor.UpdateRealizedPnL(-1000)

	w, body := doRequest(t, s, http.MethodGet, "/api/risk")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	data := body["data"].(map[string]interface{})
	if data["can_trade"] != true {
		t.Errorf("Expected can_trade true at -1%%, got %v", data["can_trade"])
	}
}

func TestDecisionsEndpointWithoutDatabase(t *testing.T) {
	s, _, _ := newTestServer(t)

	w, _ := doRequest(t, s, http.MethodGet, "/api/decisions/EURUSD")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 without database, got %d", w.Code)
	}
}

func TestBreakerResetEndpoint(t *testing.T) {
	s, orch, _ := newTestServer(t)

	// not engaged: still succeeds
	w, _ := doRequest(t, s, http.MethodPost, "/api/breaker/reset")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	orch.TripBreaker("operator stop")
	w, _ = doRequest(t, s, http.MethodPost, "/api/breaker/reset")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if engaged, _ := orch.BreakerState(); engaged {
		t.Error("breaker still engaged after reset endpoint")
	}
}
