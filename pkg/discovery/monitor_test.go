package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opsforge/opsforge/pkg/engine"
	"github.com/opsforge/opsforge/pkg/telemetry"
)

func testMonitor(t *testing.T, cfg MonitorConfig, store RecordStore) *Monitor {
	t.Helper()
	if store == nil {
		store = NewMemoryStore()
	}
	return NewMonitor(cfg, store, &telemetry.Telemetry{Logger: testLogger(t)})
}

func healthServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		if body != "" {
			_, _ = w.Write([]byte(body))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMonitorCheckAll(t *testing.T) {
	healthy := healthServer(t, http.StatusOK, `{"status":"ok","version":"1.2.3"}`)
	degraded := healthServer(t, http.StatusServiceUnavailable, "")
	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()

	store := NewMemoryStore()
	m := testMonitor(t, MonitorConfig{}, store)
	m.Register("executor", healthy.URL)
	m.Register("notifier", degraded.URL)
	m.Register("archiver", down.URL)

	m.checkAll(context.Background())

	statuses := m.Status()
	if len(statuses) != 3 {
		t.Fatalf("Expected 3 services, got %d", len(statuses))
	}
	byName := make(map[string]ServiceStatus, len(statuses))
	for _, s := range statuses {
		byName[s.Record.Name] = s
	}

	if got := byName["executor"].Record.Status; got != StatusHealthy {
		t.Errorf("Expected executor healthy, got %s", got)
	}
	if got := byName["executor"].Record.Version; got != "1.2.3" {
		t.Errorf("Expected executor version 1.2.3, got %q", got)
	}
	if got := byName["executor"].Record.SuccessCount; got != 1 {
		t.Errorf("Expected executor success count 1, got %d", got)
	}
	if got := byName["notifier"].Record.Status; got != StatusDegraded {
		t.Errorf("Expected notifier degraded, got %s", got)
	}
	if got := byName["archiver"].Record.Status; got != StatusUnhealthy {
		t.Errorf("Expected archiver unhealthy, got %s", got)
	}
	if got := byName["archiver"].Record.ErrorCount; got != 1 {
		t.Errorf("Expected archiver error count 1, got %d", got)
	}

	records, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("Failed to list shared records: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("Expected 3 shared records, got %d", len(records))
	}
}

func TestMonitorBreakerTripsOnRepeatedFailures(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()

	m := testMonitor(t, MonitorConfig{}, nil)
	m.Register("executor", down.URL)

	for i := 0; i < 3; i++ {
		m.checkService(context.Background(), "executor")
	}

	_, err := m.ServiceURL("executor")
	if err == nil {
		t.Fatal("Expected open breaker to fail the URL lookup")
	}
	if !engine.IsUnavailable(err) {
		t.Errorf("Expected unavailable error, got %v", err)
	}
	var openErr *CircuitOpenError
	if !errors.As(err, &openErr) {
		t.Errorf("Expected CircuitOpenError in the chain, got %v", err)
	}
}

func TestMonitorServiceURL(t *testing.T) {
	m := testMonitor(t, MonitorConfig{}, nil)
	m.Register("executor", "http://executor:8080")

	url, err := m.ServiceURL("executor")
	if err != nil {
		t.Fatalf("Failed to resolve service URL: %v", err)
	}
	if url != "http://executor:8080" {
		t.Errorf("Expected http://executor:8080, got %s", url)
	}
}

func TestMonitorServiceURLStoreFallback(t *testing.T) {
	store := NewMemoryStore()
	err := store.Put(context.Background(), ServiceRecord{
		Name:   "remote",
		URL:    "http://remote:9090",
		Status: StatusHealthy,
	}, 0)
	if err != nil {
		t.Fatalf("Failed to seed record store: %v", err)
	}

	m := testMonitor(t, MonitorConfig{}, store)

	url, err := m.ServiceURL("remote")
	if err != nil {
		t.Fatalf("Failed to fall back to the record store: %v", err)
	}
	if url != "http://remote:9090" {
		t.Errorf("Expected http://remote:9090, got %s", url)
	}

	if _, err := m.ServiceURL("missing"); err == nil {
		t.Fatal("Expected error for unknown service")
	} else if !engine.IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
}

func TestMonitorRegisterKeepsBreakerOnUpdate(t *testing.T) {
	m := testMonitor(t, MonitorConfig{}, nil)
	m.Register("executor", "http://old:8080")

	for i := 0; i < 3; i++ {
		m.breakers["executor"].RecordFailure()
	}
	m.Register("executor", "http://new:8080")

	if _, err := m.ServiceURL("executor"); err == nil {
		t.Fatal("Expected breaker state to survive re-registration")
	}

	statuses := m.Status()
	if len(statuses) != 1 {
		t.Fatalf("Expected 1 service after re-registration, got %d", len(statuses))
	}
	if got := statuses[0].Record.URL; got != "http://new:8080" {
		t.Errorf("Expected updated URL, got %s", got)
	}
}

func TestMonitorCallService(t *testing.T) {
	var gotMethod, gotPath, gotContentType string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
	t.Cleanup(srv.Close)

	m := testMonitor(t, MonitorConfig{}, nil)
	m.Register("executor", srv.URL)

	var out map[string]interface{}
	body := map[string]interface{}{"tool": "restart_service"}
	if err := m.CallService(context.Background(), "executor", http.MethodPost, "/api/v1/tools/restart_service", body, &out); err != nil {
		t.Fatalf("Failed to call service: %v", err)
	}

	if gotMethod != http.MethodPost || gotPath != "/api/v1/tools/restart_service" {
		t.Errorf("Unexpected request: %s %s", gotMethod, gotPath)
	}
	if gotContentType != "application/json" {
		t.Errorf("Expected JSON content type, got %q", gotContentType)
	}
	if gotBody["tool"] != "restart_service" {
		t.Errorf("Expected tool in request body, got %v", gotBody)
	}
	if out["result"] != "ok" {
		t.Errorf("Expected decoded response, got %v", out)
	}
	if got := m.breakers["executor"].State(); got != StateClosed {
		t.Errorf("Expected breaker closed after success, got %s", got)
	}
}

func TestMonitorCallServiceFailuresTripBreaker(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	m := testMonitor(t, MonitorConfig{Breaker: BreakerConfig{FailureThreshold: 2}}, nil)
	m.Register("executor", srv.URL)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		err := m.CallService(ctx, "executor", http.MethodPost, "/api/v1/run", nil, nil)
		if err == nil {
			t.Fatal("Expected error from failing service")
		}
		if !strings.Contains(err.Error(), "returned 500") {
			t.Errorf("Expected status in error, got %v", err)
		}
	}
	if got := m.breakers["executor"].State(); got != StateOpen {
		t.Fatalf("Expected breaker open after repeated failures, got %s", got)
	}

	err := m.CallService(ctx, "executor", http.MethodPost, "/api/v1/run", nil, nil)
	if !engine.IsUnavailable(err) {
		t.Errorf("Expected unavailable error while open, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("Expected circuit to stop further requests, got %d calls", got)
	}
}

func TestMonitorStartPolls(t *testing.T) {
	var checks int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			atomic.AddInt32(&checks, 1)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}
	}))
	t.Cleanup(srv.Close)

	store := NewMemoryStore()
	m := testMonitor(t, MonitorConfig{PollInterval: 20 * time.Millisecond}, store)
	m.Register("executor", srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	time.Sleep(70 * time.Millisecond)
	cancel()
	if err := m.Close(); err != nil {
		t.Fatalf("Failed to close monitor: %v", err)
	}

	if n := atomic.LoadInt32(&checks); n < 2 {
		t.Errorf("Expected at least 2 health checks, got %d", n)
	}
	record, err := store.Get(context.Background(), "executor")
	if err != nil {
		t.Fatalf("Expected shared record after polling: %v", err)
	}
	if record.Status != StatusHealthy {
		t.Errorf("Expected healthy record, got %s", record.Status)
	}
	if record.ResponseTimeMS < 0 {
		t.Errorf("Expected non-negative response time, got %d", record.ResponseTimeMS)
	}
}
