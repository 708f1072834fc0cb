package config

import (
	"testing"
	"time"
)

func TestTelemetryConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Environment = "production"
	cfg.Logging.Level = "warn"
	cfg.Logging.Format = "json"
	cfg.Metrics.Path = "/internal/metrics"
	cfg.Server.ListenAddress = ":9090"
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.Endpoint = "otel-collector:4317"
	cfg.Tracing.SamplingRate = 0.1
	cfg.Events.BufferSize = 64

	tc := cfg.TelemetryConfig("1.2.3")

	if tc.ServiceName != "opsforge" || tc.ServiceVersion != "1.2.3" {
		t.Errorf("Expected opsforge 1.2.3, got %s %s", tc.ServiceName, tc.ServiceVersion)
	}
	if tc.Environment != "production" {
		t.Errorf("Expected production, got %q", tc.Environment)
	}
	if tc.Logging.Level != "warn" || tc.Logging.Format != "json" {
		t.Errorf("Expected warn/json logging, got %s/%s", tc.Logging.Level, tc.Logging.Format)
	}
	if tc.Metrics.ListenAddress != ":9090" {
		t.Errorf("Expected metrics on the server listener, got %q", tc.Metrics.ListenAddress)
	}
	if tc.Metrics.Path != "/internal/metrics" {
		t.Errorf("Expected /internal/metrics, got %q", tc.Metrics.Path)
	}
	if tc.Metrics.Namespace != "opsforge" {
		t.Errorf("Expected opsforge namespace, got %q", tc.Metrics.Namespace)
	}
	if !tc.Tracing.Enabled || tc.Tracing.Exporter != "otlp" || tc.Tracing.Endpoint != "otel-collector:4317" {
		t.Errorf("Expected otlp tracing carried through, got %+v", tc.Tracing)
	}
	if tc.Tracing.SamplingRate != 0.1 {
		t.Errorf("Expected sampling rate 0.1, got %v", tc.Tracing.SamplingRate)
	}
	if tc.Events.BufferSize != 64 {
		t.Errorf("Expected buffer size 64, got %d", tc.Events.BufferSize)
	}

	if err := tc.Validate(); err != nil {
		t.Errorf("Expected bridged config to validate, got %v", err)
	}
}

func TestMonitorConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Monitor.PollInterval = 10 * time.Second
	cfg.Monitor.MaxConcurrentChecks = 4
	cfg.Breaker.FailureThreshold = 5
	cfg.Breaker.RecoveryTimeout = 2 * time.Minute

	mc := cfg.MonitorConfig()

	if mc.PollInterval != 10*time.Second {
		t.Errorf("Expected 10s poll interval, got %v", mc.PollInterval)
	}
	if mc.CheckTimeout != 5*time.Second || mc.CallTimeout != 30*time.Second {
		t.Errorf("Expected default timeouts, got %v %v", mc.CheckTimeout, mc.CallTimeout)
	}
	if mc.MaxConcurrentChecks != 4 {
		t.Errorf("Expected 4 concurrent checks, got %d", mc.MaxConcurrentChecks)
	}
	if mc.Breaker.FailureThreshold != 5 || mc.Breaker.SuccessThreshold != 2 {
		t.Errorf("Expected breaker thresholds 5/2, got %d/%d", mc.Breaker.FailureThreshold, mc.Breaker.SuccessThreshold)
	}
	if mc.Breaker.RecoveryTimeout != 2*time.Minute {
		t.Errorf("Expected 2m recovery, got %v", mc.Breaker.RecoveryTimeout)
	}
}

func TestStoreConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Path = "/tmp/forge.db"
	cfg.Database.MaxOpenConns = 10

	sc := cfg.StoreConfig()

	if sc.Path != "/tmp/forge.db" {
		t.Errorf("Expected /tmp/forge.db, got %q", sc.Path)
	}
	if sc.MaxOpenConns != 10 || sc.MaxIdleConns != 5 {
		t.Errorf("Expected 10/5 connections, got %d/%d", sc.MaxOpenConns, sc.MaxIdleConns)
	}
	if sc.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("Expected 5m lifetime, got %v", sc.ConnMaxLifetime)
	}
}

func TestPolicyEngineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Environment = "staging"
	cfg.Policy.BlockedTools = []string{"wipe_disk"}
	cfg.Policy.MaxSteps = 25

	pc := cfg.PolicyEngineConfig()

	if pc.Environment != "staging" {
		t.Errorf("Expected staging, got %q", pc.Environment)
	}
	if len(pc.Blocklist) != 1 || pc.Blocklist[0] != "wipe_disk" {
		t.Errorf("Expected wipe_disk blocklist, got %v", pc.Blocklist)
	}
	if pc.MaxSteps != 25 {
		t.Errorf("Expected step cap 25, got %d", pc.MaxSteps)
	}
}
