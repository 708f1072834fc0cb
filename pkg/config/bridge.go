package config

import (
	"github.com/opsforge/opsforge/pkg/discovery"
	"github.com/opsforge/opsforge/pkg/policy"
	"github.com/opsforge/opsforge/pkg/stores"
	"github.com/opsforge/opsforge/pkg/telemetry"
)

// TelemetryConfig builds the telemetry configuration for this process.
func (c *Config) TelemetryConfig(version string) *telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceName = "opsforge"
	tc.ServiceVersion = version
	tc.Environment = c.Environment

	tc.Logging.Level = c.Logging.Level
	tc.Logging.Format = c.Logging.Format
	tc.Logging.Output = c.Logging.Output

	tc.Metrics.Enabled = c.Metrics.Enabled
	tc.Metrics.ListenAddress = c.Server.ListenAddress
	tc.Metrics.Path = c.Metrics.Path

	tc.Tracing.Enabled = c.Tracing.Enabled
	tc.Tracing.Exporter = c.Tracing.Exporter
	tc.Tracing.Endpoint = c.Tracing.Endpoint
	tc.Tracing.SamplingRate = c.Tracing.SamplingRate

	tc.Events.Enabled = c.Events.Enabled
	tc.Events.BufferSize = c.Events.BufferSize

	return tc
}

// MonitorConfig builds the discovery monitor configuration, folding the
// breaker thresholds in.
func (c *Config) MonitorConfig() discovery.MonitorConfig {
	return discovery.MonitorConfig{
		PollInterval:        c.Monitor.PollInterval,
		CheckTimeout:        c.Monitor.CheckTimeout,
		CallTimeout:         c.Monitor.CallTimeout,
		MaxConcurrentChecks: c.Monitor.MaxConcurrentChecks,
		Breaker: discovery.BreakerConfig{
			FailureThreshold: c.Breaker.FailureThreshold,
			SuccessThreshold: c.Breaker.SuccessThreshold,
			RecoveryTimeout:  c.Breaker.RecoveryTimeout,
		},
	}
}

// StoreConfig builds the SQLite store configuration.
func (c *Config) StoreConfig() stores.Config {
	return stores.Config{
		Path:            c.Database.Path,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

// PolicyEngineConfig builds the admission engine configuration.
func (c *Config) PolicyEngineConfig() policy.Config {
	return policy.Config{
		Environment: c.Environment,
		Blocklist:   c.Policy.BlockedTools,
		MaxSteps:    c.Policy.MaxSteps,
	}
}
