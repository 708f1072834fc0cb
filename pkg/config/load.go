package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/opsforge/opsforge/pkg/secrets"
)

// Load builds the configuration from defaults overlaid with OPSFORGE_
// environment variables, then validates it. The first malformed
// variable fails the load with its full name.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	env := &envReader{}

	cfg.Environment = env.String("ENVIRONMENT", cfg.Environment)

	cfg.Database.Path = env.String("DB_PATH", cfg.Database.Path)
	cfg.Database.MaxOpenConns = env.Int("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = env.Int("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnMaxLifetime = env.Duration("DB_CONN_MAX_LIFETIME", cfg.Database.ConnMaxLifetime)

	cfg.Catalog.Dirs = env.StringSlice("CATALOG_DIRS", string(os.PathListSeparator), cfg.Catalog.Dirs)
	cfg.Catalog.Watch = env.Bool("CATALOG_WATCH", cfg.Catalog.Watch)

	cfg.Policy.Enabled = env.Bool("POLICY_ENABLED", cfg.Policy.Enabled)
	cfg.Policy.Dir = env.String("POLICY_DIR", cfg.Policy.Dir)
	cfg.Policy.BlockedTools = env.StringSlice("POLICY_BLOCKED_TOOLS", ",", cfg.Policy.BlockedTools)
	cfg.Policy.MaxSteps = env.Int("POLICY_MAX_STEPS", cfg.Policy.MaxSteps)

	cfg.Discovery.Enabled = env.Bool("DISCOVERY_ENABLED", cfg.Discovery.Enabled)
	cfg.Discovery.Endpoints = env.StringSlice("DISCOVERY_ENDPOINTS", ",", cfg.Discovery.Endpoints)
	cfg.Discovery.Namespace = env.String("DISCOVERY_NAMESPACE", cfg.Discovery.Namespace)

	cfg.Monitor.PollInterval = env.Duration("MONITOR_POLL_INTERVAL", cfg.Monitor.PollInterval)
	cfg.Monitor.CheckTimeout = env.Duration("MONITOR_CHECK_TIMEOUT", cfg.Monitor.CheckTimeout)
	cfg.Monitor.CallTimeout = env.Duration("MONITOR_CALL_TIMEOUT", cfg.Monitor.CallTimeout)
	cfg.Monitor.MaxConcurrentChecks = env.Int("MONITOR_MAX_CONCURRENT_CHECKS", cfg.Monitor.MaxConcurrentChecks)

	cfg.Breaker.FailureThreshold = env.Int("BREAKER_FAILURE_THRESHOLD", cfg.Breaker.FailureThreshold)
	cfg.Breaker.SuccessThreshold = env.Int("BREAKER_SUCCESS_THRESHOLD", cfg.Breaker.SuccessThreshold)
	cfg.Breaker.RecoveryTimeout = env.Duration("BREAKER_RECOVERY_TIMEOUT", cfg.Breaker.RecoveryTimeout)

	cfg.Services = scanServiceURLs()

	cfg.Secrets.KeySet = os.Getenv(secrets.EnvEncryptionKey("opsforge")) != "" ||
		os.Getenv("ENCRYPTION_KEY") != ""

	cfg.Logging.Level = env.String("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = env.String("LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.Output = env.String("LOG_OUTPUT", cfg.Logging.Output)

	cfg.Metrics.Enabled = env.Bool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Path = env.String("METRICS_PATH", cfg.Metrics.Path)

	cfg.Tracing.Enabled = env.Bool("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = env.String("TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = env.String("TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = env.Float("TRACING_SAMPLING_RATE", cfg.Tracing.SamplingRate)

	cfg.Events.Enabled = env.Bool("EVENTS_ENABLED", cfg.Events.Enabled)
	cfg.Events.BufferSize = env.Int("EVENTS_BUFFER_SIZE", cfg.Events.BufferSize)

	cfg.Server.ListenAddress = env.String("LISTEN_ADDRESS", cfg.Server.ListenAddress)

	if err := env.Err(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration, reporting the first failing field
// with its full path.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid configuration: %s failed %s validation", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
