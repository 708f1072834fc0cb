package config

import (
	"time"

	"github.com/opsforge/opsforge/pkg/discovery"
)

// Config is the full runtime configuration, loaded from the process
// environment with the OPSFORGE_ prefix and validated before use.
type Config struct {
	// Environment names the deployment environment the runtime executes
	// in. Passed to admission policies as input.environment.
	Environment string `json:"environment" validate:"required"`

	// Database configures the SQLite store.
	Database DatabaseConfig `json:"database"`

	// Catalog configures tool catalog loading.
	Catalog CatalogConfig `json:"catalog"`

	// Policy configures plan admission.
	Policy PolicyConfig `json:"policy"`

	// Discovery configures the shared service record store.
	Discovery DiscoveryConfig `json:"discovery"`

	// Monitor configures service health polling.
	Monitor MonitorConfig `json:"monitor"`

	// Breaker configures the per-service circuit breakers.
	Breaker BreakerConfig `json:"breaker"`

	// Services maps service names to static URLs, collected from
	// OPSFORGE_SERVICE_<NAME>_URL variables.
	Services map[string]string `json:"services,omitempty"`

	// Secrets reports the state of the encryption key material.
	Secrets SecretsConfig `json:"secrets"`

	// Logging configures structured logging.
	Logging LoggingConfig `json:"logging"`

	// Metrics configures Prometheus metrics.
	Metrics MetricsConfig `json:"metrics"`

	// Tracing configures OpenTelemetry tracing.
	Tracing TracingConfig `json:"tracing"`

	// Events configures the in-process event publisher.
	Events EventsConfig `json:"events"`

	// Server configures the HTTP listener used in serve mode.
	Server ServerConfig `json:"server"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `json:"path" validate:"required"`

	// MaxOpenConns caps open connections.
	MaxOpenConns int `json:"max_open_conns" validate:"gte=1"`

	// MaxIdleConns caps idle connections.
	MaxIdleConns int `json:"max_idle_conns" validate:"gte=0"`

	// ConnMaxLifetime bounds connection reuse.
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" validate:"gte=0"`
}

// CatalogConfig configures tool catalog loading.
type CatalogConfig struct {
	// Dirs are tool definition directories, merged over the built-ins
	// in order. Colon-separated in OPSFORGE_CATALOG_DIRS.
	Dirs []string `json:"dirs,omitempty"`

	// Watch enables hot reload of catalog directories.
	Watch bool `json:"watch"`
}

// PolicyConfig configures plan admission.
type PolicyConfig struct {
	// Enabled gates plans through the policy engine when true.
	Enabled bool `json:"enabled"`

	// Dir is an optional directory of custom .rego policies.
	Dir string `json:"dir,omitempty"`

	// BlockedTools lists tool names denied by the built-in blocklist
	// policy.
	BlockedTools []string `json:"blocked_tools,omitempty"`

	// MaxSteps caps plan length for the built-in step-cap policy.
	// Zero disables the cap.
	MaxSteps int `json:"max_steps" validate:"gte=0"`
}

// DiscoveryConfig configures the shared service record store.
type DiscoveryConfig struct {
	// Enabled switches the monitor from the in-memory store to etcd.
	Enabled bool `json:"enabled"`

	// Endpoints are etcd endpoints. Required when enabled.
	Endpoints []string `json:"endpoints,omitempty" validate:"required_if=Enabled true"`

	// Namespace is the key prefix for service records.
	Namespace string `json:"namespace" validate:"required"`
}

// MonitorConfig configures service health polling.
type MonitorConfig struct {
	// PollInterval is the delay between health check rounds.
	PollInterval time.Duration `json:"poll_interval" validate:"gt=0"`

	// CheckTimeout bounds a single health probe.
	CheckTimeout time.Duration `json:"check_timeout" validate:"gt=0"`

	// CallTimeout bounds a service call made on behalf of a step.
	CallTimeout time.Duration `json:"call_timeout" validate:"gt=0"`

	// MaxConcurrentChecks bounds parallel health probes.
	MaxConcurrentChecks int `json:"max_concurrent_checks" validate:"gte=1"`
}

// BreakerConfig configures the per-service circuit breakers.
type BreakerConfig struct {
	// FailureThreshold is the consecutive failure count that opens a
	// breaker.
	FailureThreshold int `json:"failure_threshold" validate:"gte=1"`

	// SuccessThreshold is the consecutive success count that closes a
	// half-open breaker.
	SuccessThreshold int `json:"success_threshold" validate:"gte=1"`

	// RecoveryTimeout is how long an open breaker waits before probing.
	RecoveryTimeout time.Duration `json:"recovery_timeout" validate:"gt=0"`
}

// SecretsConfig reports the state of the encryption key material.
type SecretsConfig struct {
	// KeySet is true when an encryption key variable is present. The
	// key itself never enters the configuration.
	KeySet bool `json:"key_set"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level.
	Level string `json:"level" validate:"oneof=trace debug info warn error fatal"`

	// Format selects console or JSON output.
	Format string `json:"format" validate:"oneof=console json"`

	// Output is stdout, stderr, or a file path.
	Output string `json:"output" validate:"required"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled switches metric collection on.
	Enabled bool `json:"enabled"`

	// Path is the HTTP path the serve listener scrapes from.
	Path string `json:"path" validate:"required"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled switches span export on.
	Enabled bool `json:"enabled"`

	// Exporter selects the span exporter.
	Exporter string `json:"exporter" validate:"oneof=otlp stdout none"`

	// Endpoint is the OTLP collector endpoint. Required for otlp.
	Endpoint string `json:"endpoint,omitempty" validate:"required_if=Exporter otlp"`

	// SamplingRate is the trace sampling rate between 0 and 1.
	SamplingRate float64 `json:"sampling_rate" validate:"gte=0,lte=1"`
}

// EventsConfig configures the in-process event publisher.
type EventsConfig struct {
	// Enabled switches event publishing on.
	Enabled bool `json:"enabled"`

	// BufferSize is the publisher channel capacity.
	BufferSize int `json:"buffer_size" validate:"gte=1"`
}

// ServerConfig configures the HTTP listener used in serve mode.
type ServerConfig struct {
	// ListenAddress is the address health and metrics are served on.
	ListenAddress string `json:"listen_address" validate:"required"`
}

// DefaultConfig returns the configuration used when no environment
// variables are set. Monitor and breaker defaults mirror the discovery
// package so both entry points agree.
func DefaultConfig() *Config {
	mon := discovery.DefaultMonitorConfig()

	return &Config{
		Environment: "development",
		Database: DatabaseConfig{
			Path:            "opsforge.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Catalog: CatalogConfig{},
		Policy:  PolicyConfig{},
		Discovery: DiscoveryConfig{
			Namespace: discovery.DefaultRecordPrefix,
		},
		Monitor: MonitorConfig{
			PollInterval:        mon.PollInterval,
			CheckTimeout:        mon.CheckTimeout,
			CallTimeout:         mon.CallTimeout,
			MaxConcurrentChecks: mon.MaxConcurrentChecks,
		},
		Breaker: BreakerConfig{
			FailureThreshold: mon.Breaker.FailureThreshold,
			SuccessThreshold: mon.Breaker.SuccessThreshold,
			RecoveryTimeout:  mon.Breaker.RecoveryTimeout,
		},
		Services: make(map[string]string),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Exporter:     "none",
			SamplingRate: 1.0,
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 1000,
		},
		Server: ServerConfig{
			ListenAddress: ":8080",
		},
	}
}
